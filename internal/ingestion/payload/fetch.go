package payload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const maxPayloadBytes = 256 << 20

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetch reads a payload from a local path or an http(s) URL. Remote reads
// are retried with backoff; 4xx responses are not retried.
func Fetch(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(src, "file://"))
		if err != nil {
			return nil, fmt.Errorf("reading payload %s: %w", src, err)
		}
		return data, nil
	}

	var data []byte
	err := resilience.Retry(ctx, "fetch-payload", resilience.RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 250 * time.Millisecond,
	}, func() error {
		body, err := fetchHTTP(ctx, src)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(body) > maxPayloadBytes {
		return nil, resilience.Permanent(errors.New("payload exceeds size limit"))
	}
	return body, nil
}
