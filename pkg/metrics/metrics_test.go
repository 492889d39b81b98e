package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	m := New(reg)
	m.SearchQueriesTotal.WithLabelValues("stable", "ok").Inc()
	m.IndexGeneration.WithLabelValues("stable").Set(3)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `index_generation{version="stable"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}
