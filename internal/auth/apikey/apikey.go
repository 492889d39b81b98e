// Package apikey validates the API keys that guard searchd's admin
// endpoints. Only SHA-256 digests of keys are kept; a raw key is shown once,
// when it is created.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// KeyInfo describes a validated key. RateLimit is requests per rate limit
// window; 0 means the server default.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validator resolves a raw key presented by a client.
type Validator interface {
	Validate(ctx context.Context, rawKey string) (*KeyInfo, error)
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateKey returns 32 random bytes, hex encoded.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type staticKey struct {
	hash string
	info KeyInfo
}

// Static validates keys listed in configuration.
type Static struct {
	keys []staticKey
}

func NewStatic(keys []config.StaticKey) *Static {
	s := &Static{keys: make([]staticKey, 0, len(keys))}
	for _, k := range keys {
		name := k.Name
		if name == "" {
			name = "config"
		}
		hash := HashKey(k.Key)
		s.keys = append(s.keys, staticKey{
			hash: hash,
			info: KeyInfo{ID: "static:" + hash[:12], Name: name, RateLimit: k.RateLimit},
		})
	}
	return s
}

// Len reports how many keys are configured.
func (s *Static) Len() int {
	return len(s.keys)
}

func (s *Static) Validate(_ context.Context, rawKey string) (*KeyInfo, error) {
	hash := HashKey(rawKey)
	var found *KeyInfo
	// compare against every key so timing does not reveal a partial match
	for i := range s.keys {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(s.keys[i].hash)) == 1 && found == nil {
			info := s.keys[i].info
			found = &info
		}
	}
	if found == nil {
		return nil, ErrInvalidKey
	}
	return found, nil
}

// Chain tries each validator in order. ErrInvalidKey moves on to the next
// one; any other error, including ErrExpiredKey, is final.
type Chain []Validator

func (c Chain) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	for _, v := range c {
		info, err := v.Validate(ctx, rawKey)
		if errors.Is(err, ErrInvalidKey) {
			continue
		}
		return info, err
	}
	return nil, ErrInvalidKey
}
