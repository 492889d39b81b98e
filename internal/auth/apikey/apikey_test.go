package apikey

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

func TestHashKey(t *testing.T) {
	t.Parallel()

	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashKey("abc"))
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	s := NewStatic([]config.StaticKey{
		{Name: "ci", Key: "ci-key-0123456789", RateLimit: 5},
		{Key: "ops-key-0123456789"},
	})
	assert.Equal(t, 2, s.Len())

	info, err := s.Validate(context.Background(), "ci-key-0123456789")
	require.NoError(t, err)
	assert.Equal(t, "ci", info.Name)
	assert.Equal(t, 5, info.RateLimit)
	assert.Equal(t, "static:"+HashKey("ci-key-0123456789")[:12], info.ID)

	info, err = s.Validate(context.Background(), "ops-key-0123456789")
	require.NoError(t, err)
	assert.Equal(t, "config", info.Name)

	_, err = s.Validate(context.Background(), "ci-key-012345678")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewStatic(nil).Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

type fixedValidator struct {
	info *KeyInfo
	err  error
	hits int
}

func (f *fixedValidator) Validate(context.Context, string) (*KeyInfo, error) {
	f.hits++
	return f.info, f.err
}

func TestChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		first    *fixedValidator
		second   *fixedValidator
		wantErr  error
		wantName string
		wantHits int
	}{
		{
			name:     "falls through invalid",
			first:    &fixedValidator{err: ErrInvalidKey},
			second:   &fixedValidator{info: &KeyInfo{Name: "db"}},
			wantName: "db",
			wantHits: 1,
		},
		{
			name:     "first match wins",
			first:    &fixedValidator{info: &KeyInfo{Name: "static"}},
			second:   &fixedValidator{info: &KeyInfo{Name: "db"}},
			wantName: "static",
		},
		{
			name:    "expired is final",
			first:   &fixedValidator{err: ErrExpiredKey},
			second:  &fixedValidator{info: &KeyInfo{Name: "db"}},
			wantErr: ErrExpiredKey,
		},
		{
			name:    "backend error is final",
			first:   &fixedValidator{err: errors.New("connection refused")},
			second:  &fixedValidator{info: &KeyInfo{Name: "db"}},
			wantErr: errors.New("connection refused"),
		},
		{
			name:     "nothing matches",
			first:    &fixedValidator{err: ErrInvalidKey},
			second:   &fixedValidator{err: ErrInvalidKey},
			wantErr:  ErrInvalidKey,
			wantHits: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Chain{tt.first, tt.second}.Validate(context.Background(), "k")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr.Error(), err.Error())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, info.Name)
			}
			assert.Equal(t, tt.wantHits, tt.second.hits)
		})
	}

	_, err := Chain(nil).Validate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
