package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

const payloadJS = `var documenterSearchIndex = {"docs":
[{"location":"index.html#Demo","page":"Demo","title":"Demo","text":"A widget toolkit.","category":"page"},
{"location":"api/#Demo.frob","page":"API","title":"Demo.frob","text":"Frobnicate the widget.","category":"method"}]
}
`

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search_index.js")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	path := writePayload(t, payloadJS)

	out, err := run(t, newSearchCmd(), path, "widget")
	require.NoError(t, err)
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "api/#Demo.frob")
	assert.Contains(t, out, "index.html#Demo")

	out, err = run(t, newSearchCmd(), path, "widget", "--json", "--limit", "1")
	require.NoError(t, err)
	var results []ranker.ScoredEntry
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 1)

	out, err = run(t, newSearchCmd(), path, "nothingmatches")
	require.NoError(t, err)
	assert.Contains(t, out, "no matches")

	out, err = run(t, newSearchCmd(), path, "widg", "--prefix", "--pages")
	require.NoError(t, err)
	assert.Contains(t, out, "Demo")
	assert.Contains(t, out, "API")
}

func TestSearchCommandRejectsBadPayload(t *testing.T) {
	path := writePayload(t, `[{"page":"A"}]`)
	_, err := run(t, newSearchCmd(), path, "a")
	assert.Error(t, err)

	_, err = run(t, newSearchCmd(), filepath.Join(t.TempDir(), "missing.js"), "a")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	path := writePayload(t, payloadJS)

	out, err := run(t, newInspectCmd(), path, "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "entries:  2")
	assert.Contains(t, out, "pages:    2")
	assert.Contains(t, out, "method")
	assert.Contains(t, out, "widget")
}

func TestPublishCommandValidatesArgs(t *testing.T) {
	_, err := run(t, newPublishCmd(), writePayload(t, payloadJS))
	assert.Error(t, err, "version is required")

	_, err = run(t, newPublishCmd(), "--version", "stable")
	assert.Error(t, err, "neither payload nor source")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b", oneLine(" a\n\tb "))
	long := oneLine(string(bytes.Repeat([]byte("x"), 100)))
	assert.Len(t, long, 60)
}

func TestParseKeyID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"db:42", 42, false},
		{"7", 7, false},
		{"static:abcdef012345", 0, true},
		{"db:", 0, true},
		{"db:-1", 0, true},
		{"key", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseKeyID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintKeys(t *testing.T) {
	var buf bytes.Buffer
	printKeys(&buf, nil)
	assert.Equal(t, "no active keys\n", buf.String())

	buf.Reset()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	expires := created.Add(24 * time.Hour)
	printKeys(&buf, []apikey.KeyInfo{
		{ID: "db:2", Name: "ci", RateLimit: 5, CreatedAt: created, ExpiresAt: &expires},
		{ID: "db:1", Name: "ops", CreatedAt: created},
	})
	out := buf.String()
	assert.Contains(t, out, "db:2")
	assert.Contains(t, out, "2026-01-03T03:04:05Z")
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "never")
}

func TestKeysCreateRejectsNegativeFlags(t *testing.T) {
	_, err := run(t, newKeysCmd(), "create", "ci", "--ttl", "-1h")
	assert.Error(t, err)
}
