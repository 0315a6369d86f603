package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTokensFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadTokensFile(t *testing.T) {
	t.Run("object form", func(t *testing.T) {
		path := writeTokensFile(t, `{"tokens":[{"name":"Alpha","symbol":"ALP","totalSupply":"1000"}]}`)
		req, err := readTokensFile(path)
		require.NoError(t, err)
		require.Len(t, req.Tokens, 1)
		assert.Equal(t, "ALP", req.Tokens[0].Symbol)
	})

	t.Run("bare array", func(t *testing.T) {
		path := writeTokensFile(t, `[{"name":"Alpha","symbol":"ALP","totalSupply":"1"},{"name":"Beta","symbol":"BET","totalSupply":"2"}]`)
		req, err := readTokensFile(path)
		require.NoError(t, err)
		assert.Len(t, req.Tokens, 2)
	})

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"empty list", `{"tokens":[]}`, "invalid tokens file"},
		{"missing symbol", `[{"name":"Alpha","totalSupply":"1"}]`, "Symbol"},
		{"non numeric supply", `[{"name":"Alpha","symbol":"ALP","totalSupply":"lots"}]`, "numeric"},
		{"not json", `tokens`, "failed to parse tokens file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readTokensFile(writeTokensFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := readTokensFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorContains(t, err, "failed to read tokens file")
	})
}
