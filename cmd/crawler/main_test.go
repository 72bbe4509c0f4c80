package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"news-scraper/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	v := config.New()
	root := newRootCmd(v)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDateFlagsReachEachCommand(t *testing.T) {
	for _, name := range []string{"index", "run"} {
		t.Run(name, func(t *testing.T) {
			v := config.New()
			root := newRootCmd(v)
			root.SetOut(&bytes.Buffer{})
			root.SetArgs([]string{name, "--from", "2023-12-31", "--to", "2023-12-30", "--output-dir", t.TempDir()})

			err := root.ExecuteContext(context.Background())
			assert.ErrorIs(t, err, config.ErrInvalidDateRange)
			assert.Equal(t, "2023-12-31", v.GetString("from"))
			assert.Equal(t, "2023-12-30", v.GetString("to"))
		})
	}
}

func TestIndexRejectsMalformedDate(t *testing.T) {
	_, err := execute(t, "index", "--from", "31-12-2023", "--output-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"31-12-2023"`)
}

func TestArticlesFlags(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "seeds.csv")
	_, err := execute(t, "articles", "--seeds", missing, "--batch-size", "10", "--output-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open seed file")

	_, err = execute(t, "articles", "--output-dir", t.TempDir())
	assert.EqualError(t, err, "--seeds is required")
}

func TestProfilesCommand(t *testing.T) {
	out, err := execute(t, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "jpnn")
	assert.Contains(t, out, "https://www.tempo.co/indeks/{date}/")
}
