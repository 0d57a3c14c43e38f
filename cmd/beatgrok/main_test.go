package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatgrok/internal/config"
)

func writeArchive(t *testing.T, path, content string) {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestFilesCommand(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "parsed")
	writeArchive(t, filepath.Join(in, "day1.txt.zst"),
		`{"@timestamp":"2021-05-03T12:34:56.789Z","host":{"name":"warrior-01"},"message":"404=404 "}`+"\n")
	require.NoError(t, os.WriteFile(filepath.Join(in, "day2.txt.zst"), []byte("not zstd"), 0o644))

	cmd := newRootCmd(config.Default())
	cmd.SetArgs([]string{"files", "--glob", filepath.Join(in, "*.txt.zst"), "--out", out, "--workers", "2"})
	require.NoError(t, cmd.ExecuteContext(context.Background()), "a bad archive does not fail the run")

	f, err := os.Open(filepath.Join(out, "day1.influx.gz"))
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "metric,host=warrior-01 status_code=404i 1620045296789\n", string(data))
}

func TestFilesCommandNoInput(t *testing.T) {
	cmd := newRootCmd(config.Default())
	cmd.SetArgs([]string{"files", "--glob", filepath.Join(t.TempDir(), "*.zst")})
	assert.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestFilesCommandRejectsEmptyOutput(t *testing.T) {
	cmd := newRootCmd(config.Default())
	cmd.SetArgs([]string{"files", "--out", ""})
	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), config.ErrNoOutputDir)
}
