package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMetaFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseMetaFile_Success(t *testing.T) {
	path := writeMetaFile(t, "time:0.042\ntime-wall:0.051\nmax-rss:2048\nexitcode:0\n")

	meta, err := parseMetaFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.042, meta.Time)
	assert.Equal(t, 0.051, meta.TimeWall)
	assert.Equal(t, 2048, meta.MaxRSS)
	assert.Equal(t, 0, meta.ExitCode)
	assert.Equal(t, "", meta.Status)
}

func TestParseMetaFile_Timeout(t *testing.T) {
	path := writeMetaFile(t, "time:2.000\ntime-wall:2.010\nstatus:TO\nmessage:time limit exceeded\n")

	meta, err := parseMetaFile(path)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, meta.Status)
	assert.Equal(t, "time limit exceeded", meta.Message)
}

func TestParseMetaFile_SignalWithCgroupOOM(t *testing.T) {
	path := writeMetaFile(t, "status:SG\nexitsig:9\ncg-mem:262144\nmessage:cg-oom-killed\n")

	meta, err := parseMetaFile(path)
	require.NoError(t, err)
	assert.Equal(t, StatusSignal, meta.Status)
	assert.Equal(t, 9, meta.ExitSig)
	assert.Equal(t, 262144, meta.CgMem)
}

func TestParseMetaFile_IgnoresMalformedLines(t *testing.T) {
	path := writeMetaFile(t, "not-a-key-value-line\ntime:0.1\n\n")

	meta, err := parseMetaFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.1, meta.Time)
}

func TestParseMetaFile_MissingFile(t *testing.T) {
	_, err := parseMetaFile(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	assert.Error(t, err)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "2.000", formatSeconds(2))
	assert.Equal(t, "0.500", formatSeconds(0.5))
}

func TestNewRunner(t *testing.T) {
	r := NewRunner("/usr/bin/isolate")
	assert.Equal(t, "/usr/bin/isolate", r.binPath)
}
