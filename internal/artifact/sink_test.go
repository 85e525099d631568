package artifact

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSink_WriteAndCreate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	sink, err := NewDirSink(root)
	require.NoError(t, err)

	require.NoError(t, sink.WriteFile("Standard/mc_stats.json", []byte(`{}`)))
	data, err := os.ReadFile(filepath.Join(root, "Standard", "mc_stats.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	w, err := sink.Create("comparative_analysis/summary.txt")
	require.NoError(t, err)
	_, err = io.WriteString(w, "ok")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, err = os.ReadFile(filepath.Join(root, "comparative_analysis", "summary.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	require.NoError(t, sink.MkdirAll("a/b"))
	info, err := os.Stat(filepath.Join(root, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDirSink_RejectsEscapingNames(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../x", "a/../../x", "/etc/passwd"} {
		assert.Error(t, sink.WriteFile(name, nil), name)
		_, err := sink.Create(name)
		assert.Error(t, err, name)
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()

	require.NoError(t, sink.WriteFile("b.txt", []byte("b")))
	w, err := sink.Create("dir/a.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("hello "))
	_, _ = w.Write([]byte("world"))
	require.NoError(t, w.Close())

	data, err := sink.ReadFile("dir/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, []string{"b.txt", "dir/a.txt"}, sink.Names())

	_, err = sink.ReadFile("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, sink.MkdirAll("x/y/z"))
	assert.True(t, sink.HasDir("x/y"))
	assert.False(t, sink.HasDir("q"))
}

func TestMemorySink_WriteFileCopies(t *testing.T) {
	sink := NewMemorySink()
	buf := []byte("abc")
	require.NoError(t, sink.WriteFile("f", buf))
	buf[0] = 'z'
	data, _ := sink.ReadFile("f")
	assert.Equal(t, "abc", string(data))
}

func TestDirSink_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	sink, err := NewDirSink(root)
	require.NoError(t, err)
	assert.Error(t, sink.WriteFile("link/evil.txt", []byte("x")))
	assert.Error(t, sink.WriteFile("link/new/evil.txt", []byte("x")))
	_, err = os.Stat(filepath.Join(outside, "evil.txt"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, sink.WriteFile("inside/ok.txt", []byte("x")))
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Standard", "Standard"},
		{"Fault-Tolerant", "Fault-Tolerant"},
		{"High res / 16", "High_res_16"},
		{"a::b", "a_b"},
		{"../etc", "etc"},
		{"", "unnamed"},
		{"///", "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), tt.in)
	}
}
