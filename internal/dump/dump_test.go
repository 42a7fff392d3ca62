package dump

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelectPicksNextUnusedIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "stream000"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "stream001"), 0o755))

	d, err := Select(root, 7)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "stream002"), d.Path)

	data, err := os.ReadFile(filepath.Join(d.Path, "process_session_id.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "session_id=7")
}

func TestSelectStealsOldestWhenFull(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < MaxStreamDirs; i++ {
		dir := filepath.Join(root, dirName(i))
		require.NoError(t, os.Mkdir(dir, 0o755))
	}

	oldest := filepath.Join(root, dirName(3))
	require.NoError(t, os.WriteFile(filepath.Join(oldest, "marker"), []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(oldest, old, old))

	d, err := Select(root, 1)
	require.NoError(t, err)
	require.Equal(t, oldest, d.Path)
}

func TestDirSequenceNaming(t *testing.T) {
	root := t.TempDir()
	d, err := Select(root, 1)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(d.Path, "pkt-0001.bin"), d.NextPacketPath())
	require.Equal(t, filepath.Join(d.Path, "pkt-0002.bin"), d.NextPacketPath())
	require.Equal(t, filepath.Join(d.Path, "frm-0001.bin"), d.NextFramePath())
}

func dirName(idx int) string {
	return "stream" + pad3(idx)
}

func pad3(idx int) string {
	s := "000"
	digits := []byte(s)
	digits[2] = byte('0' + idx%10)
	digits[1] = byte('0' + (idx/10)%10)
	digits[0] = byte('0' + (idx/100)%10)
	return string(digits)
}
