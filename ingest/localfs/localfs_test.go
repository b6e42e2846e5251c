package localfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, data, 0644))
}

func names(files []ingest.File) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.ParentPath()+f.Name())
	}
	return out
}

func newTree(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, root, "Users/alice/AppData/Local/Google/Chrome/User Data/Default/History", []byte("sqlite"))
	writeFile(t, root, "Users/alice/AppData/Roaming/Mozilla/Firefox/Profiles/x.default/places.sqlite", []byte("sqlite"))
	writeFile(t, root, "Users/alice/Favorites/Example.URL", []byte("[InternetShortcut]\nURL=https://example.com\n"))
	writeFile(t, root, "Users/alice/Pictures/cat.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0})
	writeFile(t, root, "$Unalloc/Unalloc_1_0_4096", []byte{0, 0, 0})
	return root
}

func TestOpen_NotADirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "plain", []byte("x"))

	_, err := Open(filepath.Join(root, "plain"), Options{})
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))

	_, err = Open(filepath.Join(root, "missing"), Options{})
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	root := newTree(t)
	ds, err := Open(root, Options{Name: "img1"})
	require.NoError(t, err)
	assert.Equal(t, "img1", ds.Name())

	files, err := ds.Files(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 5)

	for _, f := range files {
		if f.Name() == "Unalloc_1_0_4096" {
			assert.Equal(t, ingest.FileTypeUnallocBlocks, f.Type())
			assert.Equal(t, "/$Unalloc/", f.ParentPath())
		} else {
			assert.Equal(t, ingest.FileTypeFS, f.Type())
		}
	}
}

func TestFindFiles(t *testing.T) {
	ds, err := Open(newTree(t), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	files, err := ds.FindFiles(ctx, "History", "Chrome")
	require.NoError(t, err)
	assert.Equal(t, []string{"/Users/alice/AppData/Local/Google/Chrome/User Data/Default/History"}, names(files))

	// Case-insensitive name glob and parent substring
	files, err = ds.FindFiles(ctx, "*.url", "favorites")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Example.URL", files[0].Name())
	assert.Equal(t, ds.Name()+":Users/alice/Favorites/Example.URL", files[0].ID())

	files, err = ds.FindFiles(ctx, "places.sqlite", "")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	files, err = ds.FindFiles(ctx, "History", "Firefox")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFiles_Cancelled(t *testing.T) {
	ds, err := Open(newTree(t), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ds.Files(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReadHeader(t *testing.T) {
	ds, err := Open(newTree(t), Options{})
	require.NoError(t, err)

	files, err := ds.FindFiles(context.Background(), "*.jpg", "")
	require.NoError(t, err)
	require.Len(t, files, 1)

	header, err := files[0].ReadHeader(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, header)

	// Shorter than requested
	header, err = files[0].ReadHeader(64)
	require.NoError(t, err)
	assert.Len(t, header, 4)
	assert.Equal(t, int64(4), files[0].Size())
}

func TestKnownStatus(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "benign.dll", []byte("benign"))
	writeFile(t, root, "evil.exe", []byte("evil"))
	writeFile(t, root, "other.txt", []byte("other"))

	benign := md5.Sum([]byte("benign"))
	evil := md5.Sum([]byte("evil"))
	list := "# hash set\n" +
		hex.EncodeToString(benign[:]) + "\n\n" +
		"!" + hex.EncodeToString(evil[:]) + "\n"
	listPath := filepath.Join(t.TempDir(), "known.txt")
	require.NoError(t, os.WriteFile(listPath, []byte(list), 0644))

	known, err := LoadKnownSet(listPath)
	require.NoError(t, err)
	assert.Equal(t, 2, known.Len())

	ds, err := Open(root, Options{Known: known})
	require.NoError(t, err)
	files, err := ds.Files(context.Background())
	require.NoError(t, err)

	got := make(map[string]ingest.KnownStatus)
	for _, f := range files {
		got[f.Name()] = f.Known()
	}
	assert.Equal(t, ingest.Known, got["benign.dll"])
	assert.Equal(t, ingest.KnownBad, got["evil.exe"])
	assert.Equal(t, ingest.Unknown, got["other.txt"])
}

func TestLoadKnownSet_Malformed(t *testing.T) {
	listPath := filepath.Join(t.TempDir(), "known.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("not-a-hash\n"), 0644))

	_, err := LoadKnownSet(listPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedContent))
}

func TestKnownSet_Nil(t *testing.T) {
	var k *KnownSet
	assert.Zero(t, k.Len())
	assert.Equal(t, ingest.Unknown, k.Lookup("abc"))
}
