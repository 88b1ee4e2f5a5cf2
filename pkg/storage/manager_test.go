package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cyarchive/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePost() *models.Post {
	return &models.Post{
		ID:        "1234567",
		Title:     "봄 나들이! (2015)",
		Timestamp: time.Date(2015, time.March, 10, 14, 22, 0, 0, time.UTC),
		Privacy:   "PUBLIC",
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello_world"},
		{"봄 나들이!", "봄_나들이_"},
		{"a/b\\c:d", "a_b_c_d"},
		{"café", "caf_"},
		{"日本", "__"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTitle(tt.in))
		})
	}
}

func TestPaths(t *testing.T) {
	root := t.TempDir()
	manager, err := NewManager(root)
	require.NoError(t, err)

	post := samplePost()
	assert.Equal(t, filepath.Join(root, "2015", "03"), manager.PostDir(post))
	assert.Equal(t, filepath.Join(root, "2015", "03", "봄_나들이___2015__1234567.html"), manager.PostPath(post))
	assert.Equal(t, "봄_나들이___2015__0.png", manager.ImageName(post, 0, "png"))
}

func TestPostPathStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	manager, err := NewManager(root)
	require.NoError(t, err)

	post := samplePost()
	post.ID = "1/../../../../escaped"
	path := manager.PostPath(post)

	assert.Equal(t, filepath.Join(root, "2015", "03"), filepath.Dir(path))
	assert.Equal(t, "봄_나들이___2015__1_____________escaped.html", filepath.Base(path))
}

func TestSaveImageAndPost(t *testing.T) {
	root := t.TempDir()
	manager, err := NewManager(root)
	require.NoError(t, err)
	post := samplePost()

	name, err := manager.SaveImage(post, 1, "jpg", bytes.NewReader([]byte("jpeg-bytes")))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(manager.PostDir(post), name))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	target, err := manager.SavePost(post, []byte("<html></html>"))
	require.NoError(t, err)
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	_, err = os.Stat(target + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, "jpg", ImageExt("http://c.cyworld.com/img/a/B.JPG?type=w1"))
	assert.Equal(t, "png", ImageExt("https://img/x.png#frag"))
	assert.Equal(t, "", ImageExt("https://img/noext"))
	assert.Equal(t, "php", ImageExt("https://img/view.php"))
}
