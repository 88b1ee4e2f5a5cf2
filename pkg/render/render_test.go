package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cyarchive/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesAllPlaceholders(t *testing.T) {
	img := models.Image("http://img/a.jpg")
	img.Path = "t_0.jpg"

	post := &models.Post{
		ID:        "1",
		Title:     "제목 <b>",
		Timestamp: time.Date(2015, 3, 10, 14, 22, 0, 0, time.UTC),
		Privacy:   "PUBLIC",
		Blocks: []models.Block{
			models.Text("first"),
			img,
			models.Image("http://img/unresolved.jpg"),
			models.Text("second"),
		},
	}

	out := string(New("{title}|{timestamp}|{privacy}\n{content}").Render(post))

	assert.Equal(t, "제목 <b>|2015-03-10T14:22:00|PUBLIC\n<p>first</p>\n<img src=\"t_0.jpg\">\n<p>second</p>", out)
}

func TestDefaultTemplate(t *testing.T) {
	post := &models.Post{Title: "hello", Timestamp: time.Date(2020, 1, 2, 3, 4, 0, 0, time.UTC), Privacy: "FRIEND"}
	out := string(Default().Render(post))

	assert.Contains(t, out, "<title>hello</title>")
	assert.Contains(t, out, "2020-01-02T03:04:00")
	assert.Contains(t, out, "FRIEND")
	assert.False(t, strings.Contains(out, "{"), "no placeholder left behind")
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.html")
	require.NoError(t, os.WriteFile(path, []byte("<h1>{title}</h1>"), 0644))

	r, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<h1>x</h1>", string(r.Render(&models.Post{Title: "x"})))

	r, err = FromFile("")
	require.NoError(t, err)
	assert.NotNil(t, r)

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}
