package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"cyarchive/pkg/models"
)

var unsafeRunes = regexp.MustCompile(`[^0-9A-Za-z\p{Hangul}]`)

// SanitizeTitle replaces every rune that is not an ASCII letter, digit or
// Hangul syllable with an underscore
func SanitizeTitle(title string) string {
	return unsafeRunes.ReplaceAllString(title, "_")
}

// Manager lays out the archive tree and writes files into it
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// PostDir returns root/YYYY/MM for the post's timestamp
func (m *Manager) PostDir(post *models.Post) string {
	return filepath.Join(m.outputDir,
		fmt.Sprintf("%04d", post.Timestamp.Year()),
		fmt.Sprintf("%02d", int(post.Timestamp.Month())))
}

// BaseName returns <sanitized-title>_<id> without extension. The id goes
// through the same sanitizer so it can never name another directory.
func (m *Manager) BaseName(post *models.Post) string {
	return SanitizeTitle(post.Title) + "_" + SanitizeTitle(post.ID)
}

// PostPath returns the path of the rendered post file
func (m *Manager) PostPath(post *models.Post) string {
	return filepath.Join(m.PostDir(post), m.BaseName(post)+".html")
}

// ImageName returns the file name of the index-th image of post
func (m *Manager) ImageName(post *models.Post, index int, ext string) string {
	return fmt.Sprintf("%s_%d.%s", SanitizeTitle(post.Title), index, ext)
}

// SaveImage writes an image next to the post file and returns its name
// relative to the post
func (m *Manager) SaveImage(post *models.Post, index int, ext string, r io.Reader) (string, error) {
	name := m.ImageName(post, index, ext)
	if err := WriteAtomic(filepath.Join(m.PostDir(post), name), r); err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", name, err)
	}
	return name, nil
}

// SavePost writes the rendered document and returns its path
func (m *Manager) SavePost(post *models.Post, document []byte) (string, error) {
	target := m.PostPath(post)
	if err := WriteAtomic(target, bytes.NewReader(document)); err != nil {
		return "", fmt.Errorf("failed to save post %s: %w", post.ID, err)
	}
	return target, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ImageExt extracts the lowercase extension, without the dot, from an image URL
func ImageExt(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(src), "."))
}

// WriteAtomic writes r to target through a temporary file and a rename,
// creating parent directories as needed
func WriteAtomic(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := target + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
