package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cyarchive/pkg/models"
	"cyarchive/pkg/storage"
)

// PostMetadata is the sidecar written next to every archived post
type PostMetadata struct {
	// Core identifiers
	ID        string `json:"id"`
	SourceURL string `json:"source_url"`
	File      string `json:"file"`

	// Content
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Privacy   string    `json:"privacy"`
	TextCount int       `json:"text_blocks"`
	Images    []Image   `json:"images,omitempty"`

	DownloadedAt time.Time `json:"downloaded_at"`
}

// Image records where an embedded image came from and what became of it
type Image struct {
	Source  string `json:"source"`
	File    string `json:"file,omitempty"`
	Skipped string `json:"skipped,omitempty"`
}

// FromPost builds the sidecar for a resolved post. skipped maps block index
// to the reason an image was not saved.
func FromPost(post *models.Post, sourceURL, postFile string, skipped map[int]string) *PostMetadata {
	meta := &PostMetadata{
		ID:           post.ID,
		SourceURL:    sourceURL,
		File:         filepath.Base(postFile),
		Title:        post.Title,
		Timestamp:    post.Timestamp,
		Privacy:      post.Privacy,
		DownloadedAt: time.Now(),
	}

	for i, b := range post.Blocks {
		switch b.Kind {
		case models.TextBlock:
			meta.TextCount++
		case models.ImageBlock:
			meta.Images = append(meta.Images, Image{
				Source:  b.SourceURL,
				File:    b.Path,
				Skipped: skipped[i],
			})
		}
	}

	return meta
}

// PathFor returns the sidecar path for a post file
func PathFor(postPath string) string {
	return strings.TrimSuffix(postPath, filepath.Ext(postPath)) + ".json"
}

// Save writes the sidecar next to postPath
func (m *PostMetadata) Save(postPath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := storage.WriteAtomic(PathFor(postPath), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Load reads the sidecar of postPath
func Load(postPath string) (*PostMetadata, error) {
	return load(PathFor(postPath))
}

func load(metadataPath string) (*PostMetadata, error) {
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta PostMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// Scan walks the archive and indexes every sidecar whose post file still
// exists by identifier. Orphaned or unreadable sidecars are returned
// separately.
func Scan(root string) (map[string]*PostMetadata, []string, error) {
	found := make(map[string]*PostMetadata)
	var broken []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		meta, err := load(path)
		if err != nil {
			broken = append(broken, path)
			return nil
		}
		if _, err := os.Stat(filepath.Join(filepath.Dir(path), meta.File)); err != nil {
			broken = append(broken, path)
			return nil
		}
		found[meta.ID] = meta
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan archive: %w", err)
	}

	return found, broken, nil
}
