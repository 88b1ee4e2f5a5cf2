package models

import "time"

// BlockKind distinguishes the two kinds of content block
type BlockKind int

const (
	TextBlock BlockKind = iota
	ImageBlock
)

func (k BlockKind) String() string {
	if k == ImageBlock {
		return "image"
	}
	return "text"
}

// Block is one piece of a post body, either a paragraph of text or an image
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text,omitempty"`

	// SourceURL is the image address as it appeared in the page
	SourceURL string `json:"source_url,omitempty"`
	// Path is the saved image file, relative to the post file. Empty until
	// the image is resolved, and stays empty when it was skipped.
	Path string `json:"path,omitempty"`
	// Ext is the original extension without the dot
	Ext string `json:"ext,omitempty"`
}

// Text builds a text block
func Text(s string) Block {
	return Block{Kind: TextBlock, Text: s}
}

// Image builds an unresolved image block
func Image(src string) Block {
	return Block{Kind: ImageBlock, SourceURL: src}
}

// Resolved reports whether an image block points at a saved file
func (b Block) Resolved() bool {
	return b.Kind == ImageBlock && b.Path != ""
}

// Post is the parsed form of a single post page
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Privacy   string    `json:"privacy"`
	Blocks    []Block   `json:"blocks"`
}

// Images returns the indexes of all image blocks, in order
func (p *Post) Images() []int {
	var idx []int
	for i, b := range p.Blocks {
		if b.Kind == ImageBlock {
			idx = append(idx, i)
		}
	}
	return idx
}
