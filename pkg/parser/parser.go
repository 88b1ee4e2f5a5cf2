package parser

import (
	"fmt"
	"strings"
	"time"

	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/models"

	"github.com/PuerkitoBio/goquery"
)

const (
	// TimestampLayout matches the date and time tokens of the metadata line
	TimestampLayout = "2006.01.02 15:04"

	metadataSelector = "div.view1 p.info"
	titleSelector    = "h3#cyTitle"
	sectionSelector  = "div#contentArea section"
	contentSelector  = "div#contentArea"
)

// Section kinds found in post bodies
const (
	KindImage = "imageBox"
	KindText  = "textBox"
	KindAudio = "audioBox"
	KindFont  = "fontBox"
	KindLink  = "linkBox"
	KindMedia = "mediaBox"
	KindFile  = "fileBox"
)

// IgnoredKinds are recognised but produce no blocks. Their content is not
// archived.
var IgnoredKinds = []string{KindAudio, KindFont, KindLink, KindMedia, KindFile}

// DeletedPageSelectors mark the page served for removed or private posts
var DeletedPageSelectors = []string{"div.errorPage", "div#errorBox"}

// KST is the zone post timestamps are written in
var KST = time.FixedZone("KST", 9*60*60)

// Parser turns single-post markup into a models.Post
type Parser struct {
	location *time.Location
	logger   logger.Logger
}

// New creates a parser that logs data-quality warnings to log
func New(log logger.Logger) *Parser {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Parser{location: KST, logger: log}
}

// Parse extracts the post. Any missing element fails with
// errors.ErrStructureMismatch so the caller can retry.
func (p *Parser) Parse(markup, id string) (*models.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStructureMismatch, err, "post %s: unreadable markup", id)
	}

	post := &models.Post{ID: id}

	post.Timestamp, post.Privacy, err = p.parseMetadata(doc)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}

	title := doc.Find(titleSelector).First()
	if title.Length() == 0 {
		return nil, errs.StructureMismatch("post %s: missing %s", id, titleSelector)
	}
	post.Title = strings.TrimSpace(title.Text())

	if doc.Find(contentSelector).Length() == 0 {
		return nil, errs.StructureMismatch("post %s: missing %s", id, contentSelector)
	}

	doc.Find(sectionSelector).Each(func(i int, s *goquery.Selection) {
		post.Blocks = append(post.Blocks, p.parseSection(id, s)...)
	})

	return post, nil
}

// parseMetadata reads "<date> <time> <privacy>" from the last non-empty line
func (p *Parser) parseMetadata(doc *goquery.Document) (time.Time, string, error) {
	info := doc.Find(metadataSelector).First()
	if info.Length() == 0 {
		return time.Time{}, "", errs.StructureMismatch("missing %s", metadataSelector)
	}
	info.Find("br").ReplaceWithHtml("\n")

	var last string
	for _, line := range strings.Split(info.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			last = line
		}
	}

	tokens := strings.Fields(last)
	if len(tokens) != 3 {
		return time.Time{}, "", errs.StructureMismatch("metadata line %q has %d tokens, want 3", last, len(tokens))
	}

	ts, err := time.ParseInLocation(TimestampLayout, tokens[0]+" "+tokens[1], p.location)
	if err != nil {
		return time.Time{}, "", errs.Wrap(errs.ErrorTypeStructureMismatch, err, "metadata timestamp %q", tokens[0]+" "+tokens[1])
	}

	return ts, tokens[2], nil
}

func (p *Parser) parseSection(id string, s *goquery.Selection) []models.Block {
	kind := sectionKind(s)

	switch kind {
	case KindImage:
		var blocks []models.Block
		s.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
			if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
				blocks = append(blocks, models.Image(src))
			}
		})
		return blocks

	case KindText:
		var blocks []models.Block
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#comment" {
				return
			}
			if text := strings.TrimSpace(child.Text()); text != "" {
				blocks = append(blocks, models.Text(text))
			}
		})
		return blocks

	case KindAudio, KindFont, KindLink, KindMedia, KindFile:
		p.logger.WithFields(map[string]interface{}{
			"content_id": id,
			"kind":       kind,
		}).Debug("Ignoring section kind")
		return nil

	default:
		p.logger.WithFields(map[string]interface{}{
			"content_id": id,
			"class":      s.AttrOr("class", ""),
		}).Warn("Unknown section kind")
		return nil
	}
}

// sectionKind returns the first known kind among the section's classes
func sectionKind(s *goquery.Selection) string {
	for _, class := range strings.Fields(s.AttrOr("class", "")) {
		switch class {
		case KindImage, KindText, KindAudio, KindFont, KindLink, KindMedia, KindFile:
			return class
		}
	}
	return ""
}

// IsDeletedPage reports whether markup is the site's error page for a
// removed or inaccessible post
func IsDeletedPage(markup string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return false
	}
	for _, sel := range DeletedPageSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
