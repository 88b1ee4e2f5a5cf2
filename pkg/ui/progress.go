package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20
)

// Progress renders crawl and download progress on a single terminal line.
// In verbose mode every post gets its own line instead.
type Progress struct {
	mu sync.Mutex

	total      int
	processed  int
	downloaded int
	skipped    int
	failed     int
	images     int
	verbose    bool
	startTime  time.Time
	now        func() time.Time
}

// NewProgress tracks total pending posts
func NewProgress(total int, verbose bool) *Progress {
	return &Progress{
		total:     total,
		verbose:   verbose,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Found reports the identifier count while crawling
func Found(known int) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(output, "\r%s %d posts known", Magenta("[SCANNING]"), known)
}

// Post records the outcome of one post. outcome is one of succeeded,
// skipped, failed or fatal.
func (p *Progress) Post(id, outcome string, images int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	switch outcome {
	case "succeeded":
		p.downloaded++
		p.images += images
	case "skipped":
		p.skipped++
	default:
		p.failed++
	}

	if IsQuietMode() {
		return
	}
	if p.verbose {
		p.printLine(id, outcome, images, err)
		return
	}
	p.printBar(id)
}

func (p *Progress) printLine(id, outcome string, images int, err error) {
	switch outcome {
	case "succeeded":
		fmt.Fprintf(output, "%s %s • %d images\n", Green("✓"), id, images)
	case "skipped":
		fmt.Fprintf(output, "%s %s • deleted\n", Yellow("↷"), id)
	default:
		fmt.Fprintf(output, "%s %s • %v\n", Red("✗"), id, err)
	}
}

func (p *Progress) printBar(id string) {
	line := fmt.Sprintf("\r%s %d/%d • %s • %s",
		Cyan(p.bar()),
		p.processed,
		p.total,
		p.eta(),
		id,
	)
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}
	fmt.Fprintf(output, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

func (p *Progress) bar() string {
	filled := barWidth
	if p.total > 0 && p.processed < p.total {
		filled = p.processed * barWidth / p.total
	}
	return "[" + strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled) + "]"
}

func (p *Progress) eta() string {
	if p.processed == 0 || p.processed >= p.total {
		return "--"
	}
	elapsed := p.now().Sub(p.startTime)
	perPost := elapsed / time.Duration(p.processed)
	return FormatDuration(perPost * time.Duration(p.total-p.processed))
}

// Complete prints the run summary
func (p *Progress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if IsQuietMode() {
		return
	}
	fmt.Fprintf(output, "\n\n%s Archived %d posts (%d images) in %s\n",
		Green("✓"), p.downloaded, p.images, FormatDuration(p.now().Sub(p.startTime)))
	if p.skipped > 0 {
		fmt.Fprintf(output, "  %s %d deleted posts skipped\n", Dim("•"), p.skipped)
	}
	if p.failed > 0 {
		fmt.Fprintf(output, "  %s %d posts failed; run again to retry them\n", Dim("•"), p.failed)
	}
}

// Counts returns downloaded, skipped and failed so far
func (p *Progress) Counts() (downloaded, skipped, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloaded, p.skipped, p.failed
}

// FormatDuration formats a duration in a compact human form
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
