package checkpoint

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cyarchive/pkg/logger"
)

// Header is the first line of every set file written by this package
const Header = "#cyarchive-set v1"

const headerPrefix = "#cyarchive-set "

// Set is a persisted set of content identifiers. The file is an append-only
// log with one identifier per line; the in-memory index is rebuilt on Open.
type Set struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	write  func([]byte) (int, error)
	broken error
	index  map[string]struct{}
	order  []string
	logger logger.Logger
}

// Open loads the set at path, creating it when missing. Duplicate lines,
// a missing header or a torn final line trigger a one-off compaction.
func Open(path string) (*Set, error) {
	s := &Set{
		path:   path,
		index:  make(map[string]struct{}),
		logger: logger.GetLogger().WithField("set", filepath.Base(path)),
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create set directory: %w", err)
		}
	}

	dirty, err := s.load()
	if err != nil {
		return nil, err
	}
	if dirty {
		if err := s.compact(); err != nil {
			return nil, err
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open set file: %w", err)
	}
	s.file = file
	s.write = file.Write

	s.logger.DebugWithFields("Set loaded", map[string]interface{}{
		"path":  path,
		"items": len(s.order),
	})
	return s, nil
}

// load reads the file into the index and reports whether it needs rewriting
func (s *Set) load() (bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read set file: %w", err)
	}

	dirty := false
	if len(data) > 0 && data[len(data)-1] != '\n' {
		// A crash mid-append can leave a partial identifier behind
		if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
			data = data[:i+1]
		} else {
			data = nil
		}
		dirty = true
		s.logger.Warn("Dropped torn final line")
	}

	sawHeader := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, headerPrefix):
			if line != Header {
				return false, fmt.Errorf("%s: unsupported set version %q", s.path, strings.TrimPrefix(line, headerPrefix))
			}
			sawHeader = lineNo == 1
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}
		if err := ValidateID(line); err != nil {
			s.logger.WithError(err).Warn("Dropped invalid identifier")
			dirty = true
			continue
		}

		if _, ok := s.index[line]; ok {
			dirty = true
			continue
		}
		s.index[line] = struct{}{}
		s.order = append(s.order, line)
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to scan set file: %w", err)
	}

	return dirty || !sawHeader, nil
}

// compact rewrites the file from the index atomically
func (s *Set) compact() error {
	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteByte('\n')
	for _, id := range s.order {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary set file: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write set file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync set file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close set file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace set file: %w", err)
	}

	s.logger.DebugWithFields("Set compacted", map[string]interface{}{
		"path":  s.path,
		"items": len(s.order),
	})
	return nil
}

// ValidateID rejects identifiers that cannot round-trip through the file or
// would act as a path when used in a file name
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty identifier")
	}
	if strings.HasPrefix(id, "#") {
		return fmt.Errorf("identifier %q starts with comment marker", id)
	}
	if strings.ContainsAny(id, " \t\r\n") {
		return fmt.Errorf("identifier %q contains whitespace", id)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("identifier %q contains a path element", id)
	}
	return nil
}

// Add inserts id and makes it durable before returning. It reports false
// when id was already present.
func (s *Set) Add(id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		return false, nil
	}
	if s.file == nil {
		return false, fmt.Errorf("set %s is closed", s.path)
	}

	if s.broken != nil {
		return false, fmt.Errorf("set %s is unusable: %w", s.path, s.broken)
	}

	info, err := s.file.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat set file: %w", err)
	}
	if _, err := s.write([]byte(id + "\n")); err != nil {
		// Drop a partial line so the next insert starts on its own line
		if terr := s.file.Truncate(info.Size()); terr != nil {
			s.broken = terr
		}
		return false, fmt.Errorf("failed to append to set file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return false, fmt.Errorf("failed to sync set file: %w", err)
	}

	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true, nil
}

// Has checks if id is in the set
func (s *Set) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Len returns the number of identifiers
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Items returns the identifiers in insertion order
func (s *Set) Items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]string, len(s.order))
	copy(items, s.order)
	return items
}

// Missing returns the items of s that are not in done, in insertion order
func (s *Set) Missing(done *Set) []string {
	var out []string
	for _, id := range s.Items() {
		if !done.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Path returns the backing file path
func (s *Set) Path() string {
	return s.path
}

// Close releases the file handle
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
