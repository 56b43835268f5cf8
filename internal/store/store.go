// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store manages the output directory layout: primary document
// artifacts, debug snapshots, and the per-run status record. It is the only
// package that writes files.
// Implements: prd003-artifacts (R1-R4); docs/ARCHITECTURE § Artifact Store.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/patent-harvester/internal/ident"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

const (
	debugDir    = "debug"
	summaryFile = "run_summary.yaml"
)

// Store owns on-disk paths under one output directory. Debug writes are
// no-ops when debug capture is disabled, so callers capture unconditionally.
type Store struct {
	dir   string
	debug bool
}

// New validates and creates the output directory layout. An unusable output
// path is an input-level error, rejected before any network activity.
func New(dir string, debug bool) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	if debug {
		if err := os.MkdirAll(filepath.Join(dir, debugDir), 0o755); err != nil {
			return nil, fmt.Errorf("creating debug directory: %w", err)
		}
	}
	return &Store{dir: dir, debug: debug}, nil
}

// Dir returns the output directory root.
func (s *Store) Dir() string {
	return s.dir
}

// PDFPath returns the primary artifact path for a PDF document.
func (s *Store) PDFPath(name string) string {
	return filepath.Join(s.dir, name+".pdf")
}

// HTMLPath returns the primary artifact path for an HTML document.
func (s *Store) HTMLPath(name string) string {
	return filepath.Join(s.dir, name+".html")
}

// HasPDF reports whether the PDF artifact already exists.
func (s *Store) HasPDF(name string) bool {
	_, err := os.Stat(s.PDFPath(name))
	return err == nil
}

// HasHTML reports whether the HTML artifact already exists.
func (s *Store) HasHTML(name string) bool {
	_, err := os.Stat(s.HTMLPath(name))
	return err == nil
}

// SavePDF writes the primary PDF artifact and returns its path.
func (s *Store) SavePDF(name string, data []byte) (string, error) {
	path := s.PDFPath(name)
	if err := s.writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// SaveHTML writes the primary HTML artifact and returns its path.
func (s *Store) SaveHTML(name string, data []byte) (string, error) {
	path := s.HTMLPath(name)
	if err := s.writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// SaveSnapshot writes a debug screenshot named by identifier-or-query and
// step label. Returns "" without error when debug capture is off or the
// image is empty.
func (s *Store) SaveSnapshot(label string, png []byte) (string, error) {
	if !s.debug || len(png) == 0 {
		return "", nil
	}
	path := filepath.Join(s.dir, debugDir, slugify(label)+".png")
	if err := s.writeFile(path, png); err != nil {
		return "", err
	}
	return path, nil
}

// SaveDOM writes a serialized document tree debug artifact. Returns ""
// without error when debug capture is off.
func (s *Store) SaveDOM(label string, html string) (string, error) {
	if !s.debug || html == "" {
		return "", nil
	}
	path := filepath.Join(s.dir, debugDir, slugify(label)+".html")
	if err := s.writeFile(path, []byte(html)); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSummary persists the run's status record under debug/. Returns ""
// without error when debug capture is off.
func (s *Store) WriteSummary(sum *types.RunSummary) (string, error) {
	if !s.debug {
		return "", nil
	}
	data, err := yaml.Marshal(sum)
	if err != nil {
		return "", fmt.Errorf("marshaling run summary: %w", err)
	}
	path := filepath.Join(s.dir, debugDir, summaryFile)
	if err := s.writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ReadSummary loads a previously written status record.
func ReadSummary(path string) (*types.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sum types.RunSummary
	if err := yaml.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("parsing run summary: %w", err)
	}
	return &sum, nil
}

// WriteIDList saves the harvested identifier list for a topic, one canonical
// identifier per line.
func (s *Store) WriteIDList(topic string, ids []ident.ID) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id.String())
		b.WriteByte('\n')
	}
	path := filepath.Join(s.dir, slugify(topic)+"_patent_ids.txt")
	if err := s.writeFile(path, []byte(b.String())); err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes via a temporary file and renames on success, so partially
// written artifacts never appear under their final name.
func (s *Store) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// slugify makes a label safe for use as a filename stem.
func slugify(label string) string {
	label = strings.TrimSpace(label)
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
