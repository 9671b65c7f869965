// Package pathmap maps server-side original paths onto the locally mounted
// photo library.
package pathmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Segment count bounds.
const (
	MinSegments     = 1
	MaxSegments     = 10
	DefaultSegments = 3
)

// Resolution failures.
var (
	ErrInvalidPath     = errors.New("invalid original path")
	ErrSegmentMismatch = errors.New("path has fewer segments than configured")
	ErrOutsideRoot     = errors.New("path resolves outside the photo directory")
	ErrNotFound        = errors.New("file not found")
)

// Root validation failures.
var (
	ErrRootMissing = errors.New("photo directory does not exist")
	ErrRootNotDir  = errors.New("photo directory is not a directory")
	ErrRootEmpty   = errors.New("photo directory is empty")
)

// Mapper resolves original paths by keeping their last N segments under root.
type Mapper struct {
	root     string
	segments int
}

// New creates a mapper. segments is clamped to 1..10.
func New(root string, segments int) *Mapper {
	segments = max(MinSegments, min(segments, MaxSegments))
	return &Mapper{root: filepath.Clean(root), segments: segments}
}

// Root returns the photo directory.
func (m *Mapper) Root() string {
	return m.root
}

// Segments returns the number of kept path segments.
func (m *Mapper) Segments() int {
	return m.segments
}

// Sanitize splits a path on either separator and drops empty, "." and ".."
// components.
func Sanitize(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// Relative returns the last N sanitized segments of originalPath joined
// with the OS separator.
func (m *Mapper) Relative(originalPath string) (string, error) {
	parts := Sanitize(originalPath)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, originalPath)
	}
	if len(parts) < m.segments {
		return "", fmt.Errorf("%w: %q has %d, expected at least %d", ErrSegmentMismatch, originalPath, len(parts), m.segments)
	}
	return filepath.Join(parts[len(parts)-m.segments:]...), nil
}

// Resolve maps originalPath to an existing local file.
func (m *Mapper) Resolve(originalPath string) (string, error) {
	rel, err := m.Relative(originalPath)
	if err != nil {
		return "", err
	}
	full := filepath.Join(m.root, rel)
	if !within(m.root, full) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, full)
	}

	found := ""
	for _, candidate := range candidates(m.root, rel) {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = candidate
			break
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, full)
	}

	// Symlinks must not lead out of the library.
	realRoot, err := filepath.EvalSymlinks(m.root)
	if err != nil {
		return "", fmt.Errorf("could not resolve photo directory: %w", err)
	}
	realFile, err := filepath.EvalSymlinks(found)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, found)
	}
	if !within(realRoot, realFile) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, realFile)
	}
	return found, nil
}

// candidates lists the exact path followed by its NFC and NFD spellings.
func candidates(root, rel string) []string {
	out := []string{filepath.Join(root, rel)}
	for _, form := range []norm.Form{norm.NFC, norm.NFD} {
		alt := form.String(rel)
		if alt != rel {
			out = append(out, filepath.Join(root, alt))
		}
	}
	return out
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ValidateRoot checks that the photo directory exists, is a directory and
// is not empty. It returns the number of entries.
func ValidateRoot(root string) (int, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrRootMissing, root)
		}
		return 0, fmt.Errorf("could not stat photo directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("could not read photo directory: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrRootEmpty, root)
	}
	return len(entries), nil
}
