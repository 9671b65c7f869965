// Package exif reads and writes embedded file metadata through long-lived
// exiftool processes.
package exif

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/barasher/go-exiftool"
)

// Write failure classes.
var (
	ErrPermission        = errors.New("permission denied")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrIO                = errors.New("metadata i/o failure")
)

// ErrClosed is returned when the pool has been closed.
var ErrClosed = errors.New("exiftool pool closed")

// DefaultBinary is the exiftool executable looked up in PATH.
const DefaultBinary = "exiftool"

// Option configures a Pool.
type Option func(*Pool)

// WithBinary sets the exiftool executable.
func WithBinary(path string) Option {
	return func(p *Pool) {
		if path != "" {
			p.binary = path
		}
	}
}

// Pool holds a fixed number of exiftool -stay_open processes. Each process
// serves one caller at a time.
type Pool struct {
	binary string
	tools  chan *exiftool.Exiftool
	all    []*exiftool.Exiftool
}

// NewPool starts size exiftool processes.
func NewPool(size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{binary: DefaultBinary}
	for _, opt := range opts {
		opt(p)
	}
	p.tools = make(chan *exiftool.Exiftool, size)
	for range size {
		et, err := exiftool.NewExiftool(
			exiftool.SetExiftoolBinaryPath(p.binary),
			exiftool.PrintGroupNames("1"),
			exiftool.Charset("filename=utf8"),
			exiftool.Buffer(make([]byte, 128*1024), 16*1024*1024),
		)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("could not start exiftool: %w", err)
		}
		p.all = append(p.all, et)
		p.tools <- et
	}
	return p, nil
}

// Size returns the number of processes.
func (p *Pool) Size() int {
	return len(p.all)
}

// Acquire checks out a process. It blocks until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*exiftool.Exiftool, error) {
	select {
	case et, ok := <-p.tools:
		if !ok {
			return nil, ErrClosed
		}
		return et, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a process to the pool.
func (p *Pool) Release(et *exiftool.Exiftool) {
	if et != nil {
		p.tools <- et
	}
}

// Close stops every process.
func (p *Pool) Close() error {
	var errs []error
	for _, et := range p.all {
		if err := et.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.all = nil
	return errors.Join(errs...)
}

// Version returns the installed exiftool version.
func Version(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	out, err := exec.CommandContext(ctx, binary, "-ver").Output()
	if err != nil {
		return "", fmt.Errorf("could not run %s: %w", binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Version returns the version of the pool's exiftool binary.
func (p *Pool) Version(ctx context.Context) (string, error) {
	return Version(ctx, p.binary)
}

// classify maps an exiftool or filesystem error onto a write failure class.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermission) || errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrIO) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "not writable"),
		strings.Contains(msg, "read-only file system"):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	case strings.Contains(msg, "not yet supported"),
		strings.Contains(msg, "can't currently write"),
		strings.Contains(msg, "unknown file type"),
		strings.Contains(msg, "not a valid"),
		strings.Contains(msg, "file format error"):
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	default:
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
}
