package diskimage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrOutOfTags is returned when a tag file has fewer lines than the program
// has blocks.
var ErrOutOfTags = errors.New("ran out of tags in the tag file")

// TagSource yields one line of display text per program block.
type TagSource interface {
	Next() (string, error)
}

// DefaultTags counts loaded kilobytes: "READ 0.5K...", "READ 1.0K...", ...
type DefaultTags struct {
	n int
}

// Next implements TagSource.
func (d *DefaultTags) Next() (string, error) {
	d.n++
	return "READ " + strconv.FormatFloat(0.5*float64(d.n), 'f', 1, 64) + "K...", nil
}

// FileTags reads tags one per line.
type FileTags struct {
	sc   *bufio.Scanner
	line int
}

// NewFileTags reads tags from r.
func NewFileTags(r io.Reader) *FileTags {
	return &FileTags{sc: bufio.NewScanner(r)}
}

// Next implements TagSource.
func (f *FileTags) Next() (string, error) {
	if !f.sc.Scan() {
		if err := f.sc.Err(); err != nil {
			return "", fmt.Errorf("read tags: %w", err)
		}
		return "", fmt.Errorf("%w after %d lines", ErrOutOfTags, f.line)
	}
	f.line++
	return strings.TrimRight(f.sc.Text(), "\r"), nil
}
