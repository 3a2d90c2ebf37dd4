package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnreadable reports unread bytes that none of the configured encodings
// could decode.
var ErrUnreadable = errors.New("log data unreadable with configured encodings")

// DefaultMaxReadBytes bounds a single incremental read.
const DefaultMaxReadBytes int64 = 4 << 20

// Chunk is the result of one incremental read.
type Chunk struct {
	Lines    []string
	Offset   int64
	Encoding string
	// Truncated is set when the file is shorter than the requested offset.
	Truncated bool
}

type options struct {
	maxRead   int64
	encodings []string
	preferred string
}

// Option customises ReadFrom.
type Option func(*options)

// WithMaxReadBytes caps the bytes consumed by one call.
func WithMaxReadBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRead = n
		}
	}
}

// WithEncodings replaces the encoding fallback order.
func WithEncodings(names ...string) Option {
	return func(o *options) {
		if len(names) > 0 {
			o.encodings = names
		}
	}
}

// WithPreferredEncoding tries name before the fallback order. Callers pass
// back the Chunk.Encoding of their previous read so a file keeps the
// encoding it was first decoded with.
func WithPreferredEncoding(name string) Option {
	return func(o *options) {
		o.preferred = strings.ToLower(strings.TrimSpace(name))
	}
}

// order returns the encodings to try, preferred first, without repeats.
func (o options) order() []string {
	if o.preferred == "" {
		return o.encodings
	}
	pc, ok := lookupCodec(o.preferred)
	if !ok {
		return o.encodings
	}
	out := []string{o.preferred}
	for _, name := range o.encodings {
		if c, ok := lookupCodec(name); ok && c.name == pc.name {
			continue
		}
		out = append(out, name)
	}
	return out
}

// ReadFrom reads the complete lines appended to path since offset.
//
// The returned offset counts raw bytes and never moves backwards. A missing
// file yields an empty chunk and a nil error.
func ReadFrom(path string, offset int64, opts ...Option) (Chunk, error) {
	o := options{maxRead: DefaultMaxReadBytes, encodings: DefaultEncodings}
	for _, opt := range opts {
		opt(&o)
	}
	if offset < 0 {
		offset = 0
	}
	chunk := Chunk{Offset: offset}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return chunk, nil
		}
		return chunk, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return chunk, fmt.Errorf("stat log: %w", err)
	}
	size := info.Size()
	if size < offset {
		chunk.Truncated = true
		return chunk, nil
	}
	if size == offset {
		return chunk, nil
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return chunk, fmt.Errorf("seek log: %w", err)
	}
	window := min(size-offset, o.maxRead)
	buf := make([]byte, window)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return chunk, fmt.Errorf("read log: %w", err)
	}
	buf = buf[:n]
	if len(buf) == 0 {
		return chunk, nil
	}
	full := int64(len(buf)) == o.maxRead

	for _, name := range o.order() {
		c, ok := lookupCodec(name)
		if !ok {
			continue
		}
		end := c.completeLen(buf)
		if end == 0 {
			if !full {
				// Only a partial line so far.
				return chunk, nil
			}
			end = len(buf)
			if c.wide {
				end -= end % 2
			}
		}
		text, ok := c.decode(buf[:end])
		if !ok {
			continue
		}
		chunk.Lines = splitLines(text)
		chunk.Offset = offset + int64(end)
		chunk.Encoding = c.name
		return chunk, nil
	}
	return chunk, fmt.Errorf("%w: %s at offset %d", ErrUnreadable, path, offset)
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}
