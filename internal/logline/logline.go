// Package logline decodes tagged panel events out of worker log lines.
//
// Worker scripts write ordinary logging output and mark the lines meant for
// the dashboard with a short tag right after the level:
//
//	2025-03-27 22:03:14,456 - INFO - [#status]loaded 120 files
//	2025-03-27 22:03:15,002 - INFO - [@progress]convert (3/10) 30%
//
// A '#' tag is a normal log entry for the named panel, an '@' tag is a
// progress update. Every other line is ignored.
package logline

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes progress updates from normal log entries.
type Kind int

const (
	// KindNormal is a '#' tagged log entry.
	KindNormal Kind = iota
	// KindProgress is an '@' tagged progress update.
	KindProgress
)

// Marker returns the tag character for the kind.
func (k Kind) Marker() byte {
	if k == KindProgress {
		return '@'
	}
	return '#'
}

func (k Kind) String() string {
	if k == KindProgress {
		return "progress"
	}
	return "normal"
}

// Event is one decoded panel line.
type Event struct {
	Timestamp   string
	Level       string
	Kind        Kind
	Panel       string
	Content     string
	Raw         string
	Fingerprint string
}

// linePattern anchors at the start of the line only; anything after the tag
// is content.
var linePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3}) - (\w+) - \[([@#])([\p{L}\p{N}_]{2,})\](.*)$`)

// Decode parses raw into an Event. The second return value is false for
// blank lines and for anything that does not follow the tag grammar.
func Decode(raw string) (Event, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return Event{}, false
	}
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}

	kind := KindNormal
	if m[3] == "@" {
		kind = KindProgress
	}
	return Event{
		Timestamp:   m[1],
		Level:       m[2],
		Kind:        kind,
		Panel:       m[4],
		Content:     strings.TrimSpace(m[5]),
		Raw:         raw,
		Fingerprint: Fingerprint(m[5]),
	}, true
}

// Tag re-serialises the panel marker, e.g. "[#status]".
func (e Event) Tag() string {
	return fmt.Sprintf("[%c%s]", e.Kind.Marker(), e.Panel)
}

// Line re-serialises the event in wire format.
func (e Event) Line() string {
	return fmt.Sprintf("%s - %s - %s%s", e.Timestamp, e.Level, e.Tag(), e.Content)
}

// Fingerprint hashes the first four characters of content.
func Fingerprint(content string) string {
	prefix := content
	n := 0
	for i := range content {
		if n == 4 {
			prefix = content[:i]
			break
		}
		n++
	}
	sum := md5.Sum([]byte(prefix))
	return hex.EncodeToString(sum[:])
}

// DisplayLevel lower-cases a source level for display classification.
func DisplayLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "warn":
		return "warning"
	case "err", "critical", "fatal":
		return "error"
	case "":
		return "info"
	default:
		return l
	}
}

// ClockTime trims a wire timestamp down to its HH:MM:SS part.
func ClockTime(ts string) string {
	if i := strings.IndexByte(ts, ' '); i >= 0 {
		ts = ts[i+1:]
	}
	if i := strings.IndexByte(ts, ','); i >= 0 {
		ts = ts[:i]
	}
	return ts
}
