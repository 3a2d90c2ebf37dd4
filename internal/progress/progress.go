// Package progress parses the content of '@' tagged lines into progress bar
// state.
package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Descriptor is a parsed progress update.
type Descriptor struct {
	Prefix      string
	Current     int
	Total       int
	HasFraction bool
	Percentage  float64
	Complete    bool
	// Fraction reproduces the original notation, e.g. "(5/10)" or "[5/10]".
	Fraction string
}

type shape struct {
	re          *regexp.Regexp
	open, close string
	fraction    bool
}

// Fraction forms are tried before the plain form because they are strictly
// more specific.
var shapes = []shape{
	{re: regexp.MustCompile(`^(.*?)\s+\((\d+)/(\d+)\)\s+(\d+(?:\.\d+)?)%$`), open: "(", close: ")", fraction: true},
	{re: regexp.MustCompile(`^(.*?)\s+\[(\d+)/(\d+)\]\s+(\d+(?:\.\d+)?)%$`), open: "[", close: "]", fraction: true},
	{re: regexp.MustCompile(`^(.*?)(\d+(?:\.\d+)?)%$`)},
}

// Extract parses content. It returns false when none of the known shapes
// match; such updates must be dropped.
func Extract(content string) (Descriptor, bool) {
	for _, s := range shapes {
		m := s.re.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		if !s.fraction {
			pct, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return Descriptor{}, false
			}
			return Descriptor{
				Prefix:     strings.TrimSpace(m[1]),
				Percentage: pct,
				Complete:   pct >= 100.0,
			}, true
		}

		cur, err := strconv.Atoi(m[2])
		if err != nil {
			return Descriptor{}, false
		}
		total, err := strconv.Atoi(m[3])
		if err != nil {
			return Descriptor{}, false
		}
		pct, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return Descriptor{}, false
		}
		return Descriptor{
			Prefix:      strings.TrimSpace(m[1]),
			Current:     cur,
			Total:       total,
			HasFraction: true,
			Percentage:  pct,
			Complete:    pct >= 100.0,
			Fraction:    fmt.Sprintf("%s%d/%d%s", s.open, cur, total, s.close),
		}, true
	}
	return Descriptor{}, false
}

// Text renders the caption shown under a progress bar.
func (d Descriptor) Text() string {
	var b strings.Builder
	b.WriteString(d.Prefix)
	if d.HasFraction {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(d.Fraction)
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%.1f%%", d.Percentage)
	return b.String()
}

// Ratio returns the percentage as a fraction clamped to [0, 1].
func (d Descriptor) Ratio() float64 {
	r := d.Percentage / 100
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
