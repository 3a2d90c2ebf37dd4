// Package panel holds the per-panel state a dashboard renders: a rolling
// buffer of log entries and a set of progress bars.
//
// A Panel is not safe for concurrent use; the owning script serialises
// access.
package panel

import (
	"fmt"

	"github.com/five82/panelwatch/internal/progress"
)

const (
	DefaultMaxLogs      = 100
	DefaultMaxCompleted = 5
)

// Kind discriminates what a panel slot holds.
type Kind int

const (
	// KindLog panels accept log entries and progress updates.
	KindLog Kind = iota
	// KindSystem panels show host metrics and ignore events.
	KindSystem
)

func (k Kind) String() string {
	if k == KindSystem {
		return "system"
	}
	return "log"
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AcceptsEvents reports whether decoded events may be routed to the kind.
func (k Kind) AcceptsEvents() bool {
	return k == KindLog
}

// Layout is the presentation metadata of a panel.
type Layout struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
	Style string `json:"style"`
}

// Entry is one normal log line as displayed.
type Entry struct {
	Level     string `json:"level"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// Bar is the latest state of one progress bar.
type Bar struct {
	ID         string              `json:"id"`
	Percentage float64             `json:"percentage"`
	Text       string              `json:"text"`
	Complete   bool                `json:"complete"`
	Progress   progress.Descriptor `json:"-"`
}

// Snapshot is a read-only copy of a panel.
type Snapshot struct {
	Name   string  `json:"name"`
	Kind   Kind    `json:"kind"`
	Layout Layout  `json:"layout"`
	Logs   []Entry `json:"logs"` // newest first
	Bars   []Bar   `json:"bars"` // insertion order
}

// Panel is the mutable state behind one panel name.
type Panel struct {
	name   string
	kind   Kind
	layout Layout

	logs *ring

	bars  map[string]Bar
	order []string
	seq   int
	// open is the unlabelled bar still in progress, if any.
	open string

	maxCompleted int
}

// Option customises a Panel.
type Option func(*Panel)

// WithMaxLogs sets the log buffer capacity.
func WithMaxLogs(n int) Option {
	return func(p *Panel) {
		if n > 0 {
			p.logs = newRing(n)
		}
	}
}

// WithMaxCompleted sets how many completed bars are kept.
func WithMaxCompleted(n int) Option {
	return func(p *Panel) {
		if n >= 0 {
			p.maxCompleted = n
		}
	}
}

// New creates an empty panel.
func New(name string, kind Kind, layout Layout, opts ...Option) *Panel {
	p := &Panel{
		name:         name,
		kind:         kind,
		layout:       layout,
		logs:         newRing(DefaultMaxLogs),
		bars:         make(map[string]Bar),
		maxCompleted: DefaultMaxCompleted,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Panel) Name() string   { return p.name }
func (p *Panel) Kind() Kind     { return p.kind }
func (p *Panel) Layout() Layout { return p.layout }

// SetLayout refreshes the presentation metadata.
func (p *Panel) SetLayout(l Layout) { p.layout = l }

// AppendLog adds an entry, evicting the oldest once the buffer is full.
func (p *Panel) AppendLog(e Entry) {
	p.logs.push(e)
}

// UpdateProgress inserts or replaces a bar. Replacing keeps the bar's
// original position. Completed bars beyond the cap are evicted oldest
// first; bars still in progress are never evicted.
func (p *Panel) UpdateProgress(id string, d progress.Descriptor, text string) {
	if _, ok := p.bars[id]; !ok {
		p.order = append(p.order, id)
	}
	p.bars[id] = Bar{
		ID:         id,
		Percentage: d.Percentage,
		Text:       text,
		Complete:   d.Complete,
		Progress:   d,
	}
	p.evictCompleted()
}

// ApplyProgress stores d under its prefix. Updates without a prefix go to
// the panel's open unlabelled bar; a new id is generated only once that bar
// has completed or been evicted.
func (p *Panel) ApplyProgress(d progress.Descriptor) string {
	id := d.Prefix
	if id == "" {
		if b, ok := p.bars[p.open]; ok && p.open != "" && !b.Complete {
			id = p.open
		} else {
			id = p.NextBarID()
		}
		p.open = id
	}
	p.UpdateProgress(id, d, d.Text())
	return id
}

// NextBarID returns an id for an unlabelled bar that is unused in the panel.
func (p *Panel) NextBarID() string {
	for {
		p.seq++
		id := fmt.Sprintf("progress-%d", p.seq)
		if _, taken := p.bars[id]; !taken {
			return id
		}
	}
}

func (p *Panel) evictCompleted() {
	var completed []string
	for _, id := range p.order {
		if p.bars[id].Complete {
			completed = append(completed, id)
		}
	}
	excess := len(completed) - p.maxCompleted
	if excess <= 0 {
		return
	}
	drop := make(map[string]bool, excess)
	for _, id := range completed[:excess] {
		drop[id] = true
		delete(p.bars, id)
	}
	kept := p.order[:0]
	for _, id := range p.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	p.order = kept
}

// Snapshot copies the panel state.
func (p *Panel) Snapshot() Snapshot {
	snap := Snapshot{
		Name:   p.name,
		Kind:   p.kind,
		Layout: p.layout,
		Logs:   p.logs.newestFirst(),
	}
	if len(p.order) > 0 {
		snap.Bars = make([]Bar, 0, len(p.order))
		for _, id := range p.order {
			snap.Bars = append(snap.Bars, p.bars[id])
		}
	}
	return snap
}

// LogCount returns the number of buffered entries.
func (p *Panel) LogCount() int { return p.logs.size }

// BarCount returns the number of tracked bars.
func (p *Panel) BarCount() int { return len(p.order) }
