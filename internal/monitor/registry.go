package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/five82/panelwatch/internal/logline"
	"github.com/five82/panelwatch/internal/logtail"
	"github.com/five82/panelwatch/internal/panel"
	"github.com/five82/panelwatch/internal/progress"
)

const (
	// DefaultTimeout is the liveness window used when none is configured.
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxConcurrentReads bounds PollAll file reads.
	DefaultMaxConcurrentReads = 8
)

// ErrUnknownScript is returned for ids that were never registered or have
// been cleared.
var ErrUnknownScript = errors.New("unknown script")

// PanelSpec declares one panel of a script layout.
type PanelSpec struct {
	Name   string
	Kind   panel.Kind
	Layout panel.Layout
}

// Registration describes a script to monitor.
type Registration struct {
	ID      string
	Name    string
	LogFile string
	Panels  []PanelSpec
}

// PollResult summarises one poll of one script.
type PollResult struct {
	Lines   int   // lines read from the file
	Applied int   // events that changed a panel
	Dropped int   // tagged lines whose payload was rejected
	Ignored int   // lines that were not panel events
	Offset  int64 // offset after the read
	Reset   bool  // the file shrank and was re-read from the start
	// Warning is set the first time an unreadable byte range is seen.
	Warning string
}

// ScriptSnapshot is a read-only copy of one script's state.
type ScriptSnapshot struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	LogFile    string           `json:"log_file"`
	Panels     []panel.Snapshot `json:"panels"`
	Active     bool             `json:"active"`
	Started    time.Time        `json:"started"`
	LastUpdate time.Time        `json:"last_update"`
	Elapsed    time.Duration    `json:"elapsed"`
	Offset     int64            `json:"offset"`
}

// Panel returns the named panel snapshot.
func (s ScriptSnapshot) Panel(name string) (panel.Snapshot, bool) {
	for _, p := range s.Panels {
		if p.Name == name {
			return p, true
		}
	}
	return panel.Snapshot{}, false
}

type script struct {
	mu sync.Mutex

	id      string
	name    string
	logFile string

	offset     int64
	encoding   string // of the last successful read
	started    time.Time
	lastUpdate time.Time
	unreadable bool

	panels map[string]*panel.Panel
	order  []string
}

// Registry tracks every monitored script.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]*script

	logger        *zap.Logger
	now           func() time.Time
	timeout       time.Duration
	maxReads      int
	tailOpts      []logtail.Option
	panelOpts     []panel.Option
	panelDefaults func(name string) panel.Layout
}

// Option customises a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTimeout sets the liveness window used by snapshots.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxConcurrentReads bounds how many files PollAll reads at once.
func WithMaxConcurrentReads(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxReads = n
		}
	}
}

// WithTailOptions passes options through to logtail.ReadFrom.
func WithTailOptions(opts ...logtail.Option) Option {
	return func(r *Registry) {
		r.tailOpts = append(r.tailOpts, opts...)
	}
}

// WithPanelOptions applies opts to every panel the registry creates.
func WithPanelOptions(opts ...panel.Option) Option {
	return func(r *Registry) {
		r.panelOpts = append(r.panelOpts, opts...)
	}
}

// WithPanelDefaults sets the layout given to panels that appear in a log
// without being declared.
func WithPanelDefaults(fn func(name string) panel.Layout) Option {
	return func(r *Registry) {
		if fn != nil {
			r.panelDefaults = fn
		}
	}
}

// DefaultPanelLayout titles an undeclared panel after its name.
func DefaultPanelLayout(name string) panel.Layout {
	return panel.Layout{Title: name, Style: "default"}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		scripts:       make(map[string]*script),
		logger:        zap.NewNop(),
		now:           time.Now,
		timeout:       DefaultTimeout,
		maxReads:      DefaultMaxConcurrentReads,
		panelDefaults: DefaultPanelLayout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register starts tracking a script. It reports false when the id or log
// file is missing. Registering a known id keeps its offset and start time
// and only refreshes the name and layout.
func (r *Registry) Register(reg Registration) bool {
	id := strings.TrimSpace(reg.ID)
	logFile := strings.TrimSpace(reg.LogFile)
	if id == "" || logFile == "" {
		return false
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		name = id
	}

	r.mu.Lock()
	s, ok := r.scripts[id]
	if !ok {
		now := r.now()
		s = &script{
			id:         id,
			logFile:    logFile,
			started:    now,
			lastUpdate: now,
			panels:     make(map[string]*panel.Panel),
		}
		r.scripts[id] = s
		r.logger.Info("script registered", zap.String("script", id), zap.String("log_file", logFile))
	}
	r.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	for _, spec := range reg.Panels {
		if spec.Name == "" {
			continue
		}
		if p, exists := s.panels[spec.Name]; exists {
			p.SetLayout(spec.Layout)
			continue
		}
		s.addPanel(panel.New(spec.Name, spec.Kind, spec.Layout, r.panelOpts...))
	}
	return true
}

func (s *script) addPanel(p *panel.Panel) {
	s.panels[p.Name()] = p
	s.order = append(s.order, p.Name())
}

func (r *Registry) lookup(id string) *script {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scripts[id]
}

// Poll reads whatever the script appended since the last poll and applies
// it. Only an unknown id is an error.
func (r *Registry) Poll(id string) (PollResult, error) {
	s := r.lookup(id)
	if s == nil {
		return PollResult{}, fmt.Errorf("poll %s: %w", id, ErrUnknownScript)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.poll(s), nil
}

func (r *Registry) poll(s *script) PollResult {
	res := PollResult{Offset: s.offset}

	chunk, ok := r.read(s, &res)
	if !ok {
		return res
	}
	s.offset = chunk.Offset
	res.Offset = chunk.Offset
	res.Lines = len(chunk.Lines)

	for _, line := range chunk.Lines {
		ev, ok := logline.Decode(line)
		if !ok {
			res.Ignored++
			continue
		}
		if r.apply(s, ev) {
			res.Applied++
		} else {
			res.Dropped++
		}
	}
	if res.Applied > 0 {
		s.lastUpdate = r.now()
	}
	return res
}

func (r *Registry) read(s *script, res *PollResult) (logtail.Chunk, bool) {
	opts := append([]logtail.Option{logtail.WithPreferredEncoding(s.encoding)}, r.tailOpts...)
	chunk, err := logtail.ReadFrom(s.logFile, s.offset, opts...)
	if err == nil && chunk.Truncated {
		r.logger.Info("log file shrank, reading from start",
			zap.String("script", s.id), zap.Int64("offset", s.offset))
		s.offset = 0
		res.Reset = true
		res.Offset = 0
		chunk, err = logtail.ReadFrom(s.logFile, 0, opts...)
	}
	if err == nil {
		if chunk.Encoding != "" {
			s.encoding = chunk.Encoding
		}
		if s.unreadable {
			r.logger.Info("log readable again", zap.String("script", s.id))
		}
		s.unreadable = false
		return chunk, true
	}

	if errors.Is(err, logtail.ErrUnreadable) {
		if !s.unreadable {
			s.unreadable = true
			res.Warning = err.Error()
			r.logger.Warn("log unreadable", zap.String("script", s.id),
				zap.Int64("offset", s.offset), zap.Error(err))
		}
		return chunk, false
	}
	r.logger.Warn("read log failed", zap.String("script", s.id), zap.Error(err))
	return chunk, false
}

func (r *Registry) apply(s *script, ev logline.Event) bool {
	p, ok := s.panels[ev.Panel]
	if !ok {
		p = panel.New(ev.Panel, panel.KindLog, r.panelDefaults(ev.Panel), r.panelOpts...)
		s.addPanel(p)
	}
	if !p.Kind().AcceptsEvents() {
		return false
	}

	switch ev.Kind {
	case logline.KindProgress:
		d, ok := progress.Extract(ev.Content)
		if !ok {
			return false
		}
		p.ApplyProgress(d)
	default:
		p.AppendLog(panel.Entry{
			Level:     logline.DisplayLevel(ev.Level),
			Timestamp: logline.ClockTime(ev.Timestamp),
			Content:   ev.Content,
		})
	}
	return true
}

// PollAll polls every registered script, reading at most the configured
// number of files at once. Scripts cleared mid-cycle are left out of the
// result.
func (r *Registry) PollAll(ctx context.Context) map[string]PollResult {
	ids := r.IDs()
	results := make(map[string]PollResult, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxReads)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.Poll(id)
			if err != nil {
				return nil
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// IsActive reports whether the script has shown activity within timeout.
// A non-positive timeout means DefaultTimeout.
func (r *Registry) IsActive(id string, timeout time.Duration) bool {
	s := r.lookup(id)
	if s == nil {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.active(s, timeout)
}

func (r *Registry) active(s *script, timeout time.Duration) bool {
	info, err := os.Stat(s.logFile)
	if err != nil {
		return false
	}
	now := r.now()
	if now.Sub(s.lastUpdate) > timeout {
		return false
	}
	return now.Sub(info.ModTime()) <= timeout
}

// Clear forgets a script. A later Register starts again from offset zero.
func (r *Registry) Clear(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scripts[id]; !ok {
		return false
	}
	delete(r.scripts, id)
	r.logger.Info("script cleared", zap.String("script", id))
	return true
}

// ClearAll forgets every script.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.scripts) > 0 {
		r.logger.Info("all scripts cleared", zap.Int("count", len(r.scripts)))
	}
	r.scripts = make(map[string]*script)
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.scripts))
	for id := range r.scripts {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Snapshot copies one script's state.
func (r *Registry) Snapshot(id string) (ScriptSnapshot, bool) {
	s := r.lookup(id)
	if s == nil {
		return ScriptSnapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.snapshot(s), true
}

// Snapshots copies every script, sorted by id.
func (r *Registry) Snapshots() []ScriptSnapshot {
	ids := r.IDs()
	out := make([]ScriptSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := r.Snapshot(id); ok {
			out = append(out, snap)
		}
	}
	return out
}

func (r *Registry) snapshot(s *script) ScriptSnapshot {
	snap := ScriptSnapshot{
		ID:         s.id,
		Name:       s.name,
		LogFile:    s.logFile,
		Active:     r.active(s, r.timeout),
		Started:    s.started,
		LastUpdate: s.lastUpdate,
		Elapsed:    r.now().Sub(s.started),
		Offset:     s.offset,
		Panels:     make([]panel.Snapshot, 0, len(s.order)),
	}
	for _, name := range s.order {
		snap.Panels = append(snap.Panels, s.panels[name].Snapshot())
	}
	return snap
}
