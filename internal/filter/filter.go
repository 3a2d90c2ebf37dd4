// Package filter selects decoded panel events for the follow command.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/five82/panelwatch/internal/logline"
	"github.com/five82/panelwatch/internal/progress"
)

// Criteria describes which events pass. Empty fields match everything.
type Criteria struct {
	Levels   []string // display levels, e.g. "warning"
	Panels   []string
	Query    string // substring, or a regular expression when UseRegex is set
	UseRegex bool
	// Expr is a govaluate expression over level, panel, kind, content,
	// timestamp, percentage and complete. percentage is -1 for events that
	// carry no progress.
	Expr string
}

// Evaluator applies compiled Criteria.
type Evaluator struct {
	levels map[string]bool
	panels map[string]bool
	query  string
	re     *regexp.Regexp
	expr   *govaluate.EvaluableExpression
}

// New compiles c.
func New(c Criteria) (*Evaluator, error) {
	e := &Evaluator{query: strings.ToLower(c.Query)}

	for _, l := range c.Levels {
		if l = strings.TrimSpace(l); l != "" {
			if e.levels == nil {
				e.levels = make(map[string]bool)
			}
			e.levels[logline.DisplayLevel(l)] = true
		}
	}
	for _, p := range c.Panels {
		if p = strings.TrimSpace(p); p != "" {
			if e.panels == nil {
				e.panels = make(map[string]bool)
			}
			e.panels[p] = true
		}
	}

	if c.UseRegex && c.Query != "" {
		re, err := regexp.Compile(c.Query)
		if err != nil {
			return nil, fmt.Errorf("compile query: %w", err)
		}
		e.re = re
	}
	if strings.TrimSpace(c.Expr) != "" {
		expr, err := govaluate.NewEvaluableExpression(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile expression: %w", err)
		}
		e.expr = expr
	}
	return e, nil
}

// Match reports whether ev passes every criterion.
func (e *Evaluator) Match(ev logline.Event) bool {
	level := logline.DisplayLevel(ev.Level)
	if e.levels != nil && !e.levels[level] {
		return false
	}
	if e.panels != nil && !e.panels[ev.Panel] {
		return false
	}

	switch {
	case e.re != nil:
		if !e.re.MatchString(ev.Content) {
			return false
		}
	case e.query != "":
		if !strings.Contains(strings.ToLower(ev.Content), e.query) {
			return false
		}
	}

	if e.expr == nil {
		return true
	}
	result, err := e.expr.Evaluate(Params(ev))
	if err != nil {
		return false
	}
	ok, isBool := result.(bool)
	return isBool && ok
}

// Params exposes ev to expressions.
func Params(ev logline.Event) map[string]any {
	params := map[string]any{
		"level":      logline.DisplayLevel(ev.Level),
		"panel":      ev.Panel,
		"kind":       ev.Kind.String(),
		"content":    ev.Content,
		"timestamp":  ev.Timestamp,
		"percentage": -1.0,
		"complete":   false,
	}
	if ev.Kind == logline.KindProgress {
		if d, ok := progress.Extract(ev.Content); ok {
			params["percentage"] = d.Percentage
			params["complete"] = d.Complete
		}
	}
	return params
}
