// Package registration reads and writes the per-script records that tell
// the dashboard which log file a worker writes and how its panels look.
//
// Workers drop one small file per script into a shared directory:
//
//	{
//	  "script_id": "convert",
//	  "log_file": "/var/log/workers/convert.log",
//	  "layout": {
//	    "status": {"title": "📊 总体进度", "icon": "✅", "style": "lightyellow"}
//	  }
//	}
//
// JSON and YAML are both accepted. When script_id is absent the file name
// without its extension is used.
package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/five82/panelwatch/internal/monitor"
	"github.com/five82/panelwatch/internal/panel"
)

// ErrInvalidRecord marks records without a usable script id or log file.
var ErrInvalidRecord = errors.New("invalid registration record")

// PanelLayout is the presentation of one panel.
type PanelLayout struct {
	Title string `json:"title" yaml:"title"`
	Icon  string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Style string `json:"style,omitempty" yaml:"style,omitempty"`
	// Kind is "log" (default) or "system".
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// Record is one registered script.
type Record struct {
	ScriptID string                 `json:"script_id" yaml:"script_id"`
	Name     string                 `json:"name,omitempty" yaml:"name,omitempty"`
	LogFile  string                 `json:"log_file" yaml:"log_file"`
	Layout   map[string]PanelLayout `json:"layout,omitempty" yaml:"layout,omitempty"`

	// Path is the file the record was loaded from.
	Path string `json:"-" yaml:"-"`
}

// Validate checks the required fields.
func (r Record) Validate() error {
	id := strings.TrimSpace(r.ScriptID)
	switch {
	case id == "":
		return fmt.Errorf("%w: missing script_id", ErrInvalidRecord)
	case strings.ContainsAny(id, `/\`) || id == "." || id == "..":
		return fmt.Errorf("%w: script_id %q is not a file name", ErrInvalidRecord, id)
	case strings.TrimSpace(r.LogFile) == "":
		return fmt.Errorf("%w: %s: missing log_file", ErrInvalidRecord, id)
	}
	return nil
}

var defaultOrder = []string{"status", "progress", "performance", "image_convert", "archive_ops", "file_ops"}

// DefaultLayout returns the panels a worker gets when it declares none.
func DefaultLayout() map[string]PanelLayout {
	return map[string]PanelLayout{
		"status":        {Title: "📊 总体进度", Icon: "✅", Style: "lightyellow"},
		"progress":      {Title: "🔄 当前进度", Icon: "🔄", Style: "lightcyan"},
		"performance":   {Title: "⚡ 性能配置", Icon: "⚡", Style: "lightgreen"},
		"image_convert": {Title: "🖼️ 图片转换", Icon: "🖼️", Style: "lightorange"},
		"archive_ops":   {Title: "📦 压缩包处理", Icon: "📦", Style: "lightmagenta"},
		"file_ops":      {Title: "📁 文件操作", Icon: "📁", Style: "lightblue"},
	}
}

// PanelNames orders the layout: well-known panels in their usual order,
// then the rest alphabetically.
func (r Record) PanelNames() []string {
	names := make([]string, 0, len(r.Layout))
	seen := make(map[string]bool, len(r.Layout))
	for _, name := range defaultOrder {
		if _, ok := r.Layout[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range r.Layout {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Registration converts the record for monitor.Registry.Register. A record
// without a layout gets DefaultLayout.
func (r Record) Registration() monitor.Registration {
	rec := r
	if len(rec.Layout) == 0 {
		rec.Layout = DefaultLayout()
	}
	reg := monitor.Registration{
		ID:      strings.TrimSpace(rec.ScriptID),
		Name:    strings.TrimSpace(rec.Name),
		LogFile: strings.TrimSpace(rec.LogFile),
	}
	for _, name := range rec.PanelNames() {
		l := rec.Layout[name]
		kind := panel.KindLog
		if strings.EqualFold(strings.TrimSpace(l.Kind), "system") {
			kind = panel.KindSystem
		}
		reg.Panels = append(reg.Panels, monitor.PanelSpec{
			Name:   name,
			Kind:   kind,
			Layout: panel.Layout{Title: l.Title, Icon: l.Icon, Style: l.Style},
		})
	}
	return reg
}

func isRecordFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Load parses one record file.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read registration: %w", err)
	}

	var rec Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rec)
	default:
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return Record{}, fmt.Errorf("parse registration %s: %w", filepath.Base(path), err)
	}

	if strings.TrimSpace(rec.ScriptID) == "" {
		base := filepath.Base(path)
		rec.ScriptID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	rec.ScriptID = strings.TrimSpace(rec.ScriptID)
	rec.LogFile = strings.TrimSpace(rec.LogFile)
	rec.Path = path
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// LoadLayout reads a standalone layout file: a map of panel name to
// PanelLayout. Files ending in .json are JSON, anything else YAML.
func LoadLayout(path string) (map[string]PanelLayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	var layout map[string]PanelLayout
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &layout)
	} else {
		err = yaml.Unmarshal(data, &layout)
	}
	if err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", filepath.Base(path), err)
	}
	for name := range layout {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: layout has an empty panel name", ErrInvalidRecord)
		}
	}
	return layout, nil
}

// Scan is the outcome of LoadDir.
type Scan struct {
	Records []Record
	// Skipped maps file paths to the reason they were not loaded.
	Skipped map[string]error
}

// LoadDir loads every record in dir, sorted by script id. Broken records
// and records whose log file does not exist are skipped. A missing
// directory is an empty scan.
func LoadDir(dir string) (Scan, error) {
	scan := Scan{Skipped: make(map[string]error)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return scan, nil
		}
		return scan, fmt.Errorf("read registry dir: %w", err)
	}

	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !isRecordFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rec, err := Load(path)
		if err != nil {
			scan.Skipped[path] = err
			continue
		}
		if _, err := os.Stat(rec.LogFile); err != nil {
			scan.Skipped[path] = fmt.Errorf("log file: %w", err)
			continue
		}
		if prev, dup := seen[rec.ScriptID]; dup {
			scan.Skipped[path] = fmt.Errorf("%w: script_id %q already defined in %s", ErrInvalidRecord, rec.ScriptID, filepath.Base(prev))
			continue
		}
		seen[rec.ScriptID] = path
		scan.Records = append(scan.Records, rec)
	}

	sort.Slice(scan.Records, func(i, j int) bool {
		return scan.Records[i].ScriptID < scan.Records[j].ScriptID
	})
	return scan, nil
}

// Write stores rec as <script_id>.json in dir, replacing any previous
// record atomically. It returns the written path.
func Write(dir string, rec Record) (string, error) {
	rec.ScriptID = strings.TrimSpace(rec.ScriptID)
	rec.LogFile = strings.TrimSpace(rec.LogFile)
	if err := rec.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create registry dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode registration: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".tmp-"+rec.ScriptID+"-*")
	if err != nil {
		return "", fmt.Errorf("write registration: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write registration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write registration: %w", err)
	}

	path := filepath.Join(dir, rec.ScriptID+".json")
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("write registration: %w", err)
	}
	return path, nil
}
