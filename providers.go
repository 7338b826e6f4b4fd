package statements

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/tyler-sommer/stick"
)

// CurrentTimeLayout is the layout of the current_time template variable.
const CurrentTimeLayout = "Jan 02, 2006 03:04:05 PM"

// TemplateFormatter renders one Twig template per item with the stick engine.
// Every field of the item is available as a top-level variable and the whole
// item as {{ item }}; current_time and any WithVar values are added too.
type TemplateFormatter struct {
	env      *stick.Env
	name     string
	template string
	vars     map[string]any
	required []string
	now      func() time.Time
}

// FormatterOption keeps the constructor flexible.
type FormatterOption func(*TemplateFormatter) error

// WithTemplateFile loads the template at path from the supplied FS.
func WithTemplateFile[F fs.FS](fsys F, path string) FormatterOption {
	return func(f *TemplateFormatter) error {
		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		f.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		f.template = string(content)
		return nil
	}
}

// WithTemplate sets the template text directly.
func WithTemplate(name, tpl string) FormatterOption {
	return func(f *TemplateFormatter) error {
		f.name = name
		f.template = tpl
		return nil
	}
}

// WithVar adds a variable that will be available in the template.
func WithVar(key string, value any) FormatterOption {
	return func(f *TemplateFormatter) error {
		f.vars[key] = value
		return nil
	}
}

// WithRequiredFields makes Format return no prompt when any of the fields is
// missing or blank in the item.
func WithRequiredFields(fields ...string) FormatterOption {
	return func(f *TemplateFormatter) error {
		f.required = append(f.required, fields...)
		return nil
	}
}

// withClock overrides the clock used for current_time.
func withClock(now func() time.Time) FormatterOption {
	return func(f *TemplateFormatter) error {
		f.now = now
		return nil
	}
}

// NewTemplateFormatter builds a formatter from any combination of options.
func NewTemplateFormatter(opts ...FormatterOption) (*TemplateFormatter, error) {
	f := &TemplateFormatter{
		env:  stick.New(nil),
		vars: make(map[string]any),
		now:  time.Now,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(f.template) == "" {
		return nil, fmt.Errorf("template %q is empty", f.name)
	}
	return f, nil
}

// Name returns the template name.
func (f *TemplateFormatter) Name() string { return f.name }

// Format renders the prompt for item.
func (f *TemplateFormatter) Format(item Record) (string, error) {
	for _, field := range f.required {
		if isBlank(item[field]) {
			return "", nil
		}
	}

	templateCtx := make(map[string]stick.Value, len(f.vars)+len(item)+2)
	for k, v := range f.vars {
		templateCtx[k] = v
	}
	for k, v := range item {
		templateCtx[k] = v
	}
	templateCtx["item"] = map[string]any(item)
	templateCtx["current_time"] = f.now().Format(CurrentTimeLayout)

	var out strings.Builder
	if err := f.env.Execute(f.template, &out, templateCtx); err != nil {
		return "", fmt.Errorf("execute %q: %w", f.name, err)
	}
	return out.String(), nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
