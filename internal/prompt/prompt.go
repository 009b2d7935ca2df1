// Package prompt loads the named prompt templates that drive the model
// calls. A template is versioned configuration — YAML frontmatter plus
// message bodies — not code: rendering is a pure function from
// (template, inputs) to a message sequence and generation parameters.
//
// Built-in templates are embedded; a directory can override them so
// prompts are tunable without recompiling.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/outfitter-ai/outfitter/internal/provider"
)

// Template names used by the pipelines.
const (
	// QueryIntent rewrites a conversation into a standalone search query.
	QueryIntent = "query-intent"

	// GroundedAnswer turns retrieved documents into the system message
	// for answer generation.
	GroundedAnswer = "grounded-answer"
)

//go:embed templates/*.prompt
var builtinFS embed.FS

// file is the on-disk shape of a prompt template.
type file struct {
	Name        string         `yaml:"name"`
	Version     int            `yaml:"version"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
	Messages    []fileMessage  `yaml:"messages"`
}

type fileMessage struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// Template is a parsed, executable prompt template.
type Template struct {
	Name        string
	Version     int
	Description string

	// Params are the generation parameters declared by the template.
	Params provider.GenerationParams

	messages []messageTemplate
}

type messageTemplate struct {
	role provider.Role
	body *template.Template
}

// Loader resolves templates by name, preferring dir (when set) over the
// embedded built-ins.
type Loader struct {
	templates map[string]*Template
}

// NewLoader parses the built-in templates plus any *.prompt files in dir.
// dir may be empty.
func NewLoader(dir string) (*Loader, error) {
	l := &Loader{templates: make(map[string]*Template)}

	if err := l.loadFS(builtinFS, "templates"); err != nil {
		return nil, fmt.Errorf("built-in templates: %w", err)
	}
	if dir != "" {
		if err := l.loadFS(os.DirFS(dir), "."); err != nil {
			return nil, fmt.Errorf("prompt dir %s: %w", dir, err)
		}
	}
	return l, nil
}

func (l *Loader) loadFS(fsys fs.FS, root string) error {
	entries, err := fs.Glob(fsys, path.Join(root, "*.prompt"))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		raw, err := fs.ReadFile(fsys, entry)
		if err != nil {
			return fmt.Errorf("reading %s: %w", entry, err)
		}
		tpl, err := parse(raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", entry, err)
		}
		// Later sources (the override dir) win over built-ins.
		l.templates[tpl.Name] = tpl
	}
	return nil
}

// Load returns the template registered under name.
func (l *Loader) Load(name string) (*Template, error) {
	tpl, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown prompt template %q", name)
	}
	return tpl, nil
}

// parse decodes and compiles one template file.
func parse(raw []byte) (*Template, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("template without a name")
	}
	if len(f.Messages) == 0 {
		return nil, fmt.Errorf("template %q has no messages", f.Name)
	}

	params, err := parseParams(f.Parameters)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", f.Name, err)
	}

	tpl := &Template{
		Name:        f.Name,
		Version:     f.Version,
		Description: f.Description,
		Params:      params,
	}
	for i, m := range f.Messages {
		role := provider.Role(m.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("template %q message %d: unknown role %q", f.Name, i, m.Role)
		}
		body, err := template.New(fmt.Sprintf("%s#%d", f.Name, i)).Option("missingkey=error").Parse(m.Content)
		if err != nil {
			return nil, fmt.Errorf("template %q message %d: %w", f.Name, i, err)
		}
		tpl.messages = append(tpl.messages, messageTemplate{role: role, body: body})
	}
	return tpl, nil
}

func parseParams(params map[string]any) (provider.GenerationParams, error) {
	var out provider.GenerationParams
	for key, val := range params {
		switch key {
		case "temperature":
			f, err := toFloat32(val)
			if err != nil {
				return out, fmt.Errorf("parameter temperature: %w", err)
			}
			out.Temperature = f
		case "frequency_penalty":
			f, err := toFloat32(val)
			if err != nil {
				return out, fmt.Errorf("parameter frequency_penalty: %w", err)
			}
			out.FrequencyPenalty = f
		case "presence_penalty":
			f, err := toFloat32(val)
			if err != nil {
				return out, fmt.Errorf("parameter presence_penalty: %w", err)
			}
			out.PresencePenalty = f
		case "max_output_tokens":
			n, ok := val.(int)
			if !ok {
				return out, fmt.Errorf("parameter max_output_tokens: expected integer, got %T", val)
			}
			out.MaxOutputTokens = n
		default:
			return out, fmt.Errorf("unknown parameter %q", key)
		}
	}
	return out, nil
}

func toFloat32(val any) (float32, error) {
	switch v := val.(type) {
	case float64:
		return float32(v), nil
	case int:
		return float32(v), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", val)
	}
}

// Render executes the template against data and returns the message
// sequence. Rendering has no side effects.
func (t *Template) Render(data any) ([]provider.Message, error) {
	out := make([]provider.Message, 0, len(t.messages))
	for i, m := range t.messages {
		var sb strings.Builder
		if err := m.body.Execute(&sb, data); err != nil {
			return nil, fmt.Errorf("rendering %q message %d: %w", t.Name, i, err)
		}
		out = append(out, provider.Message{
			Role:    m.role,
			Content: strings.TrimSpace(sb.String()),
		})
	}
	return out, nil
}
