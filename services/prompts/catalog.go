// Package prompts serves the named response templates.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"cabbooking/models"
	"cabbooking/services/schema"
	"cabbooking/utils"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

type Argument struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Required    bool   `yaml:"required" json:"required"`
}

type Template struct {
	Name        string     `yaml:"name"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Role        string     `yaml:"role"`
	Arguments   []Argument `yaml:"arguments"`
	Text        string     `yaml:"text"`

	tmpl *template.Template
}

// Params returns the argument schema. Prompt arguments are always strings.
func (t *Template) Params() schema.Schema {
	fields := make([]schema.Field, 0, len(t.Arguments))
	for _, a := range t.Arguments {
		fields = append(fields, schema.Field{Name: a.Name, Type: schema.TypeString, Required: a.Required, Description: a.Description})
	}
	return schema.Object(fields...)
}

// Data is what a template is rendered with.
type Data struct {
	Args      map[string]string
	Booking   *models.Booking
	Locations []string
}

// Rendered is one rendered prompt message.
type Rendered struct {
	Description string
	Role        string
	Text        string
}

// Catalog holds parsed templates in declaration order.
type Catalog struct {
	templates []*Template
	byName    map[string]*Template
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"upper": func(v any) string {
		return strings.ToUpper(fmt.Sprint(v))
	},
	"pickup": func(b *models.Booking) string {
		if b.ResolvedPickup != "" && !strings.EqualFold(b.ResolvedPickup, b.Pickup) {
			return fmt.Sprintf("%s (%s)", b.Pickup, b.ResolvedPickup)
		}
		return b.Pickup
	},
}

// Load parses the embedded templates.
func Load() (*Catalog, error) {
	return Parse(defaultTemplates)
}

// Parse decodes a templates document.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Prompts []*Template `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode prompt templates: %w", err)
	}
	c := &Catalog{byName: make(map[string]*Template, len(doc.Prompts))}
	for _, t := range doc.Prompts {
		if t.Name == "" {
			return nil, fmt.Errorf("prompt template with empty name")
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt template %q", t.Name)
		}
		tmpl, err := template.New(t.Name).Funcs(funcs).Option("missingkey=zero").Parse(t.Text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %q: %w", t.Name, err)
		}
		if t.Role == "" {
			t.Role = "user"
		}
		t.tmpl = tmpl
		c.templates = append(c.templates, t)
		c.byName[t.Name] = t
	}
	return c, nil
}

// List returns the templates in declaration order.
func (c *Catalog) List() []*Template {
	return c.templates
}

// Lookup returns template name or a NotFoundError.
func (c *Catalog) Lookup(name string) (*Template, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, utils.NewNotFoundError("unknown prompt %q", name)
	}
	return t, nil
}

// Render executes template name with data.
func (c *Catalog) Render(name string, data Data) (Rendered, error) {
	t, err := c.Lookup(name)
	if err != nil {
		return Rendered{}, err
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return Rendered{}, utils.NewInternalError(err, "render prompt %q", name)
	}
	return Rendered{Description: t.Description, Role: t.Role, Text: strings.TrimRight(buf.String(), "\n")}, nil
}
