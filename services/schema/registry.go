// Package schema holds the declared contracts of every tool, resource and
// prompt the server exposes, and validates parameters against them.
package schema

import (
	"fmt"

	"cabbooking/utils"
)

// Kind is the kind of a registered contract.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

// Contract is one registered tool, resource or prompt.
type Contract struct {
	Name        string
	Kind        Kind
	Title       string
	Description string
	MimeType    string // resources only
	Params      Schema
	Result      *Schema
	ReadOnly    bool
	Idempotent  bool
}

// Registry is populated during startup and read-only afterwards. Callers
// must finish all Register calls before sharing it between goroutines.
type Registry struct {
	contracts map[Kind]map[string]*Contract
	order     map[Kind][]string
}

func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[Kind]map[string]*Contract),
		order:     make(map[Kind][]string),
	}
}

// Register adds a contract. Names are unique per kind.
func (r *Registry) Register(c Contract) error {
	switch c.Kind {
	case KindTool, KindResource, KindPrompt:
	default:
		return fmt.Errorf("schema: unknown kind %q for %q", c.Kind, c.Name)
	}
	if c.Name == "" {
		return fmt.Errorf("schema: %s with empty name", c.Kind)
	}
	byName := r.contracts[c.Kind]
	if byName == nil {
		byName = make(map[string]*Contract)
		r.contracts[c.Kind] = byName
	}
	if _, exists := byName[c.Name]; exists {
		return fmt.Errorf("schema: %s %q registered twice", c.Kind, c.Name)
	}
	contract := c
	byName[c.Name] = &contract
	r.order[c.Kind] = append(r.order[c.Kind], c.Name)
	return nil
}

// MustRegister is Register for static startup tables.
func (r *Registry) MustRegister(c Contract) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Lookup returns the contract for name, or a NotFoundError.
func (r *Registry) Lookup(kind Kind, name string) (*Contract, error) {
	c, ok := r.contracts[kind][name]
	if !ok {
		return nil, utils.NewNotFoundError("unknown %s %q", kind, name)
	}
	return c, nil
}

// Validate checks params against the parameter schema of name.
func (r *Registry) Validate(kind Kind, name string, params map[string]any) (Values, error) {
	c, err := r.Lookup(kind, name)
	if err != nil {
		return nil, err
	}
	return c.Params.Validate(params)
}

// List returns the contracts of kind in registration order.
func (r *Registry) List(kind Kind) []*Contract {
	names := r.order[kind]
	out := make([]*Contract, 0, len(names))
	for _, name := range names {
		out = append(out, r.contracts[kind][name])
	}
	return out
}
