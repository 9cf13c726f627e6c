package reflection

import "fmt"

// Option adjusts how a class or callable is described.
type Option func(*options)

type options struct {
	name     string
	names    []string
	defaults map[string]any
	optional map[string]bool

	exportedOnly bool
}

// As overrides the identifier a class or callable is described under.
func As(name string) Option {
	return func(o *options) { o.name = name }
}

// Named names function parameters in declaration order.
func Named(names ...string) Option {
	return func(o *options) { o.names = names }
}

// ExportedOnly describes a struct with unexported fields as non-instantiable.
// Such a struct cannot be filled field by field, so only a registered binding
// may produce one.
func ExportedOnly() Option {
	return func(o *options) { o.exportedOnly = true }
}

// Default declares a default value for the named parameter.
func Default(param string, value any) Option {
	return func(o *options) { o.defaults[param] = value }
}

// Optional marks the named parameters as optional; their default is the zero value.
func Optional(params ...string) Option {
	return func(o *options) {
		for _, p := range params {
			o.optional[p] = true
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		defaults: make(map[string]any),
		optional: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// apply copies defaults and optional flags onto params. Naming a parameter that
// does not exist is an error.
func (o *options) apply(owner string, params []Parameter) error {
	seen := make(map[string]bool, len(params))
	for i := range params {
		p := &params[i]
		seen[p.Name] = true
		if v, ok := o.defaults[p.Name]; ok {
			p.Default, p.HasDefault = v, true
		}
		if o.optional[p.Name] {
			p.Optional = true
		}
	}
	for name := range o.defaults {
		if !seen[name] {
			return fmt.Errorf("reflection: %s has no parameter [%s]", owner, name)
		}
	}
	for name := range o.optional {
		if !seen[name] {
			return fmt.Errorf("reflection: %s has no parameter [%s]", owner, name)
		}
	}
	return nil
}
