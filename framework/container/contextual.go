package container

import "strings"

// ContextualBuilder implements the fluent contextual binding API.
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(...)
//	c.When("PhotoController").Needs("Filesystem").Give(func(c *container.Container) any {
//	    return filesystem.NewS3(...)
//	})
type ContextualBuilder struct {
	container *Container
	concretes []string
	needs     string
}

// When starts a contextual binding for one or more consumer classes.
func (c *Container) When(concretes ...string) *ContextualBuilder {
	aliased := make([]string, len(concretes))
	for i, concrete := range concretes {
		aliased[i] = c.GetAlias(concrete)
	}
	return &ContextualBuilder{container: c, concretes: aliased}
}

// Needs names the abstract the consumer depends on. Primitive parameters are
// named with a leading "$": Needs("$timeout").
func (b *ContextualBuilder) Needs(abstract string) *ContextualBuilder {
	b.needs = abstract
	return b
}

// Give sets what the consumer receives. implementation may be another abstract
// (string), a list of abstracts for a variadic parameter ([]string), a factory,
// or, for primitives, the value itself.
func (b *ContextualBuilder) Give(implementation any) {
	switch fn := implementation.(type) {
	case Factory:
	case func(*Container, Parameters) (any, error):
		implementation = Factory(fn)
	case func(*Container) any:
		implementation = Factory(func(c *Container, _ Parameters) (any, error) { return fn(c), nil })
	case func(*Container) (any, error):
		implementation = Factory(func(c *Container, _ Parameters) (any, error) { return fn(c) })
	case string, []string:
	default:
		if !strings.HasPrefix(b.needs, "$") {
			value := implementation
			implementation = Factory(func(*Container, Parameters) (any, error) { return value, nil })
		}
	}
	for _, concrete := range b.concretes {
		b.container.AddContextualBinding(concrete, b.needs, implementation)
	}
}

// GiveValue gives a pre-built value, never interpreted as an abstract.
//
//	// Laravel: ->give('/tmp/photos')
//	c.When("PhotoController").Needs("$storagePath").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) {
	b.Give(Factory(func(*Container, Parameters) (any, error) { return value, nil }))
}

// GiveTagged gives every service registered under tag, for variadic parameters.
func (b *ContextualBuilder) GiveTagged(tag string) {
	b.Give(Factory(func(c *Container, _ Parameters) (any, error) {
		return c.Tagged(tag)
	}))
}

// AddContextualBinding registers implementation for abstract when concrete is
// the class being built.
func (c *Container) AddContextualBinding(concrete, abstract string, implementation any) {
	if _, ok := c.contextual[concrete]; !ok {
		c.contextual[concrete] = make(map[string]any)
	}
	c.contextual[concrete][c.GetAlias(abstract)] = implementation
}
