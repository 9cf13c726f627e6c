package container

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/km-arc/go-laravel-container/framework/reflection"
)

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves an abstract from the container. Explicit parameters override
// constructor parameters of the same name and always force a fresh build.
//
//	// Laravel: $app->make(UserRepository::class)
//	repo, err := c.Make("UserRepository")
func (c *Container) Make(abstract string, parameters ...Parameters) (any, error) {
	return c.resolve(abstract, mergeParameters(parameters), true)
}

// Get resolves id, reporting EntryNotFoundError when id was never bound and could
// not be built on its own.
func (c *Container) Get(id string) (any, error) {
	instance, err := c.resolve(id, nil, true)
	if err == nil {
		return instance, nil
	}
	if c.Has(id) || errors.Is(err, ErrCircularDependency) {
		return nil, err
	}
	return nil, &EntryNotFoundError{ID: id, Cause: err}
}

func (c *Container) resolve(abstract string, params Parameters, raiseEvents bool) (any, error) {
	abstract = c.GetAlias(abstract)

	if loader, ok := c.deferred[abstract]; ok {
		delete(c.deferred, abstract)
		if err := loader(c); err != nil {
			return nil, err
		}
		// the loader may have aliased abstract
		abstract = c.GetAlias(abstract)
	}

	if raiseEvents {
		c.fireBeforeResolving(abstract, params)
	}

	concrete := c.contextualConcrete(abstract)
	needsContextualBuild := len(params) > 0 || concrete != nil

	if instance, ok := c.instances[abstract]; ok && !needsContextualBuild {
		return instance, nil
	}

	c.with = append(c.with, params)
	defer func() { c.with = c.with[:len(c.with)-1] }()

	if concrete == nil {
		concrete = c.concrete(abstract)
	}

	var (
		object any
		err    error
	)
	switch {
	case c.isBuildable(concrete, abstract):
		object, err = c.build(concrete)
	default:
		next, ok := concrete.(string)
		if !ok {
			return nil, c.resolutionError(ErrInvalidConcrete, "Contextual binding for [%s] cannot be built from %T", abstract, concrete)
		}
		object, err = c.Make(next)
	}
	if err != nil {
		return nil, err
	}

	for _, extender := range c.extenders[abstract] {
		object = extender(object, c)
	}

	if c.IsShared(abstract) && !needsContextualBuild {
		c.instances[abstract] = object
	}

	if raiseEvents {
		c.fireResolving(abstract, object)
	}

	c.resolved[abstract] = true
	return object, nil
}

// concrete returns the registered factory for abstract, or abstract itself.
func (c *Container) concrete(abstract string) any {
	if b, ok := c.bindings[abstract]; ok {
		return b.concrete
	}
	return abstract
}

func (c *Container) isBuildable(concrete any, abstract string) bool {
	switch v := concrete.(type) {
	case string:
		return v == abstract
	case Factory:
		return true
	}
	return false
}

// contextualConcrete looks up what the innermost class under construction was
// told to receive for abstract, checking abstract's aliases as well.
func (c *Container) contextualConcrete(abstract string) any {
	if binding := c.findInContextualBindings(abstract); binding != nil {
		return binding
	}
	for _, alias := range c.abstractAliases[abstract] {
		if binding := c.findInContextualBindings(alias); binding != nil {
			return binding
		}
	}
	return nil
}

func (c *Container) findInContextualBindings(abstract string) any {
	if len(c.buildStack) == 0 {
		return nil
	}
	return c.contextual[c.buildStack[len(c.buildStack)-1]][abstract]
}

// ── Building ──────────────────────────────────────────────────────────────────

// Build instantiates concrete, a class identifier or Factory, without consulting
// bindings for concrete itself.
func (c *Container) Build(concrete any) (any, error) {
	return c.build(concrete)
}

func (c *Container) build(concrete any) (any, error) {
	switch v := concrete.(type) {
	case Factory:
		return v(c, c.lastParameterOverride())
	case string:
		return c.buildClass(v)
	}
	return nil, c.resolutionError(ErrInvalidConcrete, "Concrete of type [%T] cannot be built", concrete)
}

func (c *Container) buildClass(name string) (any, error) {
	class, ok := c.classes[name]
	if !ok {
		return nil, c.resolutionError(ErrClassNotFound, "Target class [%s] does not exist", name)
	}
	if !class.Instantiable() {
		return nil, c.resolutionError(ErrNotInstantiable, "Target [%s] is not instantiable", name)
	}
	if c.detectCycles && slices.Contains(c.buildStack, name) {
		return nil, c.resolutionError(ErrCircularDependency, "Circular dependency detected while resolving [%s]", name)
	}

	args, err := c.withBuildStack(name, func() ([]any, error) {
		return c.resolveDependencies(class.Params)
	})
	if err != nil {
		return nil, err
	}

	instance, err := class.New(args)
	if err != nil {
		return nil, c.resolutionError(err, "Unable to instantiate [%s]", name)
	}
	return instance, nil
}

// withBuildStack runs fn with name pushed on the build stack. The stack is popped
// on every exit path, including panics.
func (c *Container) withBuildStack(name string, fn func() ([]any, error)) ([]any, error) {
	c.buildStack = append(c.buildStack, name)
	defer func() { c.buildStack = c.buildStack[:len(c.buildStack)-1] }()
	return fn()
}

// resolveDependencies resolves constructor arguments in declaration order.
func (c *Container) resolveDependencies(params []reflection.Parameter) ([]any, error) {
	results := make([]any, 0, len(params))
	for _, p := range params {
		if override, ok := c.lastParameterOverride()[p.Name]; ok {
			results = append(results, override)
			continue
		}

		var (
			result any
			err    error
		)
		if p.ClassName() == "" {
			result, err = c.resolvePrimitive(p)
		} else {
			result, err = c.resolveClass(p)
		}
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// resolvePrimitive answers a non-class parameter from a "$name" contextual
// binding or its default.
func (c *Container) resolvePrimitive(p reflection.Parameter) (any, error) {
	if concrete := c.contextualConcrete("$" + p.Name); concrete != nil {
		if factory, ok := concrete.(Factory); ok {
			return factory(c, nil)
		}
		return concrete, nil
	}
	if p.DefaultValueAvailable() {
		return p.DefaultValue(), nil
	}
	return nil, c.resolutionError(ErrUnresolvablePrimitive, "Unresolvable dependency resolving [%s] in class %s", p, p.Declarer)
}

// resolveClass makes a class-typed parameter, falling back to its default when
// resolution fails and one is declared.
func (c *Container) resolveClass(p reflection.Parameter) (any, error) {
	result, err := c.makeClassParameter(p)
	if err == nil {
		return result, nil
	}

	var resolutionErr *BindingResolutionError
	if !errors.As(err, &resolutionErr) {
		return nil, err
	}
	if p.DefaultValueAvailable() {
		return p.DefaultValue(), nil
	}
	if p.Variadic {
		return []any{}, nil
	}
	return nil, err
}

func (c *Container) makeClassParameter(p reflection.Parameter) (any, error) {
	t, _ := p.ClassType()
	name, err := c.discover(t)
	if err != nil {
		return nil, c.resolutionError(err, "Unable to describe [%s]", reflection.TypeName(t))
	}
	if p.Variadic {
		return c.resolveVariadicClass(name)
	}
	return c.Make(name)
}

// resolveVariadicClass resolves each abstract of a contextual list binding, or
// makes the class once when there is none.
func (c *Container) resolveVariadicClass(name string) (any, error) {
	list, ok := c.contextualConcrete(name).([]string)
	if !ok {
		return c.Make(name)
	}
	results := make([]any, 0, len(list))
	for _, abstract := range list {
		instance, err := c.Make(abstract)
		if err != nil {
			return nil, err
		}
		results = append(results, instance)
	}
	return results, nil
}

func (c *Container) lastParameterOverride() Parameters {
	if len(c.with) == 0 {
		return nil
	}
	return c.with[len(c.with)-1]
}

func mergeParameters(sets []Parameters) Parameters {
	switch len(sets) {
	case 0:
		return nil
	case 1:
		return sets[0]
	}
	merged := make(Parameters)
	for _, set := range sets {
		maps.Copy(merged, set)
	}
	return merged
}

// ── Generics helpers ──────────────────────────────────────────────────────────

// Key returns the class identifier of T, usable as an abstract.
//
//	c.Singleton(container.Key[Logger](), NewFileLogger)
func Key[T any]() string {
	return reflection.TypeName(reflect.TypeOf((*T)(nil)).Elem())
}

// Make resolves T by its class identifier, describing T on first use.
//
//	svc, err := container.Make[*UserService](c)
func Make[T any](c *Container, parameters ...Parameters) (T, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	key, err := c.discover(t)
	if err != nil {
		var zero T
		return zero, c.resolutionError(err, "Unable to describe [%s]", reflection.TypeName(t))
	}
	return Resolve[T](c, key, parameters...)
}

// Resolve makes abstract and converts the result to T.
//
//	cfg, err := container.Resolve[*config.Config](c, "config")
func Resolve[T any](c *Container, abstract string, parameters ...Parameters) (T, error) {
	var zero T
	instance, err := c.Make(abstract, parameters...)
	if err != nil {
		return zero, err
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	rv, err := reflection.Coerce(instance, t)
	if err != nil {
		return zero, &BindingResolutionError{
			Message: fmt.Sprintf("Resolved [%s] to %T, not %s", abstract, instance, t),
			Cause:   err,
		}
	}
	typed, _ := rv.Interface().(T)
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c *Container, abstract string) T {
	typed, err := Resolve[T](c, abstract)
	if err != nil {
		panic(err)
	}
	return typed
}
