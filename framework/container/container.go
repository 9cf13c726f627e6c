package container

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/km-arc/go-laravel-container/framework/reflection"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Parameters are explicit constructor or call arguments, keyed by parameter name
// (or by class identifier for class-typed parameters of a Call).
type Parameters map[string]any

// Factory builds a concrete value. params is the innermost parameter override
// passed to Make, or nil.
type Factory func(c *Container, params Parameters) (any, error)

// Extender decorates a freshly built (or already cached) instance.
type Extender func(instance any, c *Container) any

// ResolvingCallback observes a resolved instance.
type ResolvingCallback func(instance any, c *Container)

// BeforeResolvingCallback observes a resolution before anything is built.
type BeforeResolvingCallback func(abstract string, params Parameters, c *Container)

// RebindingCallback receives the re-resolved instance after a binding is replaced.
type RebindingCallback func(c *Container, instance any)

// MethodBinding answers a Class@method call in place of the real method.
type MethodBinding func(instance any, c *Container) (any, error)

// binding holds a normalized factory and whether its result is shared.
type binding struct {
	concrete Factory
	shared   bool
}

type typedCallback[T any] struct {
	abstract string
	callback T
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the IoC container, modelled on Laravel's Illuminate\Container.
//
// It supports:
//   - Bind / Singleton / Scoped / Instance / Alias
//   - Make / Build with reflective constructor injection
//   - Contextual binding (when A needs B, give it C), including primitives
//   - Extend (decorate resolved instances)
//   - Tags, rebinding, before/after resolving callbacks
//   - Call with injected dependencies and method bindings
//
// A Container is not safe for concurrent use; see Lock.
type Container struct {
	// class identifier → description used by build
	classes map[string]*reflection.Class

	// abstract → binding
	bindings map[string]*binding

	// abstract → shared instance
	instances map[string]any

	// abstracts whose instances are dropped by ForgetScopedInstances
	scopedInstances []string

	// abstracts resolved at least once
	resolved map[string]bool

	// alias → abstract, and abstract → aliases
	aliases         map[string]string
	abstractAliases map[string][]string

	// abstract → decorators, in registration order
	extenders map[string][]Extender

	// tag → abstracts
	tags map[string][]string

	// contextual[consumer][needed abstract] = implementation
	contextual map[string]map[string]any

	// "Class@method" → callback
	methodBindings map[string]MethodBinding

	// abstract → loader run on first resolution
	deferred map[string]func(c *Container) error

	reboundCallbacks map[string][]RebindingCallback

	globalBeforeResolving []BeforeResolvingCallback
	beforeResolving       []typedCallback[BeforeResolvingCallback]
	globalResolving       []ResolvingCallback
	resolving             []typedCallback[ResolvingCallback]
	globalAfterResolving  []ResolvingCallback
	afterResolving        []typedCallback[ResolvingCallback]

	// classes currently being built, innermost last
	buildStack []string

	// parameter overrides, one entry per active resolve
	with []Parameters

	detectCycles bool
	log          *zap.Logger

	// held by callers sharing the container across goroutines; never taken internally
	mu sync.Mutex
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for registration events.
func WithLogger(log *zap.Logger) Option {
	return func(c *Container) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCycleDetection toggles the circular dependency check in Build. It is on by
// default; without it a self-dependent class recurses until the stack runs out.
func WithCycleDetection(enabled bool) Option {
	return func(c *Container) { c.detectCycles = enabled }
}

// New creates an empty container bound to itself as "container".
func New(opts ...Option) *Container {
	c := &Container{
		detectCycles: true,
		log:          zap.NewNop(),
	}
	c.reset()
	c.contextual = make(map[string]map[string]any)
	c.extenders = make(map[string][]Extender)
	c.tags = make(map[string][]string)
	c.methodBindings = make(map[string]MethodBinding)
	c.deferred = make(map[string]func(*Container) error)
	c.reboundCallbacks = make(map[string][]RebindingCallback)
	c.classes = make(map[string]*reflection.Class)
	for _, opt := range opts {
		opt(c)
	}

	c.instances["container"] = c
	c.Alias("container", Key[*Container]())
	return c
}

func (c *Container) reset() {
	c.bindings = make(map[string]*binding)
	c.instances = make(map[string]any)
	c.scopedInstances = nil
	c.resolved = make(map[string]bool)
	c.aliases = make(map[string]string)
	c.abstractAliases = make(map[string][]string)
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger { return c.log }

// Lock and Unlock serialise callers that share the container between
// goroutines, such as the router and the scheduler. The container's own
// methods never lock.
func (c *Container) Lock()   { c.mu.Lock() }
func (c *Container) Unlock() { c.mu.Unlock() }

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a transient binding. concrete may be nil (the abstract builds
// itself), another abstract or class identifier, a Factory, a
// func(*Container) any, a func(*Container) (any, error), a reflect.Type, or a
// constructor function.
//
//	// Laravel: $app->bind(UserRepository::class, EloquentUserRepository::class)
//	c.Bind(container.Key[UserRepository](), NewSQLUserRepository)
func (c *Container) Bind(abstract string, concrete any) error {
	return c.bind(abstract, concrete, false)
}

// Singleton registers a binding whose result is cached after first resolution.
func (c *Container) Singleton(abstract string, concrete any) error {
	return c.bind(abstract, concrete, true)
}

// Scoped registers a singleton that ForgetScopedInstances discards.
func (c *Container) Scoped(abstract string, concrete any) error {
	c.scopedInstances = append(c.scopedInstances, abstract)
	return c.Singleton(abstract, concrete)
}

// BindIf registers a transient binding unless abstract is already bound.
func (c *Container) BindIf(abstract string, concrete any) error {
	if c.Bound(abstract) {
		return nil
	}
	return c.Bind(abstract, concrete)
}

// SingletonIf registers a shared binding unless abstract is already bound.
func (c *Container) SingletonIf(abstract string, concrete any) error {
	if c.Bound(abstract) {
		return nil
	}
	return c.Singleton(abstract, concrete)
}

func (c *Container) bind(abstract string, concrete any, shared bool) error {
	factory, err := c.normalize(abstract, concrete)
	if err != nil {
		return err
	}

	// A replaced binding must not keep serving the old instance or alias.
	delete(c.instances, abstract)
	delete(c.aliases, abstract)

	c.bindings[abstract] = &binding{concrete: factory, shared: shared}
	c.log.Debug("container: bound", zap.String("abstract", abstract), zap.Bool("shared", shared))

	if c.Resolved(abstract) {
		return c.rebound(abstract)
	}
	return nil
}

// normalize turns every accepted concrete form into a Factory.
func (c *Container) normalize(abstract string, concrete any) (Factory, error) {
	switch fn := concrete.(type) {
	case nil:
		return c.closure(abstract, abstract), nil
	case string:
		return c.closure(abstract, fn), nil
	case Factory:
		return fn, nil
	case func(*Container, Parameters) (any, error):
		return fn, nil
	case func(*Container) any:
		return func(c *Container, _ Parameters) (any, error) { return fn(c), nil }, nil
	case func(*Container) (any, error):
		return func(c *Container, _ Parameters) (any, error) { return fn(c) }, nil
	case reflect.Type:
		name, err := c.Define(fn)
		if err != nil {
			return nil, &BindingResolutionError{Message: fmt.Sprintf("Invalid concrete for [%s]", abstract), Cause: err}
		}
		return c.closure(abstract, name), nil
	}

	if reflect.TypeOf(concrete).Kind() == reflect.Func {
		name, err := c.Define(concrete)
		if err != nil {
			return nil, &BindingResolutionError{Message: fmt.Sprintf("Invalid concrete for [%s]", abstract), Cause: err}
		}
		return c.closure(abstract, name), nil
	}
	return nil, &BindingResolutionError{
		Message: fmt.Sprintf("Concrete for [%s] must be a class identifier, factory or constructor, got %T", abstract, concrete),
		Cause:   ErrInvalidConcrete,
	}
}

// closure wraps a class identifier: build it when it is the abstract itself,
// otherwise resolve it as another abstract without firing events.
func (c *Container) closure(abstract, concrete string) Factory {
	return func(c *Container, params Parameters) (any, error) {
		if abstract == concrete {
			return c.Build(concrete)
		}
		return c.resolve(concrete, params, false)
	}
}

// Instance registers a pre-built value as the shared instance of abstract.
//
//	// Laravel: $app->instance(Config::class, $config)
//	c.Instance("config", cfg)
func (c *Container) Instance(abstract string, instance any) error {
	c.removeAbstractAlias(abstract)
	isBound := c.Bound(abstract)
	delete(c.aliases, abstract)

	c.instances[abstract] = instance

	if isBound {
		return c.rebound(abstract)
	}
	return nil
}

// Alias registers alias as another name for abstract. Aliasing a name to
// itself, directly or through an existing chain, panics.
//
//	// Laravel: $app->alias(Cache::class, 'cache')
//	c.Alias("cache", "cacheManager")
func (c *Container) Alias(abstract, alias string) {
	if alias == abstract || c.GetAlias(abstract) == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", alias))
	}
	c.aliases[alias] = abstract
	c.abstractAliases[abstract] = append(c.abstractAliases[abstract], alias)
	c.log.Debug("container: aliased", zap.String("abstract", abstract), zap.String("alias", alias))
}

func (c *Container) removeAbstractAlias(searched string) {
	if !c.IsAlias(searched) {
		return
	}
	for abstract, aliases := range c.abstractAliases {
		c.abstractAliases[abstract] = slices.DeleteFunc(aliases, func(a string) bool { return a == searched })
	}
}

// Define registers a class the container can build: a reflect.Type, a prototype
// value such as Service{} or (*Service)(nil), a pointer to an interface such as
// (*Logger)(nil), or a constructor function. It returns the class identifier.
func (c *Container) Define(v any, opts ...reflection.Option) (string, error) {
	var (
		class *reflection.Class
		err   error
	)
	switch t := v.(type) {
	case nil:
		return "", errors.New("container: cannot define a nil class")
	case reflect.Type:
		class, err = reflection.OfType(t, opts...)
	default:
		rt := reflect.TypeOf(v)
		switch {
		case rt.Kind() == reflect.Func:
			class, err = reflection.OfFunc(v, opts...)
		case rt.Kind() == reflect.Pointer && rt.Elem().Kind() == reflect.Interface:
			class, err = reflection.OfType(rt.Elem(), opts...)
		default:
			class, err = reflection.OfType(rt, opts...)
		}
	}
	if err != nil {
		return "", err
	}
	c.classes[class.Name] = class
	return class.Name, nil
}

// discover returns the class identifier of t, describing it on first sight. A
// discovered struct with unexported fields cannot be built; it has to be bound
// or defined explicitly.
func (c *Container) discover(t reflect.Type) (string, error) {
	name := reflection.TypeName(t)
	if _, ok := c.classes[name]; ok {
		return name, nil
	}
	class, err := reflection.OfType(t, reflection.ExportedOnly())
	if err != nil {
		return "", err
	}
	c.classes[name] = class
	return name, nil
}

// Deferred registers a loader that runs the first time abstract is resolved.
// The abstract counts as bound until then.
func (c *Container) Deferred(abstract string, loader func(c *Container) error) {
	c.deferred[abstract] = loader
}

// ── Extend ────────────────────────────────────────────────────────────────────

// Extend decorates the resolved instance of an abstract. An existing shared
// instance is decorated immediately; otherwise the decorator runs on every build.
//
//	// Laravel: $app->extend(Logger::class, fn($logger, $app) => new TimestampLogger($logger))
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return &TimestampLogger{Inner: instance.(Logger)}
//	})
func (c *Container) Extend(abstract string, extender Extender) error {
	abstract = c.GetAlias(abstract)

	if instance, ok := c.instances[abstract]; ok {
		c.instances[abstract] = extender(instance, c)
		c.log.Debug("container: extended instance", zap.String("abstract", abstract))
		return c.rebound(abstract)
	}

	c.extenders[abstract] = append(c.extenders[abstract], extender)
	if c.Resolved(abstract) {
		return c.rebound(abstract)
	}
	return nil
}

// ForgetExtenders removes every decorator queued for abstract.
func (c *Container) ForgetExtenders(abstract string) {
	delete(c.extenders, c.GetAlias(abstract))
}

// ── Tags ──────────────────────────────────────────────────────────────────────

// Tag associates abstracts with one or more named groups.
//
//	// Laravel: $app->tag([CpuReport::class, MemoryReport::class], 'reports')
//	c.Tag([]string{"CpuReport", "MemoryReport"}, "reports")
func (c *Container) Tag(abstracts []string, tags ...string) {
	for _, tag := range tags {
		c.tags[tag] = append(c.tags[tag], abstracts...)
	}
}

// Tagged resolves every abstract registered under tag, in tagging order.
func (c *Container) Tagged(tag string) ([]any, error) {
	abstracts := c.tags[tag]
	result := make([]any, 0, len(abstracts))
	for _, abstract := range abstracts {
		instance, err := c.Make(abstract)
		if err != nil {
			return nil, err
		}
		result = append(result, instance)
	}
	return result, nil
}

// ── Method bindings ───────────────────────────────────────────────────────────

// BindMethod intercepts calls to key ("Class@method", see MethodKey).
func (c *Container) BindMethod(key string, callback MethodBinding) {
	c.methodBindings[key] = callback
}

// HasMethodBinding reports whether key is intercepted.
func (c *Container) HasMethodBinding(key string) bool {
	_, ok := c.methodBindings[key]
	return ok
}

// CallMethodBinding answers key for instance using its registered callback.
func (c *Container) CallMethodBinding(key string, instance any) (any, error) {
	callback, ok := c.methodBindings[key]
	if !ok {
		return nil, fmt.Errorf("container: no method binding for [%s]", key)
	}
	return callback(instance, c)
}

// MethodKey returns the method binding key for method on target's class. The
// method name is keyed in its exported form, so "show" and "Show" share a key.
func MethodKey(target any, method string) string {
	return reflection.TypeName(reflect.TypeOf(target)) + "@" + exportedName(method)
}

func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Bound reports whether abstract has a binding, an instance, a pending deferred
// loader, or is an alias.
func (c *Container) Bound(abstract string) bool {
	_, hasBinding := c.bindings[abstract]
	_, hasInstance := c.instances[abstract]
	_, isDeferred := c.deferred[abstract]
	return hasBinding || hasInstance || isDeferred || c.IsAlias(abstract)
}

// Has is Bound under the name used by service-locator style callers.
func (c *Container) Has(id string) bool { return c.Bound(id) }

// Resolved reports whether abstract has been resolved at least once.
func (c *Container) Resolved(abstract string) bool {
	if c.IsAlias(abstract) {
		abstract = c.GetAlias(abstract)
	}
	_, hasInstance := c.instances[abstract]
	return c.resolved[abstract] || hasInstance
}

// IsShared reports whether abstract resolves to a single shared instance.
func (c *Container) IsShared(abstract string) bool {
	if _, ok := c.instances[abstract]; ok {
		return true
	}
	b, ok := c.bindings[abstract]
	return ok && b.shared
}

// IsAlias reports whether name is registered as an alias.
func (c *Container) IsAlias(name string) bool {
	_, ok := c.aliases[name]
	return ok
}

// GetAlias follows the alias chain from abstract to its canonical name.
func (c *Container) GetAlias(abstract string) string {
	for {
		target, ok := c.aliases[abstract]
		if !ok {
			return abstract
		}
		abstract = target
	}
}

// Bindings returns the sorted abstracts that have a binding or an instance.
func (c *Container) Bindings() []string {
	keys := maps.Clone(c.instances)
	for k := range c.bindings {
		keys[k] = nil
	}
	return slices.Sorted(maps.Keys(keys))
}

// BuildStack returns the classes currently under construction, outermost first.
func (c *Container) BuildStack() []string {
	return slices.Clone(c.buildStack)
}

// ── Forgetting ────────────────────────────────────────────────────────────────

// Forget removes the binding, instance and resolved flag of abstract.
func (c *Container) Forget(abstract string) {
	delete(c.bindings, abstract)
	delete(c.instances, abstract)
	delete(c.resolved, abstract)
}

// ForgetInstance drops the cached instance of abstract.
func (c *Container) ForgetInstance(abstract string) {
	delete(c.instances, c.GetAlias(abstract))
}

// ForgetInstances drops every cached instance.
func (c *Container) ForgetInstances() {
	c.instances = make(map[string]any)
}

// ForgetScopedInstances drops the instances of bindings registered with Scoped.
func (c *Container) ForgetScopedInstances() {
	for _, abstract := range c.scopedInstances {
		delete(c.instances, abstract)
	}
}

// Flush removes all bindings, instances and aliases.
func (c *Container) Flush() {
	c.reset()
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Rebinding registers a callback fired whenever abstract is re-bound. When
// abstract is already bound, its current instance is returned.
//
//	// Laravel: $app->rebinding('request', fn($app, $request) => ...)
func (c *Container) Rebinding(abstract string, callback RebindingCallback) (any, error) {
	abstract = c.GetAlias(abstract)
	c.reboundCallbacks[abstract] = append(c.reboundCallbacks[abstract], callback)
	if c.Bound(abstract) {
		return c.Make(abstract)
	}
	return nil, nil
}

// Refresh calls method on target with the new instance every time abstract is
// re-bound, and returns the current instance.
func (c *Container) Refresh(abstract string, target any, method string) (any, error) {
	callable, err := reflection.Method(target, method)
	if err != nil {
		return nil, err
	}
	return c.Rebinding(abstract, func(c *Container, instance any) {
		if _, err := callable.Call([]any{instance}); err != nil {
			c.log.Warn("container: refresh failed", zap.String("abstract", abstract), zap.Error(err))
		}
	})
}

// BeforeResolving registers a callback fired before abstract is resolved. An
// empty abstract observes every resolution.
func (c *Container) BeforeResolving(abstract string, callback BeforeResolvingCallback) {
	if abstract == "" {
		c.globalBeforeResolving = append(c.globalBeforeResolving, callback)
		return
	}
	c.beforeResolving = append(c.beforeResolving, typedCallback[BeforeResolvingCallback]{c.GetAlias(abstract), callback})
}

// Resolving registers a callback fired when abstract (or any instance of the
// class it names) is resolved. An empty abstract observes every resolution.
//
//	// Laravel: $app->resolving(Logger::class, fn($logger, $app) => ...)
func (c *Container) Resolving(abstract string, callback ResolvingCallback) {
	if abstract == "" {
		c.globalResolving = append(c.globalResolving, callback)
		return
	}
	c.resolving = append(c.resolving, typedCallback[ResolvingCallback]{c.GetAlias(abstract), callback})
}

// AfterResolving registers a callback fired after the resolving callbacks.
//
//	// Laravel: $app->afterResolving(fn($object, $app) => ...)
func (c *Container) AfterResolving(abstract string, callback ResolvingCallback) {
	if abstract == "" {
		c.globalAfterResolving = append(c.globalAfterResolving, callback)
		return
	}
	c.afterResolving = append(c.afterResolving, typedCallback[ResolvingCallback]{c.GetAlias(abstract), callback})
}

func (c *Container) rebound(abstract string) error {
	instance, err := c.Make(abstract)
	if err != nil {
		return err
	}
	c.log.Debug("container: rebound", zap.String("abstract", abstract))
	for _, callback := range c.reboundCallbacks[abstract] {
		callback(c, instance)
	}
	return nil
}

func (c *Container) fireBeforeResolving(abstract string, params Parameters) {
	for _, callback := range c.globalBeforeResolving {
		callback(abstract, params, c)
	}
	for _, tc := range c.beforeResolving {
		if tc.abstract == abstract || c.isSubclassOf(abstract, tc.abstract) {
			tc.callback(abstract, params, c)
		}
	}
}

func (c *Container) fireResolving(abstract string, instance any) {
	for _, callback := range c.globalResolving {
		callback(instance, c)
	}
	for _, tc := range c.resolving {
		if tc.abstract == abstract || c.isInstanceOf(instance, tc.abstract) {
			tc.callback(instance, c)
		}
	}
	for _, callback := range c.globalAfterResolving {
		callback(instance, c)
	}
	for _, tc := range c.afterResolving {
		if tc.abstract == abstract || c.isInstanceOf(instance, tc.abstract) {
			tc.callback(instance, c)
		}
	}
}

// isInstanceOf reports whether instance is a value of the class named class.
func (c *Container) isInstanceOf(instance any, class string) bool {
	target, ok := c.classes[class]
	if !ok || instance == nil {
		return false
	}
	return conforms(reflect.TypeOf(instance), target.Type)
}

// isSubclassOf reports whether the class named abstract produces values of the
// class named class.
func (c *Container) isSubclassOf(abstract, class string) bool {
	source, ok := c.classes[abstract]
	if !ok {
		return false
	}
	target, ok := c.classes[class]
	if !ok {
		return false
	}
	return conforms(source.Type, target.Type)
}

func conforms(t, target reflect.Type) bool {
	if t.AssignableTo(target) {
		return true
	}
	return target.Kind() == reflect.Pointer && t.AssignableTo(target.Elem())
}
