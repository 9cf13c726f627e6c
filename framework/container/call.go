package container

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/km-arc/go-laravel-container/framework/reflection"
)

// invokeMethod is called on a class resolved from a "Class" callback that names
// no method.
const invokeMethod = "Invoke"

// Method is a callable bound to an object: the Go form of [$object, 'method'].
type Method struct {
	Target any
	Name   string
}

// Call invokes callback, injecting every parameter the caller did not supply.
//
// callback may be a "Class@method" string (the class is made through the
// container), a class identifier together with a default method, a Method, a
// *reflection.Callable, or any func. Parameters are matched by name, then
// class-typed parameters by class identifier; the rest are made by the container
// or fall back to their defaults. Unused parameters are passed, sorted by name,
// to a variadic final parameter.
//
//	// Laravel: $app->call('UserController@show', ['id' => 1])
//	out, err := c.Call("UserController@Show", container.Parameters{"id": 1})
func (c *Container) Call(callback any, params Parameters, defaultMethod ...string) (any, error) {
	method := ""
	if len(defaultMethod) > 0 {
		method = defaultMethod[0]
	}

	switch cb := callback.(type) {
	case string:
		if method == "" && !strings.Contains(cb, "@") && c.classHasMethod(cb, invokeMethod) {
			method = invokeMethod
		}
		if strings.Contains(cb, "@") || method != "" {
			return c.callClass(cb, params, method)
		}
		return nil, c.resolutionError(ErrMethodNotProvided, "Method not provided for [%s]", cb)
	case Method:
		return c.callBoundMethod(cb, params)
	case *Method:
		return c.callBoundMethod(*cb, params)
	case *reflection.Callable:
		return c.callCallable(cb, params)
	}

	if callback == nil || reflect.TypeOf(callback).Kind() != reflect.Func {
		return nil, c.resolutionError(ErrInvalidConcrete, "Callback of type [%T] is not callable", callback)
	}
	callable, err := reflection.Func(callback)
	if err != nil {
		return nil, c.resolutionError(err, "Unable to describe callback")
	}
	return c.callCallable(callable, params)
}

// callClass splits "Class@method", makes the class and calls the method on it.
func (c *Container) callClass(target string, params Parameters, defaultMethod string) (any, error) {
	segments := strings.Split(target, "@")
	method := defaultMethod
	if len(segments) == 2 {
		method = segments[1]
	}
	if method == "" {
		return nil, c.resolutionError(ErrMethodNotProvided, "Method not provided for [%s]", target)
	}

	instance, err := c.Make(segments[0])
	if err != nil {
		return nil, err
	}
	return c.callBoundMethod(Method{Target: instance, Name: method}, params)
}

// callBoundMethod answers from a method binding when one is registered for the
// target's class, and reflects into the method otherwise.
func (c *Container) callBoundMethod(m Method, params Parameters) (any, error) {
	key := MethodKey(m.Target, m.Name)
	if c.HasMethodBinding(key) {
		return c.CallMethodBinding(key, m.Target)
	}

	callable, err := reflection.Method(m.Target, m.Name)
	if err != nil {
		return nil, c.resolutionError(err, "Unable to call [%s]", key)
	}
	return c.callCallable(callable, params)
}

func (c *Container) callCallable(callable *reflection.Callable, params Parameters) (any, error) {
	remaining := maps.Clone(params)
	if remaining == nil {
		remaining = make(Parameters)
	}

	args := make([]any, 0, len(callable.Params))
	for _, p := range callable.Params {
		arg, err := c.dependencyForCallParameter(p, remaining)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	extra := make([]any, 0, len(remaining))
	for _, name := range slices.Sorted(maps.Keys(remaining)) {
		extra = append(extra, remaining[name])
	}

	out, err := callable.Call(args, extra...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// dependencyForCallParameter consumes the value for p from params, or resolves it.
func (c *Container) dependencyForCallParameter(p reflection.Parameter, params Parameters) (any, error) {
	if v, ok := params[p.Name]; ok {
		delete(params, p.Name)
		return v, nil
	}

	if className := p.ClassName(); className != "" {
		if v, ok := params[className]; ok {
			delete(params, className)
			return v, nil
		}
		t, _ := p.ClassType()
		name, err := c.discover(t)
		if err != nil {
			return nil, c.resolutionError(err, "Unable to describe [%s]", className)
		}
		return c.Make(name)
	}

	if p.DefaultValueAvailable() {
		return p.DefaultValue(), nil
	}
	if p.Variadic {
		return nil, nil
	}
	return nil, c.resolutionError(ErrUnresolvablePrimitive, "Unable to resolve dependency [%s] in class %s", p, p.Declarer)
}

// classHasMethod reports whether the class abstract resolves to has method.
func (c *Container) classHasMethod(abstract, method string) bool {
	class, ok := c.classes[c.GetAlias(abstract)]
	if !ok || class.Type == nil {
		return false
	}
	_, found := class.Type.MethodByName(method)
	return found
}

// Wrap returns a func that calls callback with params when invoked.
func (c *Container) Wrap(callback any, params Parameters) func() (any, error) {
	return func() (any, error) {
		return c.Call(callback, params)
	}
}

func (m Method) String() string {
	return fmt.Sprintf("%s@%s", reflection.TypeName(reflect.TypeOf(m.Target)), m.Name)
}
