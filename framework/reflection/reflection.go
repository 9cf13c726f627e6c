// Package reflection describes the constructors and callables the container
// builds and invokes.
//
// Go carries no parameter names at runtime, so a "class" is described from one of
// two registration-time sources:
//
//	// Struct types: exported fields are the constructor parameters.
//	type Mailer struct {
//	    Transport Transport                 // class-typed, resolved by the container
//	    From      string `default:"noreply@example.com"`
//	    Retries   int    `inject:"retries" optional:"true"`
//	}
//	class, _ := reflection.OfType(reflect.TypeOf(Mailer{}))
//
//	// Constructor functions: parameter names are supplied explicitly.
//	class, _ := reflection.OfFunc(NewMailer, reflection.Named("transport", "from"))
package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"time"
	"unicode"
)

var (
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	durationType = reflect.TypeOf(time.Duration(0))
)

// ErrTypeMismatch is returned when a resolved value cannot be used for a parameter.
var ErrTypeMismatch = errors.New("type mismatch")

// ── Parameters ───────────────────────────────────────────────────────────────

// Parameter describes one formal parameter of a constructor or callable.
type Parameter struct {
	Name  string
	Index int          // argument position, or struct field index
	Type  reflect.Type // declared type; the slice type for variadic parameters

	Variadic   bool
	Optional   bool
	HasDefault bool
	Default    any

	// Declarer is the class or function that declares the parameter.
	Declarer string
}

// ClassType returns the type p requires when it is class-typed. For variadic
// parameters this is the element type.
func (p Parameter) ClassType() (reflect.Type, bool) {
	t := p.Type
	if p.Variadic {
		t = t.Elem()
	}
	if IsClassType(t) {
		return t, true
	}
	return nil, false
}

// ClassName returns the class identifier p requires, or "" for primitives.
func (p Parameter) ClassName() string {
	if t, ok := p.ClassType(); ok {
		return TypeName(t)
	}
	return ""
}

// DefaultValueAvailable reports whether p can fall back to a declared default.
func (p Parameter) DefaultValueAvailable() bool {
	return p.HasDefault || p.Optional
}

// DefaultValue returns the declared default, or the zero value of an optional
// parameter.
func (p Parameter) DefaultValue() any {
	if p.HasDefault {
		return p.Default
	}
	if p.Variadic {
		return reflect.MakeSlice(p.Type, 0, 0).Interface()
	}
	return reflect.Zero(p.Type).Interface()
}

// Coerce converts a resolved value into an argument for p.
func (p Parameter) Coerce(v any) (reflect.Value, error) {
	var (
		rv  reflect.Value
		err error
	)
	if p.Variadic {
		rv, err = CoerceSlice(v, p.Type)
	} else {
		rv, err = Coerce(v, p.Type)
	}
	if err != nil {
		return reflect.Value{}, fmt.Errorf("parameter [%s] of %s: %w", p.Name, p.Declarer, err)
	}
	return rv, nil
}

func (p Parameter) String() string {
	req := "<required>"
	if p.DefaultValueAvailable() {
		req = "<optional>"
	}
	return fmt.Sprintf("Parameter #%d [ %s %s %s ]", p.Index, req, p.Type, p.Name)
}

// ── Classes ──────────────────────────────────────────────────────────────────

// Class describes a constructible (or, for interfaces, non-constructible) type.
type Class struct {
	Name   string
	Type   reflect.Type // type of the values New returns
	Params []Parameter

	instantiable bool
	construct    func(args []reflect.Value) (any, error)
}

// Instantiable reports whether New can produce a value.
func (c *Class) Instantiable() bool { return c.instantiable }

// New builds an instance from arguments aligned with c.Params.
func (c *Class) New(args []any) (any, error) {
	if !c.instantiable {
		return nil, fmt.Errorf("reflection: %s is not instantiable", c.Name)
	}
	if len(args) != len(c.Params) {
		return nil, fmt.Errorf("reflection: %s expects %d arguments, got %d", c.Name, len(c.Params), len(args))
	}
	values := make([]reflect.Value, len(args))
	for i, p := range c.Params {
		v, err := p.Coerce(args[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return c.construct(values)
}

// OfType describes a struct type (or pointer to one) as a class whose exported
// fields are its constructor parameters. Interfaces and other kinds are described
// as non-instantiable, as are structs with unexported fields under ExportedOnly.
func OfType(t reflect.Type, opts ...Option) (*Class, error) {
	if t == nil {
		return nil, errors.New("reflection: nil type")
	}
	o := newOptions(opts)

	c := &Class{Name: TypeName(t), Type: t}
	if o.name != "" {
		c.Name = o.name
	}

	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return c, nil
	}
	c.Type = reflect.PointerTo(st)

	hidden := false
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			hidden = true
			continue
		}
		if f.Anonymous {
			continue
		}
		tag := f.Tag.Get("inject")
		if tag == "-" {
			continue
		}
		p := Parameter{
			Name:     tag,
			Index:    i,
			Type:     f.Type,
			Variadic: f.Type.Kind() == reflect.Slice && IsClassType(f.Type.Elem()),
			Optional: f.Tag.Get("optional") == "true",
			Declarer: c.Name,
		}
		if p.Name == "" {
			p.Name = lowerFirst(f.Name)
		}
		if raw, ok := f.Tag.Lookup("default"); ok {
			v, err := parseDefault(raw, f.Type)
			if err != nil {
				return nil, fmt.Errorf("reflection: field %s.%s: %w", c.Name, f.Name, err)
			}
			p.Default, p.HasDefault = v, true
		}
		c.Params = append(c.Params, p)
	}
	if err := o.apply(c.Name, c.Params); err != nil {
		return nil, err
	}
	if hidden && o.exportedOnly {
		return c, nil
	}

	c.instantiable = true
	c.construct = func(args []reflect.Value) (any, error) {
		ptr := reflect.New(st)
		for i, p := range c.Params {
			ptr.Elem().Field(p.Index).Set(args[i])
		}
		return ptr.Interface(), nil
	}
	return c, nil
}

// OfFunc describes a constructor function returning (T) or (T, error). The class
// is named after T unless As is given.
func OfFunc(fn any, opts ...Option) (*Class, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("reflection: %T is not a constructor function", fn)
	}
	ft := v.Type()
	switch {
	case ft.NumOut() == 1 && ft.Out(0) != errorType:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("reflection: constructor %s must return (T) or (T, error)", FuncName(v))
	}
	o := newOptions(opts)

	c := &Class{Name: TypeName(ft.Out(0)), Type: ft.Out(0)}
	if o.name != "" {
		c.Name = o.name
	}
	c.Params = describe(ft, o.names, c.Name)
	if err := o.apply(c.Name, c.Params); err != nil {
		return nil, err
	}

	c.instantiable = true
	c.construct = func(args []reflect.Value) (any, error) {
		return Results(invoke(v, args))
	}
	return c, nil
}

// ── Callables ────────────────────────────────────────────────────────────────

// ParamNamer is implemented by types that name the parameters of their methods,
// so callers can pass method arguments by name.
type ParamNamer interface {
	ParamNames(method string) []string
}

// Callable is a function or bound method together with its parameter list.
type Callable struct {
	Name   string
	Params []Parameter
	fn     reflect.Value
}

// Func describes a free function. Parameter names come from Named.
func Func(fn any, opts ...Option) (*Callable, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("reflection: %T is not callable", fn)
	}
	o := newOptions(opts)
	name := o.name
	if name == "" {
		name = FuncName(v)
	}
	params := describe(v.Type(), o.names, name)
	if err := o.apply(name, params); err != nil {
		return nil, err
	}
	return &Callable{Name: name, Params: params, fn: v}, nil
}

// Method describes the method named method on target. A lower-case first letter
// is accepted for exported methods ("show" finds Show).
func Method(target any, method string, opts ...Option) (*Callable, error) {
	if target == nil {
		return nil, errors.New("reflection: method target is nil")
	}
	rv := reflect.ValueOf(target)
	m := rv.MethodByName(method)
	if !m.IsValid() {
		method = upperFirst(method)
		m = rv.MethodByName(method)
	}
	if !m.IsValid() {
		return nil, fmt.Errorf("reflection: method %s@%s does not exist", TypeName(rv.Type()), method)
	}

	o := newOptions(opts)
	names := o.names
	if namer, ok := target.(ParamNamer); ok && len(names) == 0 {
		names = namer.ParamNames(method)
	}
	name := TypeName(rv.Type()) + "@" + method
	params := describe(m.Type(), names, name)
	if err := o.apply(name, params); err != nil {
		return nil, err
	}
	return &Callable{Name: name, Params: params, fn: m}, nil
}

// Call invokes the callable with arguments aligned with c.Params. Values past the
// last parameter are appended to a variadic parameter and dropped otherwise.
func (c *Callable) Call(args []any, extra ...any) (any, error) {
	if len(args) != len(c.Params) {
		return nil, fmt.Errorf("reflection: %s expects %d arguments, got %d", c.Name, len(c.Params), len(args))
	}
	values := make([]reflect.Value, len(args))
	for i, p := range c.Params {
		arg := args[i]
		if p.Variadic && len(extra) > 0 {
			arg = append(toList(arg), extra...)
		}
		v, err := p.Coerce(arg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return Results(invoke(c.fn, values))
}

// Results folds a function's return values into a single value and error. A
// trailing error result is split off; several remaining values become a []any.
func Results(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	values := make([]any, len(out))
	for i, v := range out {
		values[i] = v.Interface()
	}
	return values, nil
}

// ── Type names ───────────────────────────────────────────────────────────────

// IsClassType reports whether t is resolved by the container rather than being a
// primitive: non-empty interfaces, structs and pointers to structs.
func IsClassType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Interface:
		return t.NumMethod() > 0
	case reflect.Struct:
		return true
	case reflect.Pointer:
		return t.Elem().Kind() == reflect.Struct
	}
	return false
}

// TypeName returns the class identifier of t: the package-qualified type name with
// one pointer level stripped, so *app.Logger and app.Logger name the same class.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// FuncName returns the runtime name of a function value.
func FuncName(v reflect.Value) string {
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return v.Type().String()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func describe(ft reflect.Type, names []string, declarer string) []Parameter {
	params := make([]Parameter, ft.NumIn())
	for i := range params {
		p := Parameter{
			Name:     "arg" + strconv.Itoa(i),
			Index:    i,
			Type:     ft.In(i),
			Variadic: ft.IsVariadic() && i == ft.NumIn()-1,
			Declarer: declarer,
		}
		if i < len(names) && names[i] != "" {
			p.Name = names[i]
		}
		params[i] = p
	}
	return params
}

func invoke(fn reflect.Value, args []reflect.Value) []reflect.Value {
	if fn.Type().IsVariadic() {
		return fn.CallSlice(args)
	}
	return fn.Call(args)
}

func toList(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []any{v}
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list
}

func parseDefault(raw string, t reflect.Type) (any, error) {
	v := reflect.New(t).Elem()
	switch {
	case t == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, err
		}
		v.SetInt(int64(d))
	case t.Kind() == reflect.String:
		v.SetString(raw)
	case t.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		v.SetBool(b)
	case isInt(t.Kind()):
		i, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetInt(i)
	case isUint(t.Kind()):
		u, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetUint(u)
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		f, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetFloat(f)
	default:
		return nil, fmt.Errorf("default tag not supported for %s", t)
	}
	return v.Interface(), nil
}

// lowerFirst lowers the leading capitals of a Go identifier: Logger -> logger,
// URL -> url, DBHost -> dbHost.
func lowerFirst(s string) string {
	r := []rune(s)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n > 1 && n < len(r):
		n--
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
