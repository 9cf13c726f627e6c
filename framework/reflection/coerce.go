package reflection

import (
	"fmt"
	"reflect"
)

// Coerce adapts v to type t. Assignable values pass through, a pointer is
// dereferenced (or a value addressed) when only the other shape fits, and numeric
// and string kinds convert among themselves. nil becomes the zero value of t.
func Coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch {
	case rt.AssignableTo(t):
		return rv, nil
	case rt.Kind() == reflect.Pointer && rt.Elem().AssignableTo(t):
		if rv.IsNil() {
			return reflect.Zero(t), nil
		}
		return rv.Elem(), nil
	case t.Kind() == reflect.Pointer && rt.AssignableTo(t.Elem()):
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(rv)
		return ptr, nil
	case isNumeric(rt.Kind()) && isNumeric(t.Kind()),
		rt.Kind() == reflect.String && t.Kind() == reflect.String:
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %s as %s", ErrTypeMismatch, rt, t)
}

// CoerceSlice adapts v to the slice type t element by element. A single
// non-slice value becomes a one-element slice.
func CoerceSlice(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.MakeSlice(t, 0, 0), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	items := toList(v)
	out := reflect.MakeSlice(t, 0, len(items))
	for i, item := range items {
		elem, err := Coerce(item, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out = reflect.Append(out, elem)
	}
	return out, nil
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || k == reflect.Float32 || k == reflect.Float64
}
