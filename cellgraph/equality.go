package cellgraph

import (
	"math"
	"reflect"
)

// Comparable returns an EqualFunc using ==, so NaN never equals itself.
func Comparable[T comparable]() EqualFunc[T] {
	return func(prev, next T) bool {
		return prev == next
	}
}

// Never treats every write as a change.
func Never[T any]() EqualFunc[T] {
	return func(prev, next T) bool {
		return false
	}
}

// defaultEqual compares primitives by value, pointers and channels by identity,
// and everything else structurally. Two NaNs are equal, so rewriting NaN is not a
// change.
func defaultEqual[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return sameAs(av, any(b))
	case int64:
		return sameAs(av, any(b))
	case int32:
		return sameAs(av, any(b))
	case uint:
		return sameAs(av, any(b))
	case uint64:
		return sameAs(av, any(b))
	case uint32:
		return sameAs(av, any(b))
	case float64:
		bv, ok := any(b).(float64)
		return ok && (av == bv || math.IsNaN(av) && math.IsNaN(bv))
	case float32:
		bv, ok := any(b).(float32)
		return ok && (av == bv || math.IsNaN(float64(av)) && math.IsNaN(float64(bv)))
	case string:
		return sameAs(av, any(b))
	case bool:
		return sameAs(av, any(b))
	}

	va, vb := reflect.ValueOf(any(a)), reflect.ValueOf(any(b))
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Func:
		// functions are never equal to anything, not even themselves
		return false
	}
	return reflect.DeepEqual(a, b)
}

func sameAs[V comparable](a V, b any) bool {
	bv, ok := b.(V)
	return ok && a == bv
}
