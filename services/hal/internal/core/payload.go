package core

import "superkit-go/errcode"

// As asserts a payload to the concrete value type T. A pointer to T is
// dereferenced. A nil payload is treated as the zero value of T.
func As[T any](v any) (T, errcode.Code) {
	var zero T
	switch t := v.(type) {
	case nil:
		return zero, ""
	case T:
		return t, ""
	case *T:
		if t == nil {
			return zero, ""
		}
		return *t, ""
	default:
		return zero, errcode.InvalidPayload
	}
}

// Params asserts builder params to P, accepting P or *P.
func Params[P any](v any) (P, error) {
	var zero P
	switch p := v.(type) {
	case P:
		return p, nil
	case *P:
		if p != nil {
			return *p, nil
		}
	}
	return zero, errcode.InvalidParams
}
