package state

import "reflect"

// State holds the evolving data of a graph run as a mapping from field
// name to value. Nodes never mutate the state they receive; they return
// partial updates that the executor folds in through the schema reducers.
type State map[string]any

// Get retrieves a value by field name.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Clone creates a copy of the state. Map and slice values are copied one
// level deep so that concurrently executing nodes cannot observe each
// other's in-flight changes; scalar values are treated as immutable.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	cloned := make(State, len(s))
	for k, v := range s {
		cloned[k] = cloneValue(v)
	}
	return cloned
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case State:
		return val.Clone()
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && !rv.IsNil() {
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	}
	return v
}
