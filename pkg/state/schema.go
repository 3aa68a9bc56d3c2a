package state

import (
	"reflect"
	"sort"
)

// Reducer combines the current value of a field with an update produced
// by a node. Reducers must be pure: the merged state of a super-step is
// fully determined by the pre-step state and the set of updates.
type Reducer func(current, update any) any

// Replace is the default reducer: the update wins.
func Replace(_, update any) any {
	return update
}

// Append concatenates slice updates onto the current slice value. A
// non-slice update is appended as a single element. When the current
// value is nil the update is taken as-is.
func Append(current, update any) any {
	if update == nil {
		return current
	}
	if current == nil {
		return cloneValue(update)
	}

	cur := reflect.ValueOf(current)
	if cur.Kind() != reflect.Slice {
		return update
	}

	upd := reflect.ValueOf(update)
	if upd.Kind() == reflect.Slice && upd.Type() == cur.Type() {
		out := reflect.MakeSlice(cur.Type(), 0, cur.Len()+upd.Len())
		out = reflect.AppendSlice(out, cur)
		out = reflect.AppendSlice(out, upd)
		return out.Interface()
	}
	if upd.Type().AssignableTo(cur.Type().Elem()) {
		out := reflect.MakeSlice(cur.Type(), 0, cur.Len()+1)
		out = reflect.AppendSlice(out, cur)
		out = reflect.Append(out, upd)
		return out.Interface()
	}
	return update
}

// Field declares the merge policy of a single state field.
type Field struct {
	// Reducer merges concurrent updates to this field. Nil means Replace.
	Reducer Reducer
	// Default produces the initial value when the field is absent from
	// the input state. Nil means the field starts unset.
	Default func() any
}

// Schema declares per-field merge policy for a state type. Fields not
// declared in the schema fall back to the Replace reducer.
type Schema struct {
	fields map[string]Field
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// AddField declares a field and returns the schema for chaining.
// Re-declaring a field overwrites the previous policy.
func (s *Schema) AddField(name string, field Field) *Schema {
	s.fields[name] = field
	return s
}

// Init builds the starting state for a run: declared defaults first, then
// the caller input folded in through the reducers.
func (s *Schema) Init(input State) State {
	st := State{}
	for name, field := range s.fields {
		if field.Default != nil {
			st[name] = field.Default()
		}
	}
	return s.Apply(st, input)
}

// Apply folds one partial update into the current state and returns the
// merged result. The inputs are not mutated. Fields within a single
// update are independent, but keys are visited in sorted order so traces
// stay reproducible.
func (s *Schema) Apply(current, update State) State {
	merged := current.Clone()
	if len(update) == 0 {
		return merged
	}

	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		merged[k] = s.reducerFor(k)(merged[k], update[k])
	}
	return merged
}

func (s *Schema) reducerFor(name string) Reducer {
	if s != nil {
		if f, ok := s.fields[name]; ok && f.Reducer != nil {
			return f.Reducer
		}
	}
	return Replace
}
