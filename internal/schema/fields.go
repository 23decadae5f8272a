package schema

// Fields is a string-to-string map that remembers insertion order. Sample
// sheets are order-sensitive on output, so header, settings, and custom
// column data all flow through this type instead of a bare map.
//
// The zero value is not usable; call NewFields. Reads on a nil *Fields are
// safe and behave like an empty map.
type Fields struct {
	keys []string
	vals map[string]string
}

// NewFields returns an empty Fields.
func NewFields() *Fields {
	return &Fields{vals: make(map[string]string)}
}

// FieldsFrom builds a Fields from alternating key, value pairs.
func FieldsFrom(pairs ...string) *Fields {
	f := NewFields()
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Set(pairs[i], pairs[i+1])
	}
	return f
}

// Set inserts or updates a key. Updating keeps the key's original position.
func (f *Fields) Set(key, value string) {
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = value
}

// Get returns the value for key, or "" when absent.
func (f *Fields) Get(key string) string {
	if f == nil {
		return ""
	}
	return f.vals[key]
}

// Lookup returns the value for key and whether it is present.
func (f *Fields) Lookup(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (f *Fields) Has(key string) bool {
	if f == nil {
		return false
	}
	_, ok := f.vals[key]
	return ok
}

// Keys returns the keys in insertion order. The slice is a copy.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Clone returns an independent copy. Cloning nil yields an empty Fields.
func (f *Fields) Clone() *Fields {
	out := NewFields()
	if f == nil {
		return out
	}
	for _, k := range f.keys {
		out.Set(k, f.vals[k])
	}
	return out
}

// Each calls fn for every pair in insertion order.
func (f *Fields) Each(fn func(key, value string)) {
	if f == nil {
		return
	}
	for _, k := range f.keys {
		fn(k, f.vals[k])
	}
}
