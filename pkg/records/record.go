// Package records defines the row representation shared by every stage of the
// job: parsers produce records, transformers rewrite them, sinks encode them.
package records

// Record is a single row keyed by column name. A missing key and a nil value
// both represent SQL NULL.
type Record map[string]any

// IsNull reports whether column is absent from r or holds nil.
func (r Record) IsNull(column string) bool {
	v, ok := r[column]
	return !ok || v == nil
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
