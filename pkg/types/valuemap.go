package types

// PropertyValueMap binds requested descriptors to output lists. GetValues
// appends one value (or nil) per found id to every bound list, and records
// the id in IDs. A PropertyValueMap is not safe for concurrent use.
type PropertyValueMap struct {
	descriptors []Descriptor
	values      map[string][]any
	ids         []int64
}

// NewPropertyValueMap returns a map bound to ds.
func NewPropertyValueMap(ds ...Descriptor) *PropertyValueMap {
	m := &PropertyValueMap{values: make(map[string][]any)}
	for _, d := range ds {
		m.Add(d)
	}
	return m
}

// Add binds d. Binding a structurally equal descriptor twice is a no-op.
func (m *PropertyValueMap) Add(d Descriptor) {
	if _, ok := m.values[d.Key()]; ok {
		return
	}
	m.descriptors = append(m.descriptors, d)
	m.values[d.Key()] = []any{}
}

// Descriptors returns the bound descriptors in binding order.
func (m *PropertyValueMap) Descriptors() []Descriptor {
	return append([]Descriptor(nil), m.descriptors...)
}

// Values returns the list bound to d, or nil when d is not bound.
func (m *PropertyValueMap) Values(d Descriptor) []any {
	return m.values[d.Key()]
}

// IDs returns the ids that produced output, in output order.
func (m *PropertyValueMap) IDs() []int64 { return m.ids }

// Len returns the number of rows appended.
func (m *PropertyValueMap) Len() int { return len(m.ids) }

// AppendRow appends one row: row[i] is the value for Descriptors()[i].
func (m *PropertyValueMap) AppendRow(id int64, row []any) {
	m.ids = append(m.ids, id)
	for i, d := range m.descriptors {
		k := d.Key()
		m.values[k] = append(m.values[k], row[i])
	}
}

// Reset clears the output lists and keeps the bindings.
func (m *PropertyValueMap) Reset() {
	m.ids = nil
	for k := range m.values {
		m.values[k] = []any{}
	}
}
