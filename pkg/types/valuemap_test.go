package types

import "testing"

func TestPropertyValueMap(t *testing.T) {
	name := NewPropertyDescriptor("name", TypeString)
	rank := NewPropertyDescriptor("rank", TypeInteger)
	m := NewPropertyValueMap(name, rank, NewPropertyDescriptor("name", TypeString))

	if got := len(m.Descriptors()); got != 2 {
		t.Fatalf("duplicate binding kept: %d descriptors", got)
	}
	if m.Values(NewPropertyDescriptor("name", TypeInteger)) != nil {
		t.Fatal("unbound descriptor returned a list")
	}

	m.AppendRow(10, []any{"a", int64(1)})
	m.AppendRow(11, []any{nil, int64(2)})
	if m.Len() != 2 || m.IDs()[1] != 11 {
		t.Fatalf("ids = %v", m.IDs())
	}
	if v := m.Values(name); len(v) != 2 || v[0] != "a" || v[1] != nil {
		t.Fatalf("name values = %v", v)
	}

	m.Reset()
	if m.Len() != 0 || len(m.Values(rank)) != 0 || len(m.Descriptors()) != 2 {
		t.Fatal("Reset did not keep bindings and clear values")
	}
}
