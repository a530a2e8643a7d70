package types

import "fmt"

// OrderSpecifier is a (property, direction) sort key for GetIDs.
type OrderSpecifier struct {
	Descriptor Descriptor
	Ascending  bool
}

// Ascending orders by d from low to high.
func Ascending(d Descriptor) OrderSpecifier { return OrderSpecifier{Descriptor: d, Ascending: true} }

// Descending orders by d from high to low.
func Descending(d Descriptor) OrderSpecifier { return OrderSpecifier{Descriptor: d} }

// Validate checks that the descriptor can be ordered: a scalar or time span
// property (spans order by start), or an array with an order-by column.
func (o OrderSpecifier) Validate() error {
	switch d := o.Descriptor.(type) {
	case PropertyDescriptor:
		if err := d.Validate(); err != nil {
			return err
		}
		if !d.Type.IsScalar() && d.Type != TypeTimeSpan {
			return fmt.Errorf("%w: cannot order by %s property %q", ErrInvalidOrder, d.Type, d.Name)
		}
	case PropertyArrayDescriptor:
		if d.OrderBy() == NoOrderColumn {
			return fmt.Errorf("%w: array %q has no order-by column", ErrInvalidOrder, d.PropertyName())
		}
	default:
		return fmt.Errorf("%w: unsupported descriptor %T", ErrInvalidOrder, o.Descriptor)
	}
	return nil
}

func (o OrderSpecifier) String() string {
	dir := "desc"
	if o.Ascending {
		dir = "asc"
	}
	return fmt.Sprintf("%s %s", o.Descriptor.Key(), dir)
}
