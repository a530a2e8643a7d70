package types

import (
	"context"
	"fmt"
	"time"
)

// CacheDeposit is a batch of objects of type T bound for one category.
//
// Append=false means the accessors define the complete column set for the
// deposited rows: when Key is set, stored rows whose key equals an incoming
// key are superseded. Append=true merges in place: rows with a matching key
// keep their id and only the written columns change.
type CacheDeposit[T any] struct {
	Category  DataModelCategory
	Accessors []PropertyAccessor[T]
	Objects   []T

	// Key optionally names the accessor whose value identifies an object
	// across deposits. It must be a scalar PropertyDescriptor among Accessors.
	Key *PropertyDescriptor

	Append bool

	// Expiration is when the deposited rows expire. Zero never expires.
	Expiration time.Time

	// Critical rows are never evicted to satisfy the size limit.
	Critical bool
}

// Batch is the type-erased form of a deposit consumed by the store.
type Batch struct {
	Category   DataModelCategory
	RowSet     RowSet
	KeyIndex   int // index into RowSet.Descriptors, or -1
	Append     bool
	Expiration time.Time
	Critical   bool
}

// Deposit is implemented by CacheDeposit for every T.
type Deposit interface {
	Batch(ctx context.Context) (Batch, error)
}

var _ Deposit = CacheDeposit[struct{}]{}

// Batch validates the deposit and extracts its rows.
func (d CacheDeposit[T]) Batch(ctx context.Context) (Batch, error) {
	if d.Category.IsWildcard() {
		return Batch{}, fmt.Errorf("%w: deposit category %s has an empty component", ErrInvalidCategory, d.Category)
	}
	if len(d.Accessors) == 0 {
		return Batch{}, fmt.Errorf("%w: deposit has no accessors", ErrInvalidDescriptor)
	}

	keyIndex := -1
	if d.Key != nil {
		if !d.Key.Type.IsScalar() {
			return Batch{}, fmt.Errorf("%w: key %q must be scalar", ErrInvalidDescriptor, d.Key.Name)
		}
		for i, a := range d.Accessors {
			if pd, ok := a.Descriptor().(PropertyDescriptor); ok && pd == *d.Key {
				keyIndex = i
				break
			}
		}
		if keyIndex < 0 {
			return Batch{}, fmt.Errorf("%w: key %s has no accessor", ErrInvalidDescriptor, d.Key)
		}
	}

	rs, err := ExtractRows(ctx, d.Objects, d.Accessors)
	if err != nil {
		return Batch{}, err
	}
	return Batch{
		Category:   d.Category,
		RowSet:     rs,
		KeyIndex:   keyIndex,
		Append:     d.Append,
		Expiration: d.Expiration,
		Critical:   d.Critical,
	}, nil
}

// Updater supplies replacement values for UpdateValues.
type Updater interface {
	Rows(ctx context.Context) (RowSet, error)
}

// Update pairs objects with the accessors that extract their new values.
// Objects[i] supplies the values for the i-th id passed to UpdateValues.
type Update[T any] struct {
	Objects   []T
	Accessors []PropertyAccessor[T]
}

var _ Updater = Update[struct{}]{}

// NewUpdate returns an Update for objects.
func NewUpdate[T any](objects []T, accessors ...PropertyAccessor[T]) Update[T] {
	return Update[T]{Objects: objects, Accessors: accessors}
}

// Rows extracts the replacement values.
func (u Update[T]) Rows(ctx context.Context) (RowSet, error) {
	if len(u.Accessors) == 0 {
		return RowSet{}, fmt.Errorf("%w: update has no accessors", ErrInvalidDescriptor)
	}
	return ExtractRows(ctx, u.Objects, u.Accessors)
}
