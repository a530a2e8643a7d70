package types

// CacheModificationReport describes one coherent change scoped to a single
// category: the ids written and the descriptors whose values changed.
type CacheModificationReport struct {
	Category    DataModelCategory
	IDs         []int64
	Descriptors []Descriptor
	// BatchID identifies the deposit that produced the rows. Empty for updates.
	BatchID string
}

// ModificationListener receives reports after the change has committed.
type ModificationListener func(CacheModificationReport)

// ProgressListener receives the number of rows read so far and the number requested.
type ProgressListener func(done, total int)
