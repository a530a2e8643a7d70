package types

import (
	"context"
	"time"
)

// NoLimit passed as the GetIDs limit returns every matching id.
const NoLimit = -1

// Cache is the categorized object store. All methods are safe for
// concurrent use. Operations on disjoint categories never wait on each
// other's accessor callbacks.
type Cache interface {
	// Initialize sets the size limit in bytes; zero or less disables it.
	Initialize(sizeLimitBytes int64) error

	// Close releases the store. After Close every operation returns ErrCacheClosed.
	Close() error

	// Put deposits a batch and returns one id per object in iteration
	// order. Fresh ids are strictly increasing within the batch; with
	// Append and a Key, merged objects keep the id of the stored row.
	// Objects of one batch must not share a non-nil key. The batch commits
	// atomically; the listener receives one report after commit.
	Put(ctx context.Context, d Deposit, listener ModificationListener) ([]int64, error)

	// GetIDs returns the ids in the categories matching category that
	// satisfy every matcher, sorted by the order specifiers (insertion
	// order when none), skipping start ids and returning at most limit.
	GetIDs(ctx context.Context, category DataModelCategory, matchers []PropertyMatcher,
		orders []OrderSpecifier, start, limit int) ([]int64, error)

	// GetValues appends the values of the bound descriptors for every
	// known id, in the order given. Unknown ids produce no output. Values
	// come back in the canonical forms described by NormalizeValue.
	GetValues(ctx context.Context, ids []int64, values *PropertyValueMap, progress ProgressListener) error

	// UpdateValues writes new values for ids from u, whose i-th object
	// belongs to ids[i]. One report per touched category is sent to the
	// listener. A positive budget bounds the call; on expiry nothing commits.
	UpdateValues(ctx context.Context, ids []int64, u Updater, budget time.Duration, listener ModificationListener) error

	// ClearIDs removes the given rows.
	ClearIDs(ctx context.Context, ids []int64) error

	// Clear removes every row and category.
	Clear(ctx context.Context) error

	// GetDataModelCategories returns the category of each id, in order.
	// Unknown ids map to the zero category.
	GetDataModelCategories(ctx context.Context, ids []int64) ([]DataModelCategory, error)

	// GetDataModelCategoriesByModelID returns the distinct categories of
	// ids, with each component whose flag is false collapsed to the wildcard.
	GetDataModelCategoriesByModelID(ctx context.Context, ids []int64,
		bySource, byFamily, byCategory bool) ([]DataModelCategory, error)

	// PurgeExpired removes rows whose expiration has passed and returns how many.
	PurgeExpired(ctx context.Context) (int, error)
}
