// Package sqlite provides the public API for the SQLite registry cache.
// It exposes the factory and options while keeping the implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/registry/internal/sqlite"
	"github.com/mesh-intelligence/registry/pkg/types"
)

// Option configures the backend.
type Option = sqlite.Option

// Options re-exported from the implementation.
var (
	WithLogger     = sqlite.WithLogger
	WithRegisterer = sqlite.WithRegisterer
	WithClock      = sqlite.WithClock
)

// Open creates a SQLite cache in config.DataDir and returns it ready for
// use. Call Close to release it.
//
// Example:
//
//	cache, err := sqlite.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".registry-db",
//	}, sqlite.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
func Open(config types.Config, opts ...Option) (types.Cache, error) {
	b := sqlite.NewBackend(opts...)
	if err := b.Attach(config); err != nil {
		return nil, err
	}
	return b, nil
}
