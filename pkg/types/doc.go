// Package types defines the Cache interface, the property model, deposit and
// query value types, and the standard errors for the registry cache.
//
// A registry cache stores application objects partitioned by
// DataModelCategory. Callers describe how an object maps to columns with
// PropertyAccessor values, deposit batches with CacheDeposit, query ids back
// with PropertyMatcher and OrderSpecifier, and read or update values through
// PropertyValueMap and Update.
package types
