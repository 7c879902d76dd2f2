package mockprep

import (
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/types"
)

// Re-export common types for convenience so callers don't have to import
// the id and types packages.

// ID is the primary identifier type for all mockprep entities.
type ID = id.ID

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

var (
	USD       = types.USD
	NewEntity = types.NewEntity
)
