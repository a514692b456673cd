package orders

import "github.com/xraph/orders/id"

// ID is the primary identifier type for all entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
