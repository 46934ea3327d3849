package pagewatch

import "github.com/pagewatch/pagewatch/id"

// ID is the primary identifier type for all pagewatch entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
