package eventbus

import "github.com/xraph/eventbus/id"

// ID is the primary identifier type for all Eventbus entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
