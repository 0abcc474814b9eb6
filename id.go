package jobhost

import "github.com/xraph/jobhost/id"

// ID is the identifier type used for lease tokens, ticks and instances.
type ID = id.ID

// Prefix identifies the kind of entity encoded in an ID.
type Prefix = id.Prefix
