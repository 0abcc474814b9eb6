package mongo

import "time"

// leaseModel is the document stored per lease.
type leaseModel struct {
	Name        string     `bson:"_id"`
	Payload     []byte     `bson:"payload"`
	Token       string     `bson:"token,omitempty"`
	LockedUntil *time.Time `bson:"locked_until,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}
