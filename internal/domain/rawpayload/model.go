package rawpayload

import "time"

// Payload is a content-hashed snapshot of a raw source response, archived
// as fetched so reconciliation decisions can be replayed against the exact
// input that produced them.
type Payload struct {
	Source      string
	EntityType  string
	EntityKey   string
	PayloadJSON string
	PayloadHash string
	FetchedAt   time.Time
}
