// Package storage defines the durable record contract and the failover
// manager that selects between interchangeable backends.
package storage

import (
	"context"
	"errors"

	"respondr/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// Backend is the uniform surface every store implements. Each backend keeps
// two logical partitions: active records and the soft-delete archive. A record
// id lives in exactly one partition at a time.
type Backend interface {
	// Upsert creates or fully replaces the record with the same ID. Calling
	// it twice with identical input leaves one visible record.
	Upsert(ctx context.Context, rec domain.ResponderMessage) error
	// Get returns the record from either partition.
	Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error)
	// List returns records ordered by ReceivedAt descending. An empty groupID
	// matches all groups; archived records are included only on request.
	List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error)
	// SoftDelete moves the record into the archive partition, preserving all
	// other fields.
	SoftDelete(ctx context.Context, id string) error
	// Undelete moves an archived record back into the active partition.
	Undelete(ctx context.Context, id string) error
	// Purge destroys the record irreversibly, from whichever partition.
	Purge(ctx context.Context, id string) error
	// Ping reports backend reachability; the manager's health probe uses it.
	Ping(ctx context.Context) error
}
