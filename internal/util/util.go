package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// RecordIDFromSource derives the stable record identity from the platform's
// message id. Same source message, same id: that is the whole idempotency
// story for queue redelivery.
func RecordIDFromSource(sourceMessageID string) string {
	return "gm_" + sourceMessageID
}

// NewRecordID mints an id for administratively created records, which have no
// source message to derive from. ULIDs sort by creation time, which keeps
// dashboard indexes happy.
func NewRecordID() string {
	t := time.Now().UTC()
	return "adm_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
