package receipts

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces collision resistant artifact names without extension.
type IDGenerator interface {
	NewID() string
}

// TimestampIDs names artifacts <unix millis>-<random hex>.
type TimestampIDs struct {
	Now func() time.Time
}

func (g TimestampIDs) NewID() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strconv.FormatInt(now().UnixMilli(), 10) + "-" + suffix
}

// UUIDs names artifacts with a random UUID.
type UUIDs struct{}

func (UUIDs) NewID() string { return uuid.NewString() }
