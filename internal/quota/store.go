package quota

import (
	"context"
	"time"
)

// Store persists one State per platform.
//
// Load never fails: a missing, unreadable or corrupt record yields a fresh
// state dated today. Save reports failures to the caller, which keeps using
// its in-memory state.
type Store interface {
	Load(ctx context.Context, platform string) State
	Save(ctx context.Context, platform string, s State) error
	Close() error
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
