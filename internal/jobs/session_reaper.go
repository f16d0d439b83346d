package jobs

import (
	"context"
	"fmt"
	"log"
)

// SessionPurger deletes sessions that are past their expiry
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// SessionReaper removes expired login sessions on every tick
type SessionReaper struct {
	purger SessionPurger
}

func NewSessionReaper(purger SessionPurger) *SessionReaper {
	return &SessionReaper{purger: purger}
}

// ProcessJobs implements the JobProcessor interface
func (r *SessionReaper) ProcessJobs(ctx context.Context) error {
	n, err := r.purger.PurgeExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	if n > 0 {
		log.Printf("session reaper: removed %d expired sessions", n)
	}
	return nil
}
