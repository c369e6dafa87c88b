package audit

import (
	"context"
	"log/slog"
	"time"
)

// recordTimeout bounds how long a best-effort audit write may take.
const recordTimeout = 5 * time.Second

// Recorder writes audit events without letting a failed write fail the
// request that triggered it. Errors are logged and dropped.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

// NewRecorder creates a best-effort recorder over the repository.
// A nil repository disables recording entirely.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record persists an event, detached from the request's own deadline so
// a cancelled request still leaves its trail.
func (r *Recorder) Record(event *Event) {
	if r == nil || r.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, event); err != nil {
		r.logger.Error("audit record failed",
			"action", event.Action,
			"username", event.Username,
			"error", err,
		)
	}
}
