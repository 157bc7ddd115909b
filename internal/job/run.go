package job

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Run is the process-lifetime handle of one job execution.
type Run struct {
	Name    string
	ID      string
	Args    map[string]string
	Started time.Time

	log       *zap.Logger
	committed bool
}

// Init starts a run named name. args are the resolved invocation options.
func Init(name string, args map[string]string, log *zap.Logger) *Run {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Run{
		Name:    name,
		ID:      uuid.NewString(),
		Args:    args,
		Started: time.Now(),
	}
	r.log = log.With(zap.String("job", name), zap.String("run_id", r.ID))
	r.log.Info("job: started")
	return r
}

// Logger returns the run-scoped logger.
func (r *Run) Logger() *zap.Logger { return r.log }

// Commit marks the run as successfully finished. Calling it twice is a no-op.
func (r *Run) Commit() {
	if r.committed {
		return
	}
	r.committed = true
	r.log.Info("job: committed", zap.Duration("elapsed", time.Since(r.Started).Truncate(time.Millisecond)))
}

// Committed reports whether Commit has been called.
func (r *Run) Committed() bool { return r.committed }
