package history

import (
	"io"
	"time"
)

// RunStore handles run persistence.
type RunStore interface {
	io.Closer
	SaveRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(opts ListOptions) ([]Run, error)
	DeleteRun(id string) error
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

var _ RunStore = (*DB)(nil)
