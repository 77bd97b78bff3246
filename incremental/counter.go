package incremental

import "go.uber.org/atomic"

// OutstandingJobCounter counts deferred jobs in flight.
type OutstandingJobCounter struct {
	count    atomic.Int64
	launched atomic.Bool
}

// Increment registers a launched job.
func (c *OutstandingJobCounter) Increment() int64 {
	c.launched.Store(true)
	return c.count.Inc()
}

// Decrement registers a finished job and returns the number of jobs still
// running. Finishing more jobs than were launched panics.
func (c *OutstandingJobCounter) Decrement() int64 {
	remaining := c.count.Dec()
	if remaining < 0 {
		panic("incremental: outstanding job counter decremented below zero")
	}
	return remaining
}

func (c *OutstandingJobCounter) Outstanding() int64 {
	return c.count.Load()
}

// Launched reports whether any job was ever launched.
func (c *OutstandingJobCounter) Launched() bool {
	return c.launched.Load()
}
