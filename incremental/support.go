package incremental

import (
	"context"
	"fmt"
	"sync"

	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/requests"
	"go.uber.org/zap"
)

// Job computes payloads of deferred fields. It must return once ctx is done.
type Job func(ctx context.Context) []*requests.IncrementalPayload

// Support runs the deferred jobs of one operation and turns their payloads
// into a stream of incremental results.
//
// The initial result counts as a job of its own, so the stream cannot finish
// before InitialSent is called. Results produced earlier are queued and
// delivered after it.
type Support struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	counter     OutstandingJobCounter
	accumulator *Accumulator

	pumpOnce sync.Once

	mu       sync.Mutex
	queue    []*requests.IncrementalResult
	finished bool
	notify   chan struct{}
	results  chan *requests.IncrementalResult
}

func NewSupport(ctx context.Context, accumulator *Accumulator, logger *zap.Logger) *Support {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Support{
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		accumulator: accumulator,
		notify:      make(chan struct{}, 1),
		results:     make(chan *requests.IncrementalResult),
	}
	// the initial result
	s.counter.count.Inc()

	return s
}

// Launch starts job in the background.
func (s *Support) Launch(job Job) {
	s.mu.Lock()
	finished := s.finished
	s.mu.Unlock()
	if finished {
		panic("incremental: job launched after the stream finished")
	}

	s.counter.Increment()
	go func() {
		var payloads []*requests.IncrementalPayload
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("deferred job panicked", zap.Any("panic", r))
				payloads = []*requests.IncrementalPayload{{
					Errors: gqlerrors.ErrorList{gqlerrors.NewError(gqlerrors.UndefinedError, fmt.Errorf("deferred job failed: %v", r))},
				}}
			}
			s.complete(payloads)
		}()

		payloads = job(s.ctx)
	}()
}

// Launched reports whether any deferred job was launched, which is the
// hasNext value of the initial result.
func (s *Support) Launched() bool {
	return s.counter.Launched()
}

// InitialSent must be called once the initial result was delivered. It starts
// forwarding incremental results to Results.
func (s *Support) InitialSent() {
	s.startPump()
	s.complete(nil)
}

// Results is closed after the last incremental result or on cancellation.
func (s *Support) Results() <-chan *requests.IncrementalResult {
	return s.results
}

// Cancel aborts running jobs and closes Results, also when the initial
// result was never sent.
func (s *Support) Cancel() {
	s.cancel()
	s.startPump()
}

func (s *Support) startPump() {
	s.pumpOnce.Do(func() {
		go s.pump()
	})
}

func (s *Support) complete(payloads []*requests.IncrementalPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*requests.IncrementalPayload
	var orphans gqlerrors.ErrorList
	for _, p := range payloads {
		if p.Path == nil && p.Data == nil {
			orphans = append(orphans, p.Errors...)
			continue
		}
		ready = append(ready, s.accumulator.Accept(p)...)
	}

	remaining := s.counter.Decrement()
	hasNext := remaining > 0
	if !hasNext {
		if pending := s.accumulator.Pending(); len(pending) > 0 {
			s.logger.Warn("deferred executions left incomplete", zap.Strings("paths", pending))
		}
	}
	if len(orphans) > 0 {
		ready = append(ready, &requests.IncrementalPayload{Path: []interface{}{}, Errors: orphans})
	}

	if !s.counter.Launched() {
		// nothing was deferred, the initial result was the last one
		s.finish()
		return
	}

	if len(ready) > 0 || !hasNext {
		s.queue = append(s.queue, &requests.IncrementalResult{Incremental: ready, HasNext: hasNext})
	}
	if !hasNext {
		s.finish()
	}
	s.signal()
}

func (s *Support) finish() {
	if s.finished {
		panic("incremental: stream finished twice")
	}
	s.finished = true
	s.signal()
}

func (s *Support) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Support) pump() {
	defer close(s.results)

	for {
		s.mu.Lock()
		queue := s.queue
		s.queue = nil
		finished := s.finished
		s.mu.Unlock()

		for _, r := range queue {
			select {
			case s.results <- r:
			case <-s.ctx.Done():
				return
			}
		}

		if finished && len(queue) == 0 {
			return
		}
		if finished {
			continue
		}

		select {
		case <-s.notify:
		case <-s.ctx.Done():
			return
		}
	}
}
