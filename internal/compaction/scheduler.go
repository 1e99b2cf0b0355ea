package compaction

// Scheduler is the single-threaded background task queue spec.md
// §4.13 describes: one goroutine draining flush and compaction jobs in
// submission order, so at most one of either ever runs at a time.
type Scheduler struct {
	jobs     chan func()
	done     chan struct{}
	stopping chan struct{}
}

// NewScheduler starts the background worker goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		jobs:     make(chan func(), 64),
		done:     make(chan struct{}),
		stopping: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case job := <-s.jobs:
			job()
		case <-s.stopping:
			// Drain whatever is already queued, then exit. Jobs
			// scheduled after stopping is closed are dropped by
			// Schedule, so this drain is bounded.
			for {
				select {
				case job := <-s.jobs:
					job()
				default:
					return
				}
			}
		}
	}
}

// Schedule enqueues job to run on the background goroutine, or drops
// it silently once Close has been called. Jobs that themselves call
// Schedule (flush and compaction both reschedule the next compaction
// when they finish) would otherwise race Close and could block
// forever or panic trying to enqueue after shutdown.
func (s *Scheduler) Schedule(job func()) {
	select {
	case <-s.stopping:
		return
	default:
	}
	select {
	case s.jobs <- job:
	case <-s.stopping:
	}
}

// Close stops accepting new jobs and waits for the worker to drain the
// queue and exit. The jobs channel is never closed, so a Schedule call
// racing Close can never panic on a send to a closed channel.
func (s *Scheduler) Close() {
	close(s.stopping)
	<-s.done
}
