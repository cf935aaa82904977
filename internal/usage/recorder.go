package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const flushTimeout = 5 * time.Second

// Recorder buffers per-request token usage and flushes daily aggregates to the
// database in the background.
type Recorder struct {
	repo    *Repository
	flusher *flusher
	logger  *slog.Logger
}

// NewRecorder creates a recorder. A nil repository yields a no-op recorder.
func NewRecorder(repo *Repository, flushInterval, maxBackoff time.Duration, maxPending int, logger *slog.Logger) *Recorder {
	recorder := &Recorder{
		repo:   repo,
		logger: logger,
	}
	if repo != nil {
		recorder.flusher = newFlusher(repo, flushInterval, maxBackoff, maxPending, logger)
		recorder.flusher.start()
	}
	return recorder
}

// Record buffers one request's token usage.
func (r *Recorder) Record(ctx context.Context, inputTokens int64, outputTokens int64) {
	if r == nil || r.flusher == nil {
		return
	}
	if inputTokens <= 0 && outputTokens <= 0 {
		return
	}
	r.flusher.add(inputTokens, outputTokens, 1)
}

// Close flushes remaining usage and stops the background flusher.
func (r *Recorder) Close() {
	if r == nil || r.flusher == nil {
		return
	}
	r.flusher.stop()
}

type tokenDelta struct {
	inputTokens  int64
	outputTokens int64
	requestCount int64
}

// flusher accumulates deltas keyed by date and writes them on a ticker. After
// a failed write the delta is requeued and the next flush is delayed with a
// doubling backoff capped at maxBackoff.
type flusher struct {
	repo          *Repository
	logger        *slog.Logger
	flushInterval time.Duration
	maxBackoff    time.Duration
	maxPending    int

	mu           sync.Mutex
	pending      map[time.Time]*tokenDelta
	pendingTotal int

	wakeup chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	consecutiveFailures int
	nextFlushAllowedAt  time.Time
}

func newFlusher(repo *Repository, flushInterval, maxBackoff time.Duration, maxPending int, logger *slog.Logger) *flusher {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = flushInterval
	}
	if maxPending <= 0 {
		maxPending = 1
	}
	return &flusher{
		repo:          repo,
		logger:        logger,
		flushInterval: flushInterval,
		maxBackoff:    maxBackoff,
		maxPending:    maxPending,
		pending:       make(map[time.Time]*tokenDelta),
		wakeup:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

func (f *flusher) start() {
	go f.loop()
}

func (f *flusher) stop() {
	close(f.stopCh)
	<-f.doneCh
}

func (f *flusher) add(inputTokens, outputTokens, requestCount int64) {
	targetDate := todayDate()

	f.mu.Lock()
	delta := f.pending[targetDate]
	if delta == nil {
		delta = &tokenDelta{}
		f.pending[targetDate] = delta
	}
	delta.inputTokens += inputTokens
	delta.outputTokens += outputTokens
	delta.requestCount += requestCount
	f.pendingTotal += int(requestCount)
	shouldFlush := f.pendingTotal >= f.maxPending
	f.mu.Unlock()

	if shouldFlush {
		f.signal()
	}
}

func (f *flusher) loop() {
	ticker := time.NewTicker(f.flushInterval)
	defer func() {
		ticker.Stop()
		close(f.doneCh)
	}()

	for {
		select {
		case <-ticker.C:
			f.flush(false)
		case <-f.wakeup:
			f.flush(false)
		case <-f.stopCh:
			f.flush(true)
			return
		}
	}
}

func (f *flusher) signal() {
	select {
	case f.wakeup <- struct{}{}:
	default:
	}
}

func (f *flusher) flush(isShutdown bool) {
	if !isShutdown && !f.nextFlushAllowedAt.IsZero() && time.Now().Before(f.nextFlushAllowedAt) {
		return
	}

	snapshot := f.takeSnapshot()
	if len(snapshot) == 0 {
		return
	}

	var firstErr error
	for date, delta := range snapshot {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		err := f.repo.RecordUsage(ctx, delta.inputTokens, delta.outputTokens, delta.requestCount, date)
		cancel()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if !isShutdown {
				f.requeue(date, delta)
			}
		}
	}

	if firstErr != nil {
		f.consecutiveFailures++
		backoff := f.computeBackoff()
		f.nextFlushAllowedAt = time.Now().Add(backoff)
		if f.logger != nil {
			f.logger.Warn(
				"usage_db_flush_failed",
				"failures", f.consecutiveFailures,
				"backoff", backoff,
				"err", firstErr,
			)
		}
		return
	}

	f.consecutiveFailures = 0
	f.nextFlushAllowedAt = time.Time{}
}

func (f *flusher) takeSnapshot() map[time.Time]tokenDelta {
	snapshot := make(map[time.Time]tokenDelta)
	f.mu.Lock()
	for date, delta := range f.pending {
		snapshot[date] = *delta
	}
	f.pending = make(map[time.Time]*tokenDelta)
	f.pendingTotal = 0
	f.mu.Unlock()
	return snapshot
}

func (f *flusher) requeue(date time.Time, delta tokenDelta) {
	f.mu.Lock()
	existing := f.pending[date]
	if existing == nil {
		existing = &tokenDelta{}
		f.pending[date] = existing
	}
	existing.inputTokens += delta.inputTokens
	existing.outputTokens += delta.outputTokens
	existing.requestCount += delta.requestCount
	f.pendingTotal += int(delta.requestCount)
	f.mu.Unlock()
}

func (f *flusher) computeBackoff() time.Duration {
	shift := f.consecutiveFailures - 1
	if shift < 0 {
		shift = 0
	}
	backoff := f.flushInterval * time.Duration(1<<shift)
	if backoff > f.maxBackoff {
		backoff = f.maxBackoff
	}
	if backoff <= 0 {
		backoff = f.flushInterval
	}
	return backoff
}
