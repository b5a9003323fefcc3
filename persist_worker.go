package topicscope

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coregx/topicscope/model"
	"github.com/coregx/topicscope/retry"
)

// PersistWorker writes topic and form snapshots to storage in the background.
//
// Save requests never block: each kind of snapshot has a one-slot mailbox and
// a newer snapshot replaces one that has not been written yet. Failed writes
// are retried with the persist retry strategy; a newer snapshot queued
// meanwhile supersedes the failing one. Writes are serialized: Flush waits for
// an in-flight write, retries included, before writing what is queued.
//
// Thread safety: Safe for concurrent use.
type PersistWorker struct {
	sessionRepo   SessionRepository
	formRepo      FormStateRepository
	logger        Logger
	retryStrategy retry.Strategy

	seq    atomic.Uint64
	topics chan snapshot[model.TopicsConfig]
	forms  chan snapshot[model.FormState]

	// writing is a one-slot semaphore held across every repository write.
	// It also guards the written sequence numbers below.
	writing       chan struct{}
	topicsWritten uint64
	formsWritten  uint64
}

// snapshot is a queued value tagged with the order it was saved in.
type snapshot[T any] struct {
	seq   uint64
	value T
}

// PersistWorkerOption is a function that configures a PersistWorker.
type PersistWorkerOption func(*PersistWorker) error

// NewPersistWorker creates a new persistence worker with the provided options.
//
// Required options:
//   - WithPersistRepositories: session and form state repositories
//   - WithPersistLogger: logger instance
//
// Optional options:
//   - WithPersistRetryStrategy: custom retry strategy (default: retry.PersistStrategy())
//
// Example:
//
//	repos := relica.NewRepositories(db, "sqlite3")
//	worker, err := topicscope.NewPersistWorker(
//	    topicscope.WithPersistRepositories(repos.Sessions, repos.FormState),
//	    topicscope.WithPersistLogger(logger),
//	)
//	go worker.Run(ctx)
func NewPersistWorker(opts ...PersistWorkerOption) (*PersistWorker, error) {
	w := &PersistWorker{
		retryStrategy: retry.PersistStrategy(),
		topics:        make(chan snapshot[model.TopicsConfig], 1),
		forms:         make(chan snapshot[model.FormState], 1),
		writing:       make(chan struct{}, 1),
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply persist worker option", err)
		}
	}

	if w.sessionRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SessionRepository is required (use WithPersistRepositories)")
	}
	if w.formRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "FormStateRepository is required (use WithPersistRepositories)")
	}
	if w.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithPersistLogger)")
	}

	return w, nil
}

// WithPersistRepositories sets the required repositories.
func WithPersistRepositories(sessionRepo SessionRepository, formRepo FormStateRepository) PersistWorkerOption {
	return func(w *PersistWorker) error {
		if sessionRepo == nil {
			return fmt.Errorf("sessionRepo cannot be nil")
		}
		if formRepo == nil {
			return fmt.Errorf("formRepo cannot be nil")
		}
		w.sessionRepo = sessionRepo
		w.formRepo = formRepo
		return nil
	}
}

// WithPersistLogger sets the logger instance.
func WithPersistLogger(logger Logger) PersistWorkerOption {
	return func(w *PersistWorker) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		w.logger = logger
		return nil
	}
}

// WithPersistRetryStrategy sets a custom retry strategy for failed writes.
func WithPersistRetryStrategy(strategy retry.Strategy) PersistWorkerOption {
	return func(w *PersistWorker) error {
		w.retryStrategy = strategy
		return nil
	}
}

// SaveTopics queues a topics snapshot, replacing any unwritten one.
func (w *PersistWorker) SaveTopics(cfg model.TopicsConfig) {
	offer(w.topics, snapshot[model.TopicsConfig]{seq: w.seq.Add(1), value: cfg})
}

// SaveFormState queues a form snapshot, replacing any unwritten one.
func (w *PersistWorker) SaveFormState(state model.FormState) {
	offer(w.forms, snapshot[model.FormState]{seq: w.seq.Add(1), value: state})
}

// offer puts v into a one-slot mailbox, dropping a stale value if needed.
func offer[T any](mailbox chan T, v T) {
	for {
		select {
		case mailbox <- v:
			return
		default:
		}
		select {
		case <-mailbox:
		default:
		}
	}
}

// Load reads the stored topics and form state. Missing data is not an error:
// an empty TopicsConfig and model.DefaultFormState are returned instead.
func (w *PersistWorker) Load(ctx context.Context) (model.TopicsConfig, model.FormState, error) {
	topics, err := w.sessionRepo.LoadAll(ctx)
	if err != nil && !IsNoData(err) {
		return model.TopicsConfig{}, model.FormState{}, NewErrorWithCause(ErrCodeDatabase, "failed to load topics", err)
	}

	form, err := w.formRepo.Load(ctx)
	if IsNoData(err) {
		form = model.DefaultFormState()
	} else if err != nil {
		return model.TopicsConfig{}, model.FormState{}, NewErrorWithCause(ErrCodeDatabase, "failed to load form state", err)
	}
	form.Normalize()

	return topics, form, nil
}

// Run writes queued snapshots until ctx is canceled, then flushes whatever is
// still queued using a short grace period.
//
// This method blocks and should typically be run in a goroutine.
//
// Example:
//
//	go worker.Run(ctx)
func (w *PersistWorker) Run(ctx context.Context) {
	w.logger.Info("Persist worker started")

	for {
		// Shutdown wins over queued snapshots; the final flush writes them.
		if ctx.Err() != nil {
			w.stop()
			return
		}

		select {
		case <-ctx.Done():
			w.stop()
			return
		case snap := <-w.topics:
			w.writeTopics(ctx, snap)
		case snap := <-w.forms:
			w.writeForm(ctx, snap)
		}
	}
}

func (w *PersistWorker) stop() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Flush(flushCtx); err != nil {
		w.logger.Errorf("Final flush failed: %v", err)
	}
	w.logger.Info("Persist worker stopped")
}

// Flush synchronously writes any queued snapshots, without retries. A write
// already in progress in Run finishes first.
func (w *PersistWorker) Flush(ctx context.Context) error {
	if err := w.acquire(ctx); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to flush", err)
	}
	defer w.release()

	select {
	case snap := <-w.topics:
		if snap.seq > w.topicsWritten {
			if err := w.sessionRepo.SaveAll(ctx, snap.value); err != nil {
				return NewErrorWithCause(ErrCodeDatabase, "failed to save topics", err)
			}
			w.topicsWritten = snap.seq
		}
	default:
	}

	select {
	case snap := <-w.forms:
		if snap.seq > w.formsWritten {
			if err := w.formRepo.Save(ctx, snap.value); err != nil {
				return NewErrorWithCause(ErrCodeDatabase, "failed to save form state", err)
			}
			w.formsWritten = snap.seq
		}
	default:
	}

	return nil
}

// ClearAll removes every stored session.
func (w *PersistWorker) ClearAll(ctx context.Context) error {
	if err := w.acquire(ctx); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to clear topics", err)
	}
	defer w.release()

	if err := w.sessionRepo.ClearAll(ctx); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to clear topics", err)
	}
	return nil
}

func (w *PersistWorker) acquire(ctx context.Context) error {
	select {
	case w.writing <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *PersistWorker) release() {
	<-w.writing
}

func (w *PersistWorker) writeTopics(ctx context.Context, snap snapshot[model.TopicsConfig]) {
	if err := w.acquire(ctx); err != nil {
		requeue(w.topics, snap)
		return
	}
	defer w.release()

	err := w.retryStrategy.Do(ctx, func(ctx context.Context) error {
		snap = newest(w.topics, snap)
		if snap.seq <= w.topicsWritten {
			return nil
		}
		if err := w.sessionRepo.SaveAll(ctx, snap.value); err != nil {
			return err
		}
		w.topicsWritten = snap.seq
		return nil
	}, func(attempt int, err error) {
		w.logger.Warnf("Saving topics failed (attempt=%d): %v", attempt, err)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Stopping: leave the snapshot for the final flush.
			requeue(w.topics, snap)
			return
		}
		w.logger.Errorf("Giving up saving topics: %v", err)
		return
	}
	w.logger.Debugf("Saved %d topics", len(snap.value.Sessions))
}

func (w *PersistWorker) writeForm(ctx context.Context, snap snapshot[model.FormState]) {
	if err := w.acquire(ctx); err != nil {
		requeue(w.forms, snap)
		return
	}
	defer w.release()

	err := w.retryStrategy.Do(ctx, func(ctx context.Context) error {
		snap = newest(w.forms, snap)
		if snap.seq <= w.formsWritten {
			return nil
		}
		if err := w.formRepo.Save(ctx, snap.value); err != nil {
			return err
		}
		w.formsWritten = snap.seq
		return nil
	}, func(attempt int, err error) {
		w.logger.Warnf("Saving form state failed (attempt=%d): %v", attempt, err)
	})
	if err != nil {
		if ctx.Err() != nil {
			requeue(w.forms, snap)
			return
		}
		w.logger.Errorf("Giving up saving form state: %v", err)
		return
	}
	w.logger.Debugf("Saved form state")
}

// newest returns the later of cur and whatever is waiting in mailbox.
func newest[T any](mailbox chan snapshot[T], cur snapshot[T]) snapshot[T] {
	select {
	case queued := <-mailbox:
		if queued.seq > cur.seq {
			return queued
		}
	default:
	}
	return cur
}

// requeue puts snap back into an empty mailbox. A newer snapshot wins.
func requeue[T any](mailbox chan snapshot[T], snap snapshot[T]) {
	select {
	case mailbox <- snap:
	default:
	}
}
