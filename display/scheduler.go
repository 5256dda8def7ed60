// Package display plays rendered pages on split-flap displays.
//
// A Scheduler keeps one session per device. Each session runs at most one
// job at a time: submitting a job supersedes whatever the device was doing.
// A job goes through the states
//
//	Idle → Playing → Repeating → BlankScheduled → Idle
//
// publishing a page, sleeping for the page delay, and so on. Superseded jobs
// stop at their next sleep or publish and never publish again.
package display

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/harveysanders/splitflap/text"
)

// ErrClosed is returned when submitting to a closed scheduler or a removed
// device.
var ErrClosed = errors.New("display: scheduler closed")

// State is the playback state of a device.
type State int32

const (
	Idle State = iota
	Playing
	Repeating
	BlankScheduled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Repeating:
		return "repeating"
	case BlankScheduled:
		return "blank-scheduled"
	default:
		return "unknown"
	}
}

// Job is a page sequence to play on one device.
type Job struct {
	Topic string
	Pages []string
	// Delay is the pause after every page, the last one included.
	Delay time.Duration
	// Repeat is the number of extra passes over Pages.
	Repeat int
	// BlankAfter is the wait before blanking the display once all passes
	// are done. Zero leaves the last page up.
	BlankAfter time.Duration
	// BlankWidth is the width of the blank frame.
	BlankWidth int
}

// Status is a snapshot of a device session.
type Status struct {
	State      State
	Generation uint64
	// Page is the index of the page on display while Playing or Repeating.
	Page int
	// Remaining counts the passes left after the current one.
	Remaining int
}

type session struct {
	id string

	// mu orders publishes against generation changes: a publish checks the
	// generation and completes while holding it.
	mu      sync.Mutex
	gen     uint64
	status  Status
	cancel  context.CancelFunc
	done    chan struct{}
	removed bool
}

// supersedeLocked invalidates the running job, if any, and returns the new
// generation.
func (sess *session) supersedeLocked() uint64 {
	sess.gen++
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}
	sess.status = Status{State: Idle, Generation: sess.gen}
	return sess.gen
}

func (sess *session) transition(gen uint64, st Status) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.gen != gen {
		return false
	}
	sess.status = st
	return true
}

// Scheduler drives playback on any number of devices, keyed by device id.
type Scheduler struct {
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

// NewScheduler returns a Scheduler publishing to sink.
func NewScheduler(sink Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		sink:     sink,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// acquire returns the session of id, creating it on first use.
func (s *Scheduler) acquire(id string, job bool) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{id: id}
		s.sessions[id] = sess
	}
	if job {
		s.wg.Add(1)
	}
	return sess, nil
}

func (s *Scheduler) lookup(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Submit cancels whatever device id is doing and starts playing job. It
// returns the generation assigned to the job.
func (s *Scheduler) Submit(id string, job Job) (uint64, error) {
	sess, err := s.acquire(id, true)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sess.mu.Lock()
	if sess.removed {
		sess.mu.Unlock()
		cancel()
		s.wg.Done()
		return 0, ErrClosed
	}
	gen := sess.supersedeLocked()
	sess.cancel, sess.done = cancel, done
	sess.status = Status{State: Playing, Generation: gen, Remaining: job.Repeat}
	sess.mu.Unlock()

	s.logger.Debug("scheduler:submit",
		slog.String("device", id),
		slog.Uint64("generation", gen),
		slog.Int("pages", len(job.Pages)),
		slog.Int("repeat", job.Repeat),
	)
	go s.play(ctx, sess, gen, job, done)
	return gen, nil
}

// Show cancels whatever device id is doing, publishes a single frame and
// leaves the device idle.
func (s *Scheduler) Show(ctx context.Context, id, topic, frame string, retain bool) error {
	sess, err := s.acquire(id, false)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return ErrClosed
	}
	gen := sess.supersedeLocked()
	if err := s.sink.Publish(ctx, topic, []byte(frame), retain); err != nil {
		perr := &PublishError{Topic: topic, Err: err}
		s.logger.Error("scheduler:publish-failed",
			slog.String("device", id),
			slog.Uint64("generation", gen),
			slog.Any("reason", perr),
		)
		return perr
	}
	return nil
}

// Blank cancels whatever device id is doing and blanks the display.
func (s *Scheduler) Blank(ctx context.Context, id, topic string, width int) error {
	return s.Show(ctx, id, topic, text.Blank(width), true)
}

func (s *Scheduler) play(ctx context.Context, sess *session, gen uint64, job Job, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	log := s.logger.With(slog.String("device", sess.id), slog.Uint64("generation", gen))

	for pass := 0; pass <= job.Repeat; pass++ {
		state := Playing
		if pass > 0 {
			state = Repeating
		}
		for i, page := range job.Pages {
			st := Status{State: state, Generation: gen, Page: i, Remaining: job.Repeat - pass}
			if !s.publish(ctx, sess, gen, st, job.Topic, page, true) {
				log.Debug("scheduler:superseded", slog.Int("page", i))
				return
			}
			if !sleep(ctx, job.Delay) {
				log.Debug("scheduler:superseded", slog.Int("page", i))
				return
			}
		}
	}

	if job.BlankAfter <= 0 {
		sess.transition(gen, Status{State: Idle, Generation: gen})
		return
	}
	if !sess.transition(gen, Status{State: BlankScheduled, Generation: gen}) {
		return
	}
	if !sleep(ctx, job.BlankAfter) {
		log.Debug("scheduler:blank-cancelled")
		return
	}
	st := Status{State: Idle, Generation: gen}
	if s.publish(ctx, sess, gen, st, job.Topic, text.Blank(job.BlankWidth), true) {
		log.Debug("scheduler:blanked")
	}
}

// publish sends one frame for generation gen. It reports false, without
// publishing, once gen has been superseded. Sink failures are logged and
// otherwise ignored.
func (s *Scheduler) publish(ctx context.Context, sess *session, gen uint64, st Status, topic, payload string, retain bool) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.gen != gen || ctx.Err() != nil {
		return false
	}
	sess.status = st
	if err := s.sink.Publish(ctx, topic, []byte(payload), retain); err != nil {
		s.logger.Error("scheduler:publish-failed",
			slog.String("device", sess.id),
			slog.Uint64("generation", gen),
			slog.Int("page", st.Page),
			slog.Any("reason", &PublishError{Topic: topic, Err: err}),
		)
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Status returns a snapshot of device id. Unknown devices are Idle.
func (s *Scheduler) Status(id string) Status {
	sess := s.lookup(id)
	if sess == nil {
		return Status{State: Idle}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.status
}

// Wait blocks until the latest job of device id has finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context, id string) error {
	sess := s.lookup(id)
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	done := sess.done
	sess.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Remove cancels the job of device id and forgets its session.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.mu.Lock()
	sess.supersedeLocked()
	sess.removed = true
	sess.mu.Unlock()
}

// Close cancels every job and waits for their goroutines to return.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.supersedeLocked()
		sess.removed = true
		sess.mu.Unlock()
	}
	s.wg.Wait()
	return nil
}
