package display_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harveysanders/splitflap/display"
)

type frame struct {
	topic   string
	payload string
	retain  bool
}

// recorder is a Sink that keeps every frame and optionally fails.
type recorder struct {
	mu     sync.Mutex
	frames []frame
	fail   error
	seen   chan frame
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan frame, 100)}
}

func (r *recorder) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	f := frame{topic: topic, payload: string(payload), retain: retain}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	err := r.fail
	r.mu.Unlock()
	r.seen <- f
	return err
}

func (r *recorder) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.payload
	}
	return out
}

func (r *recorder) next(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-r.seen:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a publish")
		return frame{}
	}
}

func wait(t *testing.T, s *display.Scheduler, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx, id); err != nil {
		t.Fatalf("Wait(%q): %v", id, err)
	}
}

func TestSubmitRepeatsPages(t *testing.T) {
	rec := newRecorder()
	s := display.NewScheduler(rec, nil)
	defer s.Close()

	_, err := s.Submit("wall", display.Job{
		Topic:  "splitflap/wall",
		Pages:  []string{"PAGE1", "PAGE2"},
		Repeat: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	wait(t, s, "wall")

	got := strings.Join(rec.payloads(), ",")
	if want := "PAGE1,PAGE2,PAGE1,PAGE2"; got != want {
		t.Errorf("published %s, want %s", got, want)
	}
	for _, f := range rec.frames {
		if f.topic != "splitflap/wall" || !f.retain {
			t.Errorf("frame %+v: want retained publish on splitflap/wall", f)
		}
	}
	if st := s.Status("wall"); st.State != display.Idle {
		t.Errorf("state after playback = %v, want idle", st.State)
	}
}

func TestBlankTimer(t *testing.T) {
	rec := newRecorder()
	s := display.NewScheduler(rec, nil)
	defer s.Close()

	_, err := s.Submit("wall", display.Job{
		Topic:      "t",
		Pages:      []string{"HI  "},
		BlankAfter: 20 * time.Millisecond,
		BlankWidth: 8,
	})
	if err != nil {
		t.Fatal(err)
	}
	wait(t, s, "wall")

	got := rec.payloads()
	if len(got) != 2 || got[0] != "HI  " || got[1] != strings.Repeat(" ", 8) {
		t.Errorf("published %q", got)
	}
	if st := s.Status("wall"); st.State != display.Idle {
		t.Errorf("state = %v, want idle", st.State)
	}
}

func TestSubmitSupersedesRunningJob(t *testing.T) {
	rec := newRecorder()
	s := display.NewScheduler(rec, nil)

	first, err := s.Submit("wall", display.Job{
		Topic: "t",
		Pages: []string{"A", "B", "C"},
		Delay: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if f := rec.next(t); f.payload != "A" {
		t.Fatalf("first publish = %q", f.payload)
	}
	if st := s.Status("wall"); st.State != display.Playing || st.Page != 0 || st.Generation != first {
		t.Errorf("status = %+v", st)
	}

	second, err := s.Submit("wall", display.Job{Topic: "t", Pages: []string{"X"}})
	if err != nil {
		t.Fatal(err)
	}
	if second <= first {
		t.Errorf("generation %d does not follow %d", second, first)
	}
	wait(t, s, "wall")
	s.Close()

	if got := strings.Join(rec.payloads(), ","); got != "A,X" {
		t.Errorf("published %s, want A,X", got)
	}
}

func TestSupersedeCancelsBlankTimer(t *testing.T) {
	rec := newRecorder()
	s := display.NewScheduler(rec, nil)

	_, err := s.Submit("wall", display.Job{
		Topic:      "t",
		Pages:      []string{"A"},
		BlankAfter: time.Hour,
		BlankWidth: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	rec.next(t)
	deadline := time.Now().Add(2 * time.Second)
	for s.Status("wall").State != display.BlankScheduled {
		if time.Now().After(deadline) {
			t.Fatalf("never reached blank-scheduled, status %+v", s.Status("wall"))
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Submit("wall", display.Job{Topic: "t", Pages: []string{"B"}}); err != nil {
		t.Fatal(err)
	}
	wait(t, s, "wall")
	s.Close()

	if got := strings.Join(rec.payloads(), ","); got != "A,B" {
		t.Errorf("published %s, want A,B", got)
	}
}

func TestPublishErrorsDoNotStopPlayback(t *testing.T) {
	rec := newRecorder()
	rec.fail = errors.New("broker gone")
	s := display.NewScheduler(rec, nil)
	defer s.Close()

	_, err := s.Submit("wall", display.Job{Topic: "t", Pages: []string{"1", "2", "3"}})
	if err != nil {
		t.Fatal(err)
	}
	wait(t, s, "wall")
	if got := len(rec.payloads()); got != 3 {
		t.Errorf("publish attempts = %d, want 3", got)
	}
	if st := s.Status("wall"); st.State != display.Idle {
		t.Errorf("state = %v", st.State)
	}
}

func TestBlankCancelsAndGoesIdle(t *testing.T) {
	rec := newRecorder()
	s := display.NewScheduler(rec, nil)

	if _, err := s.Submit("wall", display.Job{Topic: "t", Pages: []string{"A", "B"}, Delay: time.Hour}); err != nil {
		t.Fatal(err)
	}
	rec.next(t)

	if err := s.Blank(context.Background(), "wall", "t", 6); err != nil {
		t.Fatal(err)
	}
	if st := s.Status("wall"); st.State != display.Idle {
		t.Errorf("state = %v, want idle", st.State)
	}
	s.Close()

	got := rec.payloads()
	if len(got) != 2 || got[1] != "      " {
		t.Errorf("published %q", got)
	}
}

func TestShowReportsPublishError(t *testing.T) {
	rec := newRecorder()
	rec.fail = errors.New("no route")
	s := display.NewScheduler(rec, nil)
	defer s.Close()

	err := s.Show(context.Background(), "wall", "t", "ERROR", false)
	var perr *display.PublishError
	if !errors.As(err, &perr) || perr.Topic != "t" {
		t.Fatalf("Show error = %v, want *PublishError", err)
	}
	if f := rec.frames[0]; f.retain {
		t.Errorf("frame retained: %+v", f)
	}
}

func TestDevicesAreIndependent(t *testing.T) {
	rec := newRecorder()
	s := display.NewScheduler(rec, nil)
	defer s.Close()

	if _, err := s.Submit("a", display.Job{Topic: "a", Pages: []string{"A1"}, Delay: time.Hour}); err != nil {
		t.Fatal(err)
	}
	rec.next(t)
	if _, err := s.Submit("b", display.Job{Topic: "b", Pages: []string{"B1", "B2"}}); err != nil {
		t.Fatal(err)
	}
	wait(t, s, "b")

	if st := s.Status("a"); st.State != display.Playing {
		t.Errorf("device a state = %v, want playing", st.State)
	}
	if got := strings.Join(rec.payloads(), ","); got != "A1,B1,B2" {
		t.Errorf("published %s", got)
	}
}

func TestRemoveAndClose(t *testing.T) {
	rec := newRecorder()
	s := display.NewScheduler(rec, nil)

	if _, err := s.Submit("wall", display.Job{Topic: "t", Pages: []string{"A", "B"}, Delay: time.Hour}); err != nil {
		t.Fatal(err)
	}
	rec.next(t)
	s.Remove("wall")
	if st := s.Status("wall"); st.State != display.Idle || st.Generation != 0 {
		t.Errorf("status after remove = %+v", st)
	}

	// A removed device starts over with a fresh session.
	gen, err := s.Submit("wall", display.Job{Topic: "t", Pages: []string{"C"}})
	if err != nil || gen != 1 {
		t.Fatalf("Submit after Remove = %d, %v", gen, err)
	}
	wait(t, s, "wall")

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit("wall", display.Job{Topic: "t", Pages: []string{"D"}}); !errors.Is(err, display.ErrClosed) {
		t.Errorf("Submit after Close error = %v", err)
	}
	if got := strings.Join(rec.payloads(), ","); got != "A,C" {
		t.Errorf("published %s, want A,C", got)
	}
}

func TestTee(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	b.fail = errors.New("down")
	err := display.Tee{a, b}.Publish(context.Background(), "t", []byte("X"), true)
	if err == nil {
		t.Error("Tee swallowed an error")
	}
	if len(a.payloads()) != 1 || len(b.payloads()) != 1 {
		t.Errorf("frames: %q, %q", a.payloads(), b.payloads())
	}
}
