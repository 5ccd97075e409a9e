package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type sample struct {
	text string
	err  error
}

// scriptedSampler replays script, then reports timeouts.
type scriptedSampler struct {
	mu     sync.Mutex
	script []sample
	calls  int
}

func (s *scriptedSampler) Sample(ctx context.Context, _ time.Duration) (string, error) {
	s.mu.Lock()
	s.calls++
	if len(s.script) == 0 {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Millisecond):
			return "", ErrTimeout
		}
	}
	next := s.script[0]
	s.script = s.script[1:]
	s.mu.Unlock()
	return next.text, next.err
}

func (s *scriptedSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fixedWords(words ...string) func() []string {
	return func() []string { return words }
}

func TestMatchWake(t *testing.T) {
	words := []string{"computer", "hey computer", "mavrick"}
	testcases := []struct {
		text string
		want string
		ok   bool
	}{
		{"Computer, what time is it", "computer", true},
		{"HEY MAVRICK", "mavrick", true},
		{"okay computerized", "computer", true},
		{"maverick", "", false},
		{"", "", false},
	}
	for _, tc := range testcases {
		got, ok := MatchWake(tc.text, words)
		if ok != tc.ok || got != tc.want {
			t.Errorf("MatchWake(%q) = (%q, %v), want (%q, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}

	_, ok := MatchWake("computer", []string{"", "  "})
	assert.False(t, ok, "blank wake words never match")
}

func TestAwareness_WakesOncePerMatchThenCoolsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	sampler := &scriptedSampler{script: []sample{
		{text: "blah"},
		{text: "Hey Computer open notepad"},
		{text: "computer"},
	}}
	var wakes atomic.Int32
	woke := make(chan time.Time, 4)
	a := NewAwareness(AwarenessConfig{
		Sampler:   sampler,
		OnWake:    func() { wakes.Add(1); woke <- time.Now() },
		WakeWords: fixedWords("computer"),
		Cooldown:  80 * time.Millisecond,
	})
	a.Start(context.Background())
	defer a.Stop()

	var first time.Time
	select {
	case first = <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never woke")
	}

	select {
	case second := <-woke:
		assert.GreaterOrEqual(t, second.Sub(first), 80*time.Millisecond, "second wake must wait out the cool-down")
	case <-time.After(2 * time.Second):
		t.Fatal("second wake never arrived")
	}
	assert.EqualValues(t, 2, wakes.Load())
}

func TestAwareness_DoesNotSampleWhileBusy(t *testing.T) {
	defer goleak.VerifyNone(t)

	var busy atomic.Bool
	busy.Store(true)
	sampler := &scriptedSampler{script: []sample{{text: "computer"}}}
	woke := make(chan struct{}, 1)
	a := NewAwareness(AwarenessConfig{
		Sampler:   sampler,
		Busy:      busy.Load,
		OnWake:    func() { woke <- struct{}{} },
		WakeWords: fixedWords("computer"),
		Idle:      5 * time.Millisecond,
	})
	a.Start(context.Background())
	defer a.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, sampler.Calls(), "input must stay untouched while a turn is active")

	busy.Store(false)
	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not resume after the turn ended")
	}
}

func TestAwareness_DeviceFailureBacksOffAndRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	sampler := &scriptedSampler{script: []sample{
		{err: errors.New("mic unplugged")},
		{err: ErrUnknownValue},
		{text: "computer"},
	}}
	start := time.Now()
	woke := make(chan time.Duration, 1)
	a := NewAwareness(AwarenessConfig{
		Sampler:    sampler,
		OnWake:     func() { woke <- time.Since(start) },
		WakeWords:  fixedWords("computer"),
		RetryDelay: 60 * time.Millisecond,
	})
	a.Start(context.Background())
	defer a.Stop()

	select {
	case elapsed := <-woke:
		assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("listener gave up after a device error")
	}
	assert.GreaterOrEqual(t, sampler.Calls(), 3)
}

func TestAwareness_ReadsLiveWakeWords(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	words := []string{"computer"}
	sampler := &scriptedSampler{script: []sample{{text: "friday"}}}
	woke := make(chan struct{}, 1)
	a := NewAwareness(AwarenessConfig{
		Sampler: sampler,
		OnWake:  func() { woke <- struct{}{} },
		WakeWords: func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), words...)
		},
	})

	a.Start(context.Background())
	select {
	case <-woke:
		t.Fatal("woke on a word outside the wake set")
	case <-time.After(30 * time.Millisecond):
	}
	a.Stop()

	mu.Lock()
	words = []string{"friday"}
	mu.Unlock()
	sampler.mu.Lock()
	sampler.script = []sample{{text: "Friday?"}}
	sampler.mu.Unlock()

	a.Start(context.Background())
	defer a.Stop()
	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("updated wake word was ignored")
	}
}

func TestAwareness_CallbackPanicDoesNotKillLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	sampler := &scriptedSampler{script: []sample{{text: "computer"}, {text: "computer"}}}
	var calls atomic.Int32
	done := make(chan struct{})
	a := NewAwareness(AwarenessConfig{
		Sampler: sampler,
		OnWake: func() {
			if calls.Add(1) == 1 {
				panic("boom")
			}
			close(done)
		},
		WakeWords: fixedWords("computer"),
		Cooldown:  time.Millisecond,
	})
	a.Start(context.Background())
	defer a.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop died after a panicking callback")
	}
}

func TestAwareness_RunReturnsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	a := NewAwareness(AwarenessConfig{Sampler: &scriptedSampler{}, WakeWords: fixedWords("computer")})

	exited := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(exited)
	}()
	cancel()

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.NotPanics(t, a.Stop, "Stop on a never-started listener is a no-op")
}
