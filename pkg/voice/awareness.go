package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
)

const (
	DefaultIdle       = time.Second
	DefaultCooldown   = 2 * time.Second
	DefaultRetryDelay = 2 * time.Second
	DefaultWindow     = 2 * time.Second
)

type AwarenessConfig struct {
	Sampler Sampler
	// Busy reports whether a turn owns the input device.
	Busy func() bool
	// OnWake is called once per detected wake phrase.
	OnWake func()
	// WakeWords is read on every cycle so edits apply without a restart.
	WakeWords func() []string

	Idle       time.Duration
	Cooldown   time.Duration
	RetryDelay time.Duration
	Window     time.Duration
}

// Awareness is the background wake-word loop. It never samples while a turn
// is active and never exits on device or recognition errors.
type Awareness struct {
	cfg AwarenessConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAwareness(cfg AwarenessConfig) *Awareness {
	if cfg.Idle <= 0 {
		cfg.Idle = DefaultIdle
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Busy == nil {
		cfg.Busy = func() bool { return false }
	}
	if cfg.WakeWords == nil {
		cfg.WakeWords = func() []string { return nil }
	}
	return &Awareness{cfg: cfg}
}

// MatchWake returns the first wake word contained in text, ignoring case.
func MatchWake(text string, words []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}

// Start runs the loop in a goroutine. It is a no-op when already running.
func (a *Awareness) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		a.loop(ctx, stop)
	}(a.stopCh, a.doneCh)
}

// Run blocks until ctx is canceled.
func (a *Awareness) Run(ctx context.Context) {
	a.loop(ctx, nil)
}

// Stop signals the loop and waits for the current cycle to finish.
func (a *Awareness) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	stop, done := a.stopCh, a.doneCh
	a.mu.Unlock()

	close(stop)
	<-done
}

func (a *Awareness) loop(ctx context.Context, stop <-chan struct{}) {
	logger.InfoCF("listener", "Background listener started", map[string]interface{}{
		"wake_words": a.cfg.WakeWords(),
	})
	defer logger.InfoC("listener", "Background listener stopped")

	for {
		if !sleep(ctx, stop, 0) {
			return
		}
		if a.cfg.Busy() {
			if !sleep(ctx, stop, a.cfg.Idle) {
				return
			}
			continue
		}

		text, err := a.cfg.Sampler.Sample(ctx, a.cfg.Window)
		if err != nil {
			switch {
			case errors.Is(err, ErrTimeout), errors.Is(err, ErrUnknownValue):
				continue
			case ctx.Err() != nil:
				return
			default:
				logger.WarnCF("listener", "Sampling failed; retrying", map[string]interface{}{
					"error":    err.Error(),
					"retry_ms": a.cfg.RetryDelay.Milliseconds(),
				})
				if !sleep(ctx, stop, a.cfg.RetryDelay) {
					return
				}
				continue
			}
		}
		if IsNoInput(text) {
			continue
		}

		word, ok := MatchWake(text, a.cfg.WakeWords())
		if !ok {
			continue
		}
		// A turn may have started while the sample was in flight.
		if a.cfg.Busy() {
			continue
		}
		logger.InfoCF("listener", "Wake word detected", map[string]interface{}{
			"wake_word": word,
		})
		a.wake()
		if !sleep(ctx, stop, a.cfg.Cooldown) {
			return
		}
	}
}

func (a *Awareness) wake() {
	if a.cfg.OnWake == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("listener", "Wake callback panicked", map[string]interface{}{
				"panic": r,
			})
		}
	}()
	a.cfg.OnWake()
}
