// Package voice defines the speech boundary of the assistant and the
// background wake-word listener that sits on it.
package voice

import (
	"context"
	"errors"
	"strings"
	"time"
)

// NoInput is what a Listener returns when nothing was understood.
const NoInput = "none"

var (
	// ErrTimeout means the sample window passed without speech.
	ErrTimeout = errors.New("voice: listen timed out")
	// ErrUnknownValue means speech was heard but not understood.
	ErrUnknownValue = errors.New("voice: speech not understood")
	// ErrDeviceUnavailable means the input device failed or went away.
	ErrDeviceUnavailable = errors.New("voice: input device unavailable")
)

// Listener captures one utterance for a turn.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker renders text as speech.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	SetVoice(voice string)
}

// Sampler captures a short, low-fidelity window for wake detection.
type Sampler interface {
	Sample(ctx context.Context, window time.Duration) (string, error)
}

// IsNoInput reports whether text carries no usable speech.
func IsNoInput(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || strings.EqualFold(t, NoInput)
}

// sleep waits for d and reports false if ctx or stop fired first.
func sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
