package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
)

// LineReader is the subset of *readline.Instance the console needs.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

type ConsoleConfig struct {
	Prompt      string
	HistoryFile string
	// ListenTimeout bounds a turn's Listen; zero waits for a line.
	ListenTimeout time.Duration
}

// Console stands in for the microphone and speaker: typed lines are
// utterances and speech is printed. A single reader goroutine feeds both
// Listen and Sample, so the wake loop and a turn never read concurrently
// from the terminal.
type Console struct {
	reader        LineReader
	out           io.Writer
	listenTimeout time.Duration

	lines chan string
	done  chan struct{}
	eof   chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	mu    sync.Mutex
	voice string
}

func NewConsole(cfg ConsoleConfig) (*Console, error) {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "> "
	}
	history := cfg.HistoryFile
	if history == "" {
		history = filepath.Join(os.TempDir(), ".dotvoice_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     history,
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return NewConsoleFrom(rl, rl.Stdout(), cfg.ListenTimeout), nil
}

// NewConsoleFrom wires a console to an arbitrary line source and writer.
func NewConsoleFrom(r LineReader, out io.Writer, listenTimeout time.Duration) *Console {
	if out == nil {
		out = os.Stdout
	}
	c := &Console{
		reader:        r,
		out:           out,
		listenTimeout: listenTimeout,
		lines:         make(chan string),
		done:          make(chan struct{}),
		eof:           make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

func (c *Console) readLoop() {
	defer c.wg.Done()
	defer close(c.eof)
	for {
		line, err := c.reader.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-c.done:
				return
			default:
			}
			logger.WarnCF("console", "Error reading input", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		select {
		case c.lines <- line:
		case <-c.done:
			return
		}
	}
}

// Closed is closed once the input side hits EOF or an interrupt.
func (c *Console) Closed() <-chan struct{} {
	return c.eof
}

func (c *Console) next(ctx context.Context, timeout time.Duration) (string, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case line := <-c.lines:
		return line, nil
	case <-c.eof:
		return "", ErrDeviceUnavailable
	case <-ctx.Done():
		return "", ctx.Err()
	case <-expired:
		return "", ErrTimeout
	}
}

func (c *Console) Listen(ctx context.Context) (string, error) {
	line, err := c.next(ctx, c.listenTimeout)
	if errors.Is(err, ErrTimeout) {
		return NoInput, nil
	}
	return line, err
}

func (c *Console) Sample(ctx context.Context, window time.Duration) (string, error) {
	return c.next(ctx, window)
}

func (c *Console) Speak(_ context.Context, text string) error {
	c.mu.Lock()
	voice := c.voice
	c.mu.Unlock()

	label := "assistant"
	if voice != "" {
		label = voice
	}
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", label, text)
	return err
}

func (c *Console) SetVoice(voice string) {
	c.mu.Lock()
	c.voice = voice
	c.mu.Unlock()
}

// Close stops the reader goroutine and releases the terminal.
func (c *Console) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.reader.Close()
		c.wg.Wait()
	})
	return err
}
