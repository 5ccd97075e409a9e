package reminders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
)

const DefaultPollInterval = 2 * time.Second

// TriggerFunc receives a reminder after it has been removed from the store.
type TriggerFunc func(Reminder)

type Options struct {
	Poll      time.Duration
	OnTrigger TriggerFunc
	Now       func() time.Time
}

// Scheduler owns the reminder list. One mutex covers both the in-memory
// list and the write-through to the store.
type Scheduler struct {
	store     Store
	poll      time.Duration
	onTrigger TriggerFunc
	now       func() time.Time

	mu        sync.Mutex
	reminders []Reminder

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New loads the persisted reminders. A store that cannot be read is logged
// and treated as empty.
func New(store Store, opts Options) *Scheduler {
	if opts.Poll <= 0 {
		opts.Poll = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Scheduler{
		store:     store,
		poll:      opts.Poll,
		onTrigger: opts.OnTrigger,
		now:       opts.Now,
	}
	loaded, err := store.Load()
	if err != nil {
		logger.WarnCF("reminders", "Failed to load reminders; starting empty", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.reminders = loaded
	return s
}

// SetOnTrigger replaces the trigger callback.
func (s *Scheduler) SetOnTrigger(fn TriggerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTrigger = fn
}

func newID(existing []Reminder) string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		clash := false
		for _, r := range existing {
			if r.ID == id {
				clash = true
				break
			}
		}
		if !clash {
			return id
		}
	}
}

// Add schedules message at when.
func (s *Scheduler) Add(message, when string) (Reminder, error) {
	message = strings.TrimSpace(message)
	when = strings.TrimSpace(when)
	if message == "" {
		return Reminder{}, ErrMessageRequired
	}
	if when == "" {
		return Reminder{}, ErrTimeRequired
	}

	now := s.now()
	due, err := ParseWhen(when, now)
	if err != nil {
		return Reminder{}, err
	}
	if !due.After(now) {
		return Reminder{}, ErrPastDue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := Reminder{
		ID:        newID(s.reminders),
		Message:   message,
		DueAt:     due,
		CreatedAt: now,
	}
	next := append(append([]Reminder(nil), s.reminders...), r)
	if err := s.store.Save(next); err != nil {
		return Reminder{}, fmt.Errorf("persist reminder: %w", err)
	}
	s.reminders = next

	logger.InfoCF("reminders", "Reminder scheduled", map[string]interface{}{
		"id":     r.ID,
		"due_at": r.DueAt.Format(time.RFC3339),
	})
	return r, nil
}

// List returns scheduled reminders sorted by due time.
func (s *Scheduler) List() []Reminder {
	s.mu.Lock()
	out := append([]Reminder(nil), s.reminders...)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}

// Cancel removes the reminder with id. A missing id leaves state untouched.
func (s *Scheduler) Cancel(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if r.ID != id {
			next = append(next, r)
		}
	}
	if len(next) == len(s.reminders) {
		return ErrNotFound
	}
	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("persist cancel: %w", err)
	}
	s.reminders = next
	return nil
}

func (s *Scheduler) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(nil); err != nil {
		return fmt.Errorf("persist clear: %w", err)
	}
	s.reminders = nil
	return nil
}

// PollOnce fires every reminder due at or before now and returns how many
// fired. Due reminders are persisted out of the store before any callback
// runs; a failed write keeps them scheduled for the next poll.
func (s *Scheduler) PollOnce(now time.Time) int {
	s.mu.Lock()
	var due, remaining []Reminder
	for _, r := range s.reminders {
		if !r.DueAt.After(now) {
			due = append(due, r)
		} else {
			remaining = append(remaining, r)
		}
	}
	if len(due) == 0 {
		s.mu.Unlock()
		return 0
	}
	if err := s.store.Save(remaining); err != nil {
		s.mu.Unlock()
		logger.WarnCF("reminders", "Failed to persist due reminders; will retry", map[string]interface{}{
			"due":   len(due),
			"error": err.Error(),
		})
		return 0
	}
	s.reminders = remaining
	trigger := s.onTrigger
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	for _, r := range due {
		s.fire(trigger, r)
	}
	return len(due)
}

func (s *Scheduler) fire(trigger TriggerFunc, r Reminder) {
	logger.InfoCF("reminders", "Reminder triggered", map[string]interface{}{
		"id": r.ID,
	})
	if trigger == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("reminders", "Reminder callback panicked", map[string]interface{}{
				"id":    r.ID,
				"panic": fmt.Sprint(rec),
			})
		}
	}()
	trigger(r)
}

// Start launches the poll loop. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx, s.stopCh, s.doneCh)
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	logger.InfoCF("reminders", "Reminder scheduler started", map[string]interface{}{
		"poll_ms": s.poll.Milliseconds(),
		"pending": len(s.List()),
	})
	s.PollOnce(s.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.PollOnce(s.now())
		}
	}
}

// Stop signals the poll loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.runMu.Unlock()

	close(stopCh)
	<-doneCh
}

// Wait blocks until the poll loop exits after ctx cancellation or Stop.
func (s *Scheduler) Wait() {
	s.runMu.Lock()
	doneCh := s.doneCh
	s.runMu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
}

// AddText is Add rendered as the sentence spoken back to the user.
func (s *Scheduler) AddText(message, when string) string {
	r, err := s.Add(message, when)
	switch {
	case err == nil:
		return fmt.Sprintf("Reminder set for %s (id: %s).", r.DueAt.Format("2006-01-02 15:04"), r.ID)
	case errors.Is(err, ErrMessageRequired):
		return "Reminder message is required."
	case errors.Is(err, ErrTimeRequired):
		return "Reminder time is required."
	case errors.Is(err, ErrUnparseableTime):
		return "I couldn't understand that reminder time."
	case errors.Is(err, ErrPastDue):
		return "Reminder time must be in the future."
	default:
		return fmt.Sprintf("I couldn't save that reminder: %v", err)
	}
}

func (s *Scheduler) ListText() string {
	list := s.List()
	if len(list) == 0 {
		return "No reminders scheduled."
	}
	lines := make([]string, 0, len(list))
	for _, r := range list {
		lines = append(lines, fmt.Sprintf("%s at %s: %s", r.ID, r.DueAt.Format("2006-01-02 15:04"), r.Message))
	}
	return strings.Join(lines, "\n")
}

func (s *Scheduler) CancelText(id string) string {
	err := s.Cancel(id)
	switch {
	case err == nil:
		return fmt.Sprintf("Reminder %s canceled.", strings.TrimSpace(id))
	case errors.Is(err, ErrIDRequired):
		return "Reminder id is required."
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("No reminder found with id %s.", strings.TrimSpace(id))
	default:
		return fmt.Sprintf("I couldn't cancel that reminder: %v", err)
	}
}

func (s *Scheduler) ClearText() string {
	if err := s.Clear(); err != nil {
		return fmt.Sprintf("I couldn't clear reminders: %v", err)
	}
	return "All reminders cleared."
}
