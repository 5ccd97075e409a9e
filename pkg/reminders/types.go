package reminders

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMessageRequired = errors.New("reminder message is required")
	ErrTimeRequired    = errors.New("reminder time is required")
	ErrUnparseableTime = errors.New("reminder time not understood")
	ErrPastDue         = errors.New("reminder time must be in the future")
	ErrIDRequired      = errors.New("reminder id is required")
	ErrNotFound        = errors.New("reminder not found")
)

type Reminder struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalJSON also accepts timestamps written without an offset, which
// are read as local time.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string `json:"id"`
		Message   string `json:"message"`
		DueAt     string `json:"due_at"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	due, ok := parseISO(raw.DueAt, time.Local)
	if !ok {
		return fmt.Errorf("reminder %s: invalid due_at %q", raw.ID, raw.DueAt)
	}
	created, ok := parseISO(raw.CreatedAt, time.Local)
	if !ok {
		created = time.Time{}
	}
	*r = Reminder{ID: raw.ID, Message: raw.Message, DueAt: due, CreatedAt: created}
	return nil
}

func (r Reminder) String() string {
	return fmt.Sprintf("%s  %s  %s", r.ID, r.DueAt.Format("2006-01-02 15:04"), r.Message)
}
