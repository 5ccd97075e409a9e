package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/dotvoice/pkg/journal"
)

type NoteStore interface {
	AddNote(ctx context.Context, text string) (journal.Note, error)
	ListNotes(ctx context.Context) ([]journal.Note, error)
	DeleteNote(ctx context.Context, id string) (bool, error)
	ClearNotes(ctx context.Context) error
}

const maxListedNotes = 50

type AddNoteTool struct{ store NoteStore }

func NewAddNoteTool(store NoteStore) *AddNoteTool { return &AddNoteTool{store: store} }

func (t *AddNoteTool) Name() string        { return "add_note" }
func (t *AddNoteTool) Description() string { return "Save a short note for the user." }
func (t *AddNoteTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"text": stringProperty("Note text."),
	}, "text")
}

func (t *AddNoteTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	text := stringArg(args, "text")
	if text == "" {
		return UserResult("Note text is required.")
	}
	note, err := t.store.AddNote(ctx, text)
	if err != nil {
		return ErrorResult(fmt.Sprintf("I couldn't save that note: %v", err)).WithError(err)
	}
	return UserResult(fmt.Sprintf("Note saved (id: %s).", note.ID))
}

type ListNotesTool struct{ store NoteStore }

func NewListNotesTool(store NoteStore) *ListNotesTool { return &ListNotesTool{store: store} }

func (t *ListNotesTool) Name() string        { return "list_notes" }
func (t *ListNotesTool) Description() string { return "List saved notes, newest first." }
func (t *ListNotesTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ListNotesTool) Execute(ctx context.Context, _ map[string]interface{}) *ToolResult {
	notes, err := t.store.ListNotes(ctx)
	if err != nil {
		return ErrorResult(fmt.Sprintf("I couldn't read your notes: %v", err)).WithError(err)
	}
	if len(notes) == 0 {
		return UserResult("No notes saved.")
	}
	lines := make([]string, 0, len(notes))
	for i := len(notes) - 1; i >= 0 && len(lines) < maxListedNotes; i-- {
		n := notes[i]
		lines = append(lines, fmt.Sprintf("%s (%s): %s", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Text))
	}
	return UserResult(strings.Join(lines, "\n"))
}

type DeleteNoteTool struct{ store NoteStore }

func NewDeleteNoteTool(store NoteStore) *DeleteNoteTool { return &DeleteNoteTool{store: store} }

func (t *DeleteNoteTool) Name() string        { return "delete_note" }
func (t *DeleteNoteTool) Description() string { return "Delete a saved note by id." }
func (t *DeleteNoteTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"id": stringProperty("Note id."),
	}, "id")
}

func (t *DeleteNoteTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	id := stringArg(args, "id")
	if id == "" {
		return UserResult("Note id is required.")
	}
	found, err := t.store.DeleteNote(ctx, id)
	if err != nil {
		return ErrorResult(fmt.Sprintf("I couldn't delete that note: %v", err)).WithError(err)
	}
	if !found {
		return UserResult(fmt.Sprintf("No note found with id %s.", id))
	}
	return UserResult(fmt.Sprintf("Note %s deleted.", id))
}

type ClearNotesTool struct{ store NoteStore }

func NewClearNotesTool(store NoteStore) *ClearNotesTool { return &ClearNotesTool{store: store} }

func (t *ClearNotesTool) Name() string        { return "clear_notes" }
func (t *ClearNotesTool) Description() string { return "Delete every saved note." }
func (t *ClearNotesTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ClearNotesTool) ConfirmAction(map[string]interface{}) (string, string, bool) {
	return "Clear notes", "delete every saved note", true
}

func (t *ClearNotesTool) Execute(ctx context.Context, _ map[string]interface{}) *ToolResult {
	if err := t.store.ClearNotes(ctx); err != nil {
		return ErrorResult(fmt.Sprintf("I couldn't clear notes: %v", err)).WithError(err)
	}
	return UserResult("All notes cleared.")
}
