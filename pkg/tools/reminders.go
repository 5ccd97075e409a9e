package tools

import (
	"context"
)

// ReminderBook is the reminder scheduler as seen by the tools. Every method
// returns the sentence spoken back to the user.
type ReminderBook interface {
	AddText(message, when string) string
	ListText() string
	CancelText(id string) string
	ClearText() string
}

type reminderTool struct {
	name        string
	description string
	parameters  map[string]interface{}
	run         func(args map[string]interface{}) string
}

func (t *reminderTool) Name() string                       { return t.name }
func (t *reminderTool) Description() string                { return t.description }
func (t *reminderTool) Parameters() map[string]interface{} { return t.parameters }

func (t *reminderTool) Execute(_ context.Context, args map[string]interface{}) *ToolResult {
	return UserResult(t.run(args))
}

// ReminderTools returns add_reminder, list_reminders, cancel_reminder and
// clear_reminders backed by book.
func ReminderTools(book ReminderBook) []Tool {
	return []Tool{
		&reminderTool{
			name:        "add_reminder",
			description: "Schedule a spoken reminder. 'when' accepts 'in N minutes|hours|days', an ISO timestamp, HH:MM (optionally am/pm) or 'cron <expression>'.",
			parameters: objectSchema(map[string]interface{}{
				"message": stringProperty("What to remind the user about."),
				"when":    stringProperty("When to trigger the reminder."),
			}, "message", "when"),
			run: func(args map[string]interface{}) string {
				return book.AddText(stringArg(args, "message"), stringArg(args, "when"))
			},
		},
		&reminderTool{
			name:        "list_reminders",
			description: "List scheduled reminders.",
			parameters:  objectSchema(map[string]interface{}{}),
			run:         func(map[string]interface{}) string { return book.ListText() },
		},
		&reminderTool{
			name:        "cancel_reminder",
			description: "Cancel a scheduled reminder by id.",
			parameters: objectSchema(map[string]interface{}{
				"id": stringProperty("Reminder id."),
			}, "id"),
			run: func(args map[string]interface{}) string { return book.CancelText(stringArg(args, "id")) },
		},
		&reminderTool{
			name:        "clear_reminders",
			description: "Cancel all scheduled reminders.",
			parameters:  objectSchema(map[string]interface{}{}),
			run:         func(map[string]interface{}) string { return book.ClearText() },
		},
	}
}
