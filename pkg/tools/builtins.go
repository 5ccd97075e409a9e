package tools

// Builtins bundles what the built-in tool set needs. Nil Reminders or Notes
// leave those tools out.
type Builtins struct {
	Catalog   *Catalog
	Launcher  Launcher
	SearchURL string
	Stats     StatsSource
	Reminders ReminderBook
	Notes     NoteStore
}

// RegisterBuiltins registers the built-in tools on registry.
func RegisterBuiltins(registry *ToolRegistry, b Builtins) {
	if b.Catalog == nil {
		b.Catalog = NewCatalog("")
	}
	registry.Register(NewSystemInfoTool(b.Stats))
	registry.Register(NewOpenApplicationTool(b.Catalog, b.Launcher))
	registry.Register(NewWebSearchTool(b.SearchURL, b.Launcher))
	registry.Register(NewInitiateProtocolTool(b.Catalog, b.Launcher))
	registry.Register(NewMediaControlTool(b.Launcher))
	registry.Register(NewSwitchPersonaTool())

	if b.Reminders != nil {
		for _, tool := range ReminderTools(b.Reminders) {
			registry.Register(tool)
		}
	}
	if b.Notes != nil {
		registry.Register(NewAddNoteTool(b.Notes))
		registry.Register(NewListNotesTool(b.Notes))
		registry.Register(NewDeleteNoteTool(b.Notes))
		registry.Register(NewClearNotesTool(b.Notes))
	}
}
