package tools

import (
	"context"

	"github.com/dotsetgreg/dotvoice/pkg/profile"
)

// SwitchPersonaTool only emits the switch sentinel; the orchestrator applies
// the change.
type SwitchPersonaTool struct{}

func NewSwitchPersonaTool() *SwitchPersonaTool {
	return &SwitchPersonaTool{}
}

func (t *SwitchPersonaTool) Name() string { return "switch_persona" }

func (t *SwitchPersonaTool) Description() string {
	return "Switch the assistant persona between Mavrick (default), Jarvis (polite/British) and Friday (efficient/sharp)."
}

func (t *SwitchPersonaTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"persona": stringProperty("Persona to switch to.", profile.Personas()...),
	}, "persona")
}

func (t *SwitchPersonaTool) Execute(_ context.Context, args map[string]interface{}) *ToolResult {
	persona := stringArg(args, "persona")
	if persona == "" {
		return ErrorResult("persona is required.")
	}
	return SilentResult(profile.Sentinel(persona))
}
