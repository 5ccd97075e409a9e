package tools

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

var mediaActions = []string{"volume up", "volume down", "mute", "play pause", "next", "previous"}

var windowsMediaKeys = map[string]string{
	"volume up":   "175",
	"volume down": "174",
	"mute":        "173",
	"play pause":  "179",
	"next":        "176",
	"previous":    "177",
}

// mediaCommand maps an action to a host command for goos.
func mediaCommand(goos, action string) (string, bool) {
	switch goos {
	case "windows":
		key, ok := windowsMediaKeys[action]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("$obj = New-Object -ComObject WScript.Shell; $obj.SendKeys([char]%s)", key), true
	case "darwin":
		cmds := map[string]string{
			"volume up":   `osascript -e "set volume output volume ((output volume of (get volume settings)) + 10)"`,
			"volume down": `osascript -e "set volume output volume ((output volume of (get volume settings)) - 10)"`,
			"mute":        `osascript -e "set volume output muted not (output muted of (get volume settings))"`,
			"play pause":  `osascript -e 'tell application "Music" to playpause'`,
			"next":        `osascript -e 'tell application "Music" to next track'`,
			"previous":    `osascript -e 'tell application "Music" to previous track'`,
		}
		cmd, ok := cmds[action]
		return cmd, ok
	default:
		cmds := map[string]string{
			"volume up":   "pactl set-sink-volume @DEFAULT_SINK@ +5%",
			"volume down": "pactl set-sink-volume @DEFAULT_SINK@ -5%",
			"mute":        "pactl set-sink-mute @DEFAULT_SINK@ toggle",
			"play pause":  "playerctl play-pause",
			"next":        "playerctl next",
			"previous":    "playerctl previous",
		}
		cmd, ok := cmds[action]
		return cmd, ok
	}
}

type MediaControlTool struct {
	launcher Launcher
	goos     string
}

func NewMediaControlTool(launcher Launcher) *MediaControlTool {
	return &MediaControlTool{launcher: launcher, goos: runtime.GOOS}
}

func (t *MediaControlTool) Name() string { return "media_control" }

func (t *MediaControlTool) Description() string {
	return "Control system media playback and volume"
}

func (t *MediaControlTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"action": stringProperty("Media action to perform.", mediaActions...),
	}, "action")
}

func (t *MediaControlTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	action := stringArg(args, "action")
	cmd, ok := mediaCommand(t.goos, strings.ToLower(action))
	if !ok {
		return UserResult(fmt.Sprintf("Unknown media action: %s.", action))
	}
	if err := t.launcher.Run(ctx, cmd); err != nil {
		return ErrorResult(fmt.Sprintf("Media action %s failed: %v", action, err)).WithError(err)
	}
	return UserResult(fmt.Sprintf("Executing %s.", action))
}
