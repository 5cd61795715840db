package effector

import (
	"context"
	"fmt"

	"github.com/voxos-ai/voxos/internal/capability"
)

// Background paints the desktop root window a solid colour via xsetroot.
type Background struct {
	Run Runner
}

func (e *Background) Execute(ctx context.Context, call capability.ValidatedCall) (Result, error) {
	color := call.String("color")
	if out, err := e.Run(ctx, "xsetroot", "-solid", color); err != nil {
		return Result{}, fmt.Errorf("set background to %q: %w (%s)", color, err, out)
	}
	return Result{Message: fmt.Sprintf("background changed to %s", color)}, nil
}

// Brightness sets the display backlight via brightnessctl.
type Brightness struct {
	Run Runner
}

func (e *Brightness) Execute(ctx context.Context, call capability.ValidatedCall) (Result, error) {
	level := call.Int("level")
	if out, err := e.Run(ctx, "brightnessctl", "set", fmt.Sprintf("%d%%", level)); err != nil {
		return Result{}, fmt.Errorf("set brightness to %d%%: %w (%s)", level, err, out)
	}
	return Result{Message: fmt.Sprintf("brightness set to %d%%", level)}, nil
}

// Volume sets the default sink's volume via pactl. Setting a level also
// unmutes, matching what a user means by "set volume to 50".
type Volume struct {
	Run Runner
}

// Level resolves the call's volume target from either the numeric level or a
// named preset.
func (e *Volume) Level(call capability.ValidatedCall) (int, error) {
	if call.Has("level") {
		return call.Int("level"), nil
	}
	if v, ok := PresetLevel(call.String("level_text")); ok {
		return v, nil
	}
	return 0, fmt.Errorf("no volume level in call")
}

func (e *Volume) Execute(ctx context.Context, call capability.ValidatedCall) (Result, error) {
	level, err := e.Level(call)
	if err != nil {
		return Result{}, err
	}
	if out, runErr := e.Run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", "0"); runErr != nil {
		return Result{}, fmt.Errorf("unmute sink: %w (%s)", runErr, out)
	}
	if out, runErr := e.Run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", level)); runErr != nil {
		return Result{}, fmt.Errorf("set volume to %d%%: %w (%s)", level, runErr, out)
	}
	return Result{Message: fmt.Sprintf("volume set to %d%%", level)}, nil
}

// VolumeStep is the percentage applied by the increase/decrease actions.
const VolumeStep = 10

// VolumeControl mutes, unmutes, or steps the default sink via pactl.
type VolumeControl struct {
	Run Runner
}

func (e *VolumeControl) Execute(ctx context.Context, call capability.ValidatedCall) (Result, error) {
	action := call.String("action")

	var args []string
	var message string
	switch action {
	case "mute":
		args = []string{"set-sink-mute", "@DEFAULT_SINK@", "1"}
		message = "volume muted"
	case "unmute":
		args = []string{"set-sink-mute", "@DEFAULT_SINK@", "0"}
		message = "volume unmuted"
	case "increase":
		args = []string{"set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("+%d%%", VolumeStep)}
		message = fmt.Sprintf("volume up %d%%", VolumeStep)
	case "decrease":
		args = []string{"set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("-%d%%", VolumeStep)}
		message = fmt.Sprintf("volume down %d%%", VolumeStep)
	default:
		return Result{}, fmt.Errorf("unknown volume action %q", action)
	}

	if out, err := e.Run(ctx, "pactl", args...); err != nil {
		return Result{}, fmt.Errorf("volume %s: %w (%s)", action, err, out)
	}
	return Result{Message: message}, nil
}

// Launcher starts an application by name or path. The process is detached:
// Execute returns once the program has started, not when it exits.
type Launcher struct {
	// Start launches the program without waiting for it. Nil means
	// StartDetached.
	Start func(name string) error
}

func (e *Launcher) Execute(ctx context.Context, call capability.ValidatedCall) (Result, error) {
	start := e.Start
	if start == nil {
		start = StartDetached
	}
	app := call.String("app_name")
	if err := start(app); err != nil {
		return Result{}, fmt.Errorf("launch %q: %w", app, err)
	}
	return Result{Message: fmt.Sprintf("launched %s", app)}, nil
}
