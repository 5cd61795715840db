// Package effector performs the OS-level actions behind capabilities.
//
// Every capability the dispatcher can route resolves to one Effector. The
// builtin effectors shell out to standard desktop tooling (xsetroot,
// brightnessctl, pactl) through a Runner, which tests replace to avoid
// touching the host.
package effector

import (
	"context"
	"os/exec"
	"strings"

	"github.com/voxos-ai/voxos/internal/capability"
)

// Result is the user-facing outcome of a successful effector call.
type Result struct {
	// Message is a short human-readable summary, e.g. "brightness set to 50%".
	Message string

	// Data carries structured payloads for query-style capabilities.
	Data map[string]any
}

// Effector executes one capability's validated call against the host.
type Effector interface {
	Execute(ctx context.Context, call capability.ValidatedCall) (Result, error)
}

// Func adapts a plain function to the Effector interface.
type Func func(ctx context.Context, call capability.ValidatedCall) (Result, error)

func (f Func) Execute(ctx context.Context, call capability.ValidatedCall) (Result, error) {
	return f(ctx, call)
}

// Runner executes an external command and returns its combined output.
// Builtin effectors take a Runner so tests can intercept the commands.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// ExecRunner is the production Runner backed by os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// StartDetached launches a program without waiting for it to exit. The child
// outlives the caller's context on purpose: closing voxos should not close
// the applications it opened.
func StartDetached(name string) error {
	cmd := exec.Command(name)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child when it eventually exits.
	go cmd.Wait()
	return nil
}

// PresetLevels maps the named volume/brightness presets to percentages.
var PresetLevels = map[string]int{
	"low":  20,
	"mid":  50,
	"high": 80,
}

// PresetLevel resolves a preset name to its percentage.
func PresetLevel(name string) (int, bool) {
	v, ok := PresetLevels[strings.ToLower(name)]
	return v, ok
}

// Builtin returns the default effector set keyed by capability name. The
// set_model capability is wired separately because switching models needs the
// provider, not the host.
func Builtin(run Runner) map[string]Effector {
	if run == nil {
		run = ExecRunner
	}
	return map[string]Effector{
		"change_background": &Background{Run: run},
		"set_brightness":    &Brightness{Run: run},
		"set_volume":        &Volume{Run: run},
		"control_volume":    &VolumeControl{Run: run},
		"open_application":  &Launcher{},
		"get_system_info":   &SysInfo{},
	}
}
