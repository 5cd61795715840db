package effector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voxos-ai/voxos/internal/capability"
	"github.com/voxos-ai/voxos/pkg/provider/llm"
)

// ModelSwitch returns the effector backing set_model. It verifies the
// requested model against the backend's listing before accepting the switch;
// backends that cannot enumerate models accept any name.
func ModelSwitch(p llm.Provider) Effector {
	return Func(func(ctx context.Context, call capability.ValidatedCall) (Result, error) {
		name := call.String("model")

		models, err := p.Models(ctx)
		if errors.Is(err, llm.ErrNoModelListing) {
			return Result{Message: fmt.Sprintf("Switched to model %s.", name)}, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("list models: %w", err)
		}

		for _, m := range models {
			// Ollama lists tagged names ("mistral:latest"); accept the bare
			// name as well.
			if m == name || strings.TrimSuffix(m, ":latest") == name {
				return Result{
					Message: fmt.Sprintf("Switched to model %s.", name),
					Data:    map[string]any{"available": len(models)},
				}, nil
			}
		}
		return Result{}, fmt.Errorf("model %q is not available; known models: %s",
			name, strings.Join(models, ", "))
	})
}
