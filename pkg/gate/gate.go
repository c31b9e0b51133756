// Package gate evaluates Rego admission policies before any task spawns.
// Policies live as .rego files in a configured directory and deny tasks by
// adding messages to the data.runbook.deny set.
package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/runbook/runbook/pkg/engine"
)

// Gate holds the prepared policy query. A nil Gate allows everything.
type Gate struct {
	query  rego.PreparedEvalQuery
	logger zerolog.Logger
}

// Load compiles every .rego file under dir into one prepared query. It
// returns a nil gate when the directory does not exist or holds no
// policies, which admits all tasks.
func Load(ctx context.Context, dir string, logger zerolog.Logger) (*Gate, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.NewConfigError("reading policy directory", err)
	}

	var opts []func(*rego.Rego)
	modules := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".rego") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, engine.NewConfigError("reading policy "+path, err)
		}
		opts = append(opts, rego.Module(e.Name(), string(src)))
		modules++
	}
	if modules == 0 {
		return nil, nil
	}

	opts = append(opts, rego.Query("data.runbook.deny"))
	query, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, engine.NewConfigError("compiling policies", err)
	}

	logger.Debug().Int("modules", modules).Str("dir", dir).Msg("admission policies loaded")
	return &Gate{
		query:  query,
		logger: logger.With().Str("component", "gate").Logger(),
	}, nil
}

// Check implements engine.Gate. A denied task yields a configuration-class
// error carrying every deny message.
func (g *Gate) Check(ctx context.Context, task engine.Descriptor) error {
	if g == nil {
		return nil
	}

	input := map[string]any{
		"id":              task.ID,
		"kind":            string(task.Kind),
		"target":          task.Target,
		"path":            task.Path,
		"args":            task.Args,
		"required":        task.Required,
		"timeout_seconds": task.TimeoutSeconds,
		"on_failure":      string(task.OnFailure),
		"retries":         task.Retries,
	}

	results, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return engine.NewConfigError("policy evaluation failed", err).WithTask(task.ID)
	}

	var denials []string
	for _, result := range results {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range set {
				denials = append(denials, fmt.Sprintf("%v", d))
			}
		}
	}

	if len(denials) > 0 {
		g.logger.Warn().Str("task", task.ID).Strs("denials", denials).
			Msg("task denied by policy")
		return engine.NewConfigError(
			"denied by policy: "+strings.Join(denials, "; "), nil).
			WithCode(engine.CodePolicyDenied).WithTask(task.ID)
	}
	return nil
}
