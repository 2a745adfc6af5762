package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appLog "bellsched/internal/log"
	"bellsched/internal/store"
)

const defaultCheckpointTTL = 7 * 24 * time.Hour

// checkpoints persists step outputs of one run under
// workflow:<runID>:<step>.
type checkpoints struct {
	kv    store.KV
	runID string
	ttl   time.Duration
}

func (c *checkpoints) key(step string) string {
	return fmt.Sprintf("%s%s:%s", store.WorkflowPrefix, c.runID, step)
}

// runStep returns the saved output of step, or runs fn and saves its
// output. A step whose output was saved is never executed again within
// the same run.
func runStep[T any](ctx context.Context, c *checkpoints, step string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	raw, ok, err := c.kv.Get(ctx, c.key(step))
	if err != nil {
		return out, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			appLog.Debug("import step replayed from checkpoint", "run", c.runID, "step", step)
			return out, nil
		}
		appLog.Warn("import checkpoint unreadable; re-running step", "run", c.runID, "step", step)
	}

	start := time.Now()
	out, err = fn(ctx)
	if err != nil {
		return out, fmt.Errorf("step %s: %w", step, err)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return out, fmt.Errorf("step %s: encode checkpoint: %w", step, err)
	}
	if err := c.kv.Set(ctx, c.key(step), string(data), c.ttl); err != nil {
		return out, err
	}
	appLog.Info("import step completed", "run", c.runID, "step", step, "elapsed", time.Since(start))
	return out, nil
}
