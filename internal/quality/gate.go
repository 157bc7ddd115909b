package quality

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"creditetl/internal/table"
)

// StrategyBestEffort is the only supported publishing strategy.
const StrategyBestEffort = "BEST_EFFORT"

// Gate evaluates the table and publishes the result. Failed rules are
// reported but never block the write.
type Gate struct {
	Evaluator Evaluator
	Publisher Publisher
	// Publish turns result publishing on.
	Publish  bool
	Strategy string
	Log      *zap.Logger
}

// Run evaluates t. It never returns an error: evaluation and publishing
// problems are logged at warn level and swallowed. The zero Result is
// returned when evaluation could not complete.
func (g Gate) Run(ctx context.Context, t *table.Table) (res Result) {
	log := g.Log
	if log == nil {
		log = zap.NewNop()
	}
	if s := strings.ToUpper(g.Strategy); s != "" && s != StrategyBestEffort {
		log.Warn("quality: unsupported strategy, using best effort", zap.String("strategy", g.Strategy))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn("quality: evaluation aborted", zap.String("panic", fmt.Sprint(r)))
		}
	}()

	res, err := g.Evaluator.Evaluate(ctx, t)
	if err != nil {
		log.Warn("quality: evaluation failed", zap.String("context", g.Evaluator.Context), zap.Error(err))
		return Result{}
	}
	if failed := res.Failed(); len(failed) > 0 {
		for _, o := range failed {
			log.Warn("quality: rule failed", zap.String("rule", o.Rule), zap.String("message", o.Message))
		}
	}

	if !g.Publish || g.Publisher == nil {
		return res
	}
	if err := g.Publisher.Publish(ctx, res); err != nil {
		log.Warn("quality: publishing failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
	return res
}
