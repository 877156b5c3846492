package runner

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/apiuse/internal/history"
	"github.com/unkn0wn-root/apiuse/internal/httpclient"
	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/vars"
)

// Runner executes requests asynchronously and tracks a single in-flight
// result slot. Starting a new run does not cancel the previous one (each
// call is bounded by its own timeout); a superseded run's outcome is
// recorded to history but no longer replaces the slot.
type Runner struct {
	client  *httpclient.Client
	history *history.Service
	log     *zap.Logger
	opts    httpclient.Options

	mu      sync.Mutex
	gen     uint64
	loading bool
	result  *model.RunResult
}

func New(client *httpclient.Client, hist *history.Service, log *zap.Logger, opts httpclient.Options) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{client: client, history: hist, log: log, opts: opts}
}

// Run dispatches the request on its own goroutine and returns a channel that
// delivers the result once. The tracked slot is replaced only when this run
// is still the latest at completion time.
func (r *Runner) Run(
	ctx context.Context,
	def model.RequestDefinition,
	resolver *vars.Resolver,
	globalHeaders []model.KV,
) <-chan model.RunResult {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.loading = true
	r.mu.Unlock()

	done := make(chan model.RunResult, 1)
	go func() {
		result := r.client.Execute(ctx, def, resolver, globalHeaders, r.opts)

		r.mu.Lock()
		if gen == r.gen {
			r.result = &result
			r.loading = false
		}
		r.mu.Unlock()

		if r.history != nil {
			if err := r.history.Record(context.Background(), def, result); err != nil {
				r.log.Warn("record history entry", zap.Error(err))
			}
		}

		if result.Error != "" {
			r.log.Info("request failed",
				zap.String("name", def.Name),
				zap.String("method", def.Method),
				zap.String("url", def.URL),
				zap.Int64("durationMs", result.DurationMs),
				zap.String("error", result.Error))
		} else {
			status := 0
			if result.Status != nil {
				status = *result.Status
			}
			r.log.Info("request completed",
				zap.String("name", def.Name),
				zap.String("method", def.Method),
				zap.String("url", def.URL),
				zap.Int("status", status),
				zap.Int64("durationMs", result.DurationMs))
		}

		done <- result
	}()
	return done
}

func (r *Runner) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Result returns a copy of the latest completed result, or nil when nothing
// has finished yet (or the slot was cleared).
func (r *Runner) Result() *model.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return nil
	}
	copied := *r.result
	return &copied
}

func (r *Runner) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = nil
}
