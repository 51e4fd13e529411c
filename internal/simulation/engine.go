package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iwvelando/risk-forecast/pkg/distribution"
	"github.com/iwvelando/risk-forecast/pkg/statistics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShardSize is the number of iterations drawn from one random stream. It is a
// constant so that results never depend on how many workers run the shards.
const ShardSize = 1024

// Run outcomes reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeAborted = "aborted"
	OutcomeError   = "error"
)

// Observer receives one notification per Run.
type Observer interface {
	ObserveRun(outcome string, iterations int, elapsed time.Duration)
}

// Engine runs simulations. It is safe for concurrent use.
type Engine struct {
	logger   *zap.Logger
	sampler  *distribution.Sampler
	workers  int
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many goroutines draw shards concurrently. Values below
// one run every shard on the calling goroutine.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSamplerConfig overrides the sampler constants.
func WithSamplerConfig(cfg distribution.Config) Option {
	return func(e *Engine) {
		e.sampler = distribution.NewSampler(cfg)
	}
}

// WithObserver registers an Observer for run outcomes.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an engine. If logger is nil a no-op logger is used.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:  logger,
		sampler: distribution.NewSampler(distribution.DefaultConfig()),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run simulates risks with the default engine.
func Run(risks []RiskInput, settings Settings, base float64) (*Result, error) {
	return NewEngine(nil).Run(context.Background(), Request{Risks: risks, Settings: settings, Base: base})
}

// iterationRecord holds every iteration's total and each risk's contribution.
type iterationRecord struct {
	totals        []float64
	contributions [][]float64
	// clamped[shard][risk] counts cost-only samples clamped to zero.
	clamped [][]int
	// floored[shard][risk] counts samples raised to the sampler floor.
	floored [][]int
}

// Run validates the request, draws every iteration, and reduces the record into
// a Result. Invalid input fails before any sampling; a cancelled ctx or a
// Checkpoint error aborts the run between shards. Neither case returns a partial
// result.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, outcome, err := e.run(ctx, req)
	if e.observer != nil {
		e.observer.ObserveRun(outcome, req.Settings.Iterations, time.Since(start))
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, req Request) (*Result, string, error) {
	if err := Validate(req.Risks, req.Settings); err != nil {
		e.logger.Warn("simulation rejected",
			zap.String("op", "simulation.Run"),
			zap.Error(err),
		)
		return nil, OutcomeInvalid, err
	}

	settings := req.Settings.withDefaults()
	e.logger.Info("simulation started",
		zap.String("op", "simulation.Run"),
		zap.Int("risks", len(req.Risks)),
		zap.Int("iterations", settings.Iterations),
		zap.Uint64("seed", settings.Seed),
		zap.Int("workers", e.workers),
	)
	start := time.Now()

	rec, err := e.iterate(ctx, req.Risks, settings, req.Base, req.Checkpoint)
	if err != nil {
		outcome := OutcomeAborted
		var sampleErr *sampleError
		if errors.As(err, &sampleErr) {
			outcome = OutcomeError
		}
		e.logger.Warn("simulation aborted",
			zap.String("op", "simulation.Run"),
			zap.Error(err),
		)
		return nil, outcome, err
	}

	result, err := e.reduce(req, settings, rec)
	if err != nil {
		return nil, OutcomeError, err
	}

	e.logger.Info("simulation completed",
		zap.String("op", "simulation.Run"),
		zap.Int("iterations", settings.Iterations),
		zap.Float64("mean", result.Mean),
		zap.Float64("p50", result.P50),
		zap.Int("targetPercentile", result.TargetPercentile),
		zap.Float64("targetValue", result.TargetValue),
		zap.Duration("duration", time.Since(start)),
	)
	return result, OutcomeSuccess, nil
}

type sampleError struct {
	riskID string
	err    error
}

func (s *sampleError) Error() string {
	return fmt.Sprintf("sampling risk %s: %v", s.riskID, s.err)
}

func (s *sampleError) Unwrap() error {
	return s.err
}

// iterate fills the iteration record shard by shard. Shard k draws from stream
// k of the master seed and writes only its own index range, so the merged record
// is identical for any number of workers.
func (e *Engine) iterate(ctx context.Context, risks []RiskInput, settings Settings, base float64, checkpoint CheckpointFunc) (*iterationRecord, error) {
	n := settings.Iterations
	shards := (n + ShardSize - 1) / ShardSize

	rec := &iterationRecord{
		totals:        make([]float64, n),
		contributions: make([][]float64, len(risks)),
		clamped:       make([][]int, shards),
		floored:       make([][]int, shards),
	}
	for r := range risks {
		rec.contributions[r] = make([]float64, n)
	}

	var mu sync.Mutex
	completed := 0
	finish := func(k, size int) error {
		mu.Lock()
		defer mu.Unlock()
		completed += size
		if err := ctx.Err(); err != nil {
			return err
		}
		e.logger.Debug("shard completed",
			zap.String("op", "simulation.iterate"),
			zap.Int("shard", k),
			zap.Int("completed", completed),
			zap.Int("total", n),
		)
		if checkpoint == nil {
			return nil
		}
		return checkpoint(completed, n)
	}

	if e.workers <= 1 {
		for k := 0; k < shards; k++ {
			size, err := e.drawShard(rec, risks, settings.Seed, base, k)
			if err != nil {
				return nil, err
			}
			if err := finish(k, size); err != nil {
				return nil, err
			}
		}
		return rec, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for k := 0; k < shards; k++ {
		g.Go(func() error {
			// Skip remaining shards once any shard or checkpoint has failed.
			if gctx.Err() != nil {
				return nil
			}
			size, err := e.drawShard(rec, risks, settings.Seed, base, k)
			if err != nil {
				return err
			}
			return finish(k, size)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// drawShard runs iterations [k*ShardSize, min((k+1)*ShardSize, n)) and returns
// how many it ran. Within an iteration risks are visited in input order: the
// occurrence draw always happens, the sampler only when the risk occurs.
func (e *Engine) drawShard(rec *iterationRecord, risks []RiskInput, seed uint64, base float64, k int) (int, error) {
	lo := k * ShardSize
	hi := min(lo+ShardSize, len(rec.totals))
	src := distribution.NewSource(seed, uint64(k))
	clamped := make([]int, len(risks))
	floored := make([]int, len(risks))

	for i := lo; i < hi; i++ {
		total := base
		for r := range risks {
			risk := &risks[r]
			impact := 0.0
			if distribution.Occurs(risk.Probability, src) {
				v, atFloor, err := e.sampler.Draw(risk.Estimate, src)
				if err != nil {
					return 0, &sampleError{riskID: risk.ID, err: err}
				}
				if atFloor {
					floored[r]++
				}
				if risk.CostOnly && v < 0 {
					v = 0
					clamped[r]++
				}
				impact = v
			}
			rec.contributions[r][i] = impact
			total += impact
		}
		rec.totals[i] = total
	}

	rec.clamped[k] = clamped
	rec.floored[k] = floored
	return hi - lo, nil
}

// reduce derives the statistics, sensitivity, histogram, and exceedance datasets
// from the complete record.
func (e *Engine) reduce(req Request, settings Settings, rec *iterationRecord) (*Result, error) {
	sorted := statistics.SortedCopy(rec.totals)
	summary, err := statistics.AggregateSorted(sorted, settings.TargetPercentile, req.Base)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate totals: %w", err)
	}

	contributions := make([]statistics.Contribution, len(req.Risks))
	for r, risk := range req.Risks {
		contributions[r] = statistics.Contribution{RiskID: risk.ID, Values: rec.contributions[r]}
	}
	sensitivity, err := statistics.Sensitivity(contributions, rec.totals)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze sensitivity: %w", err)
	}

	totalRisks := req.TotalRisks
	if totalRisks < len(req.Risks) {
		totalRisks = len(req.Risks)
	}

	result := &Result{
		Base:            req.Base,
		Distribution:    rec.totals,
		Summary:         summary,
		Sensitivity:     sensitivity,
		Histogram:       statistics.Histogram(rec.totals, settings.HistogramBins),
		ExceedanceCurve: statistics.ExceedanceCurve(sorted, settings.CurvePoints),
		RisksAnalyzed:   len(req.Risks),
		TotalRisks:      totalRisks,
		Flags:           e.flags(req.Risks, rec),
		Settings:        settings,
	}
	return result, nil
}

func (e *Engine) flags(risks []RiskInput, rec *iterationRecord) []RiskFlag {
	var flags []RiskFlag
	for r, risk := range risks {
		flag := RiskFlag{
			RiskID:         risk.ID,
			ClampedSamples: shardSum(rec.clamped, r),
			FlooredSamples: shardSum(rec.floored, r),
		}
		if flag.ClampedSamples == 0 && flag.FlooredSamples == 0 {
			continue
		}
		if flag.ClampedSamples > 0 {
			e.logger.Warn("cost-only risk produced negative samples; clamped to zero",
				zap.String("op", "simulation.Run"),
				zap.String("risk", risk.ID),
				zap.Int("clampedSamples", flag.ClampedSamples),
			)
		}
		if flag.FlooredSamples > 0 {
			e.logger.Warn("risk produced samples below the sampler floor; raised to the floor",
				zap.String("op", "simulation.Run"),
				zap.String("risk", risk.ID),
				zap.Int("flooredSamples", flag.FlooredSamples),
			)
		}
		flags = append(flags, flag)
	}
	return flags
}

func shardSum(counts [][]int, r int) int {
	total := 0
	for _, shard := range counts {
		total += shard[r]
	}
	return total
}
