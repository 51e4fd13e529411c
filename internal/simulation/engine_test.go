package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/iwvelando/risk-forecast/pkg/constants"
	"github.com/iwvelando/risk-forecast/pkg/distribution"
	"github.com/iwvelando/risk-forecast/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func risk(id string, p10, p50, p90, probability float64, shape distribution.Shape) RiskInput {
	return RiskInput{
		ID:          id,
		Estimate:    distribution.Estimate{P10: p10, P50: p50, P90: p90, Shape: shape},
		Probability: probability,
	}
}

func settings(iterations int) Settings {
	return Settings{Iterations: iterations, TargetPercentile: 80, Seed: 42}
}

func mixedRegister() []RiskInput {
	return []RiskInput{
		risk("R-001", 80000, 100000, 140000, 0.6, distribution.Triangular),
		risk("R-002", 5000, 20000, 90000, 0.3, distribution.PERT),
		risk("R-003", 10000, 15000, 30000, 0.9, distribution.Uniform),
		risk("R-004", -20000, 0, 25000, 0.5, distribution.NormalLike),
		risk("R-005", 7000, 7000, 7000, 1, distribution.Triangular),
	}
}

func TestConstantRisksYieldConstantDistribution(t *testing.T) {
	risks := []RiskInput{
		risk("fixed-a", 2500, 2500, 2500, 1, distribution.PERT),
		risk("fixed-b", 500, 500, 500, 1, distribution.NormalLike),
	}
	for _, iterations := range []int{1, 10, 5000} {
		t.Run(fmt.Sprintf("%d iterations", iterations), func(t *testing.T) {
			result, err := Run(risks, settings(iterations), 1000)
			require.NoError(t, err)

			require.Len(t, result.Distribution, iterations)
			for _, v := range result.Distribution {
				require.Equal(t, 4000.0, v)
			}
			assert.Equal(t, 0.0, result.StdDev)
			assert.Equal(t, 4000.0, result.Mean)
			for _, row := range result.PercentileTable {
				assert.Equal(t, 4000.0, row.Value)
				assert.Equal(t, 3000.0, row.VarianceFromBase)
			}
			assert.Empty(t, result.Sensitivity)
			require.Len(t, result.Histogram, 1)
			assert.Equal(t, iterations, result.Histogram[0].Count)
		})
	}
}

func TestRunInvariants(t *testing.T) {
	for _, iterations := range []int{1, 999, 1024, 1025, 12345} {
		t.Run(fmt.Sprintf("%d iterations", iterations), func(t *testing.T) {
			result, err := Run(mixedRegister(), settings(iterations), 250000)
			require.NoError(t, err)

			require.Len(t, result.Distribution, iterations)

			assert.Equal(t, iterations, testutil.HistogramCount(result.Histogram))

			for i := 1; i < len(result.PercentileTable); i++ {
				assert.GreaterOrEqual(t, result.PercentileTable[i].Value, result.PercentileTable[i-1].Value)
				assert.Greater(t, result.PercentileTable[i].Percentile, result.PercentileTable[i-1].Percentile)
			}

			if iterations > 1 {
				assert.InDelta(t, 1.0, testutil.ShareSum(result.Sensitivity), constants.ShareTolerance)
				for i := 1; i < len(result.Sensitivity); i++ {
					assert.GreaterOrEqual(t, result.Sensitivity[i-1].VarianceContribution, result.Sensitivity[i].VarianceContribution)
				}
			}

			assert.Equal(t, 5, result.RisksAnalyzed)
			assert.Equal(t, 5, result.TotalRisks)
			assert.Equal(t, 250000.0, result.Base)
			assert.Equal(t, 50, result.Settings.HistogramBins)
		})
	}
}

func TestReproducibleForSeed(t *testing.T) {
	s := settings(10000)

	first, err := Run(mixedRegister(), s, 100)
	require.NoError(t, err)
	second, err := Run(mixedRegister(), s, 100)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("identical requests produced different results (-first +second):\n%s", diff)
	}

	s.Seed = 43
	other, err := Run(mixedRegister(), s, 100)
	require.NoError(t, err)
	assert.NotEqual(t, first.Distribution, other.Distribution)
}

func TestResultIndependentOfWorkerCount(t *testing.T) {
	req := Request{Risks: mixedRegister(), Settings: settings(20000), Base: 5000}

	sequential, err := NewEngine(nil).Run(context.Background(), req)
	require.NoError(t, err)

	for _, workers := range []int{2, 4, 16} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			parallel, err := NewEngine(zap.NewNop(), WithWorkers(workers)).Run(context.Background(), req)
			require.NoError(t, err)
			if diff := cmp.Diff(sequential, parallel); diff != "" {
				t.Fatalf("parallel run diverged (-sequential +parallel):\n%s", diff)
			}
		})
	}
}

func TestScenarioATriangularConvergence(t *testing.T) {
	risks := []RiskInput{risk("A", 80000, 100000, 140000, 1, distribution.Triangular)}
	result, err := Run(risks, settings(50000), 0)
	require.NoError(t, err)

	// Analytic Triangular(80k, 100k, 140k) quantiles.
	p10 := 80000 + math.Sqrt(0.1*60000*20000)
	p50 := 140000 - math.Sqrt(0.5*60000*40000)
	p90 := 140000 - math.Sqrt(0.1*60000*40000)

	assert.InEpsilon(t, 100000, result.P50, 0.06)
	assert.InEpsilon(t, p50, result.P50, 0.01)
	assert.InEpsilon(t, p10, result.P10, 0.01)
	assert.InEpsilon(t, p90, result.P90, 0.01)
	assert.InEpsilon(t, (80000.0+100000+140000)/3, result.Mean, 0.01)

	assert.GreaterOrEqual(t, result.Min, 80000.0)
	assert.LessOrEqual(t, result.Max, 140000.0)

	require.Len(t, result.Sensitivity, 1)
	assert.InDelta(t, 1.0, result.Sensitivity[0].VarianceContribution, 1e-12)
	assert.InDelta(t, 1.0, result.Sensitivity[0].Correlation, 1e-9)
}

func TestScenarioBNeverOccurs(t *testing.T) {
	for _, shape := range distribution.Shapes() {
		t.Run(string(shape), func(t *testing.T) {
			risks := []RiskInput{risk("B", 1000, 5000, 90000, 0, shape)}
			result, err := Run(risks, settings(5000), 12345)
			require.NoError(t, err)

			for _, v := range result.Distribution {
				require.Equal(t, 12345.0, v)
			}
			assert.Equal(t, 0.0, result.StdDev)
			assert.Empty(t, result.Sensitivity)
		})
	}
}

func TestScenarioCEqualContributions(t *testing.T) {
	risks := make([]RiskInput, 10)
	for i := range risks {
		risks[i] = risk(fmt.Sprintf("C-%02d", i), 0, 50, 100, 0.5, distribution.Triangular)
	}

	result, err := NewEngine(nil, WithWorkers(4)).Run(context.Background(), Request{Risks: risks, Settings: settings(50000)})
	require.NoError(t, err)

	require.Len(t, result.Sensitivity, 10)
	for _, entry := range result.Sensitivity {
		assert.InDelta(t, 0.10, entry.VarianceContribution, 0.01, "risk %s", entry.RiskID)
		// Each of ten equal independent drivers correlates at about 1/sqrt(10).
		assert.InDelta(t, 1/math.Sqrt(10), entry.Correlation, 0.02, "risk %s", entry.RiskID)
	}
}

func TestScenarioDSingleIteration(t *testing.T) {
	result, err := Run(mixedRegister(), settings(1), 100)
	require.NoError(t, err)

	require.Len(t, result.Distribution, 1)
	only := result.Distribution[0]
	assert.Equal(t, only, result.Mean)
	assert.Equal(t, 0.0, result.StdDev)
	for _, row := range result.PercentileTable {
		assert.Equal(t, only, row.Value)
	}
	assert.Equal(t, only, result.TargetValue)
	require.Len(t, result.Histogram, 1)
	assert.Equal(t, 1, result.Histogram[0].Count)
	assert.Equal(t, only, result.Histogram[0].BinMid)
	assert.Empty(t, result.Sensitivity)
}

func TestCostOnlyRiskClampedToZero(t *testing.T) {
	opportunity := risk("saving", -100, -50, -10, 1, distribution.Uniform)
	opportunity.CostOnly = true
	threat := risk("threat", 10, 20, 30, 1, distribution.Uniform)

	result, err := Run([]RiskInput{opportunity, threat}, settings(3000), 0)
	require.NoError(t, err)

	require.Equal(t, []RiskFlag{{RiskID: "saving", ClampedSamples: 3000}}, result.Flags)
	assert.GreaterOrEqual(t, result.Min, 10.0)
	require.Len(t, result.Sensitivity, 1)
	assert.NotNil(t, testutil.FindSensitivity(result.Sensitivity, "threat"))
	assert.Nil(t, testutil.FindSensitivity(result.Sensitivity, "saving"))
}

func TestNegativeImpactsPermittedWithoutCostOnly(t *testing.T) {
	result, err := Run([]RiskInput{risk("saving", -100, -50, -10, 1, distribution.Uniform)}, settings(1000), 0)
	require.NoError(t, err)
	assert.Empty(t, result.Flags)
	assert.Less(t, result.Max, 0.0)
}

func TestSamplerConfigApplied(t *testing.T) {
	risks := []RiskInput{risk("N", -50, 0, 50, 1, distribution.NormalLike)}

	floored, err := NewEngine(nil).Run(context.Background(), Request{Risks: risks, Settings: settings(5000)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, floored.Min)

	unfloored, err := NewEngine(nil, WithSamplerConfig(distribution.Config{})).Run(context.Background(), Request{Risks: risks, Settings: settings(5000)})
	require.NoError(t, err)
	assert.Less(t, unfloored.Min, 0.0)
}

func TestNormalLikeSavingIsNotFloored(t *testing.T) {
	saving := risk("saving", -200, -100, -50, 1, distribution.NormalLike)

	result, err := Run([]RiskInput{saving}, settings(20000), 1000)
	require.NoError(t, err)
	assert.InDelta(t, 900, result.Mean, 3)
	assert.Less(t, result.P90, 1000.0)
	assert.Empty(t, result.Flags)
}

func TestFlooredSamplesReported(t *testing.T) {
	result, err := Run([]RiskInput{risk("N", -50, 0, 50, 1, distribution.NormalLike)}, settings(4000), 0)
	require.NoError(t, err)

	require.Len(t, result.Flags, 1)
	flag := result.Flags[0]
	assert.Equal(t, "N", flag.RiskID)
	assert.Zero(t, flag.ClampedSamples)
	assert.InDelta(t, 2000, flag.FlooredSamples, 200)
}

func TestTotalRisksReportsRegisterSize(t *testing.T) {
	result, err := NewEngine(nil).Run(context.Background(), Request{Risks: mixedRegister(), Settings: settings(100), TotalRisks: 8})
	require.NoError(t, err)
	assert.Equal(t, 5, result.RisksAnalyzed)
	assert.Equal(t, 8, result.TotalRisks)
}

func TestCheckpointAbortsRun(t *testing.T) {
	stop := errors.New("cancelled")
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			calls := 0
			req := Request{
				Risks:    mixedRegister(),
				Settings: settings(10 * ShardSize),
				Checkpoint: func(completed, total int) error {
					calls++
					if completed >= 2*ShardSize {
						return stop
					}
					return nil
				},
			}
			result, err := NewEngine(nil, WithWorkers(workers)).Run(context.Background(), req)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, stop)
			assert.Less(t, calls, 10)
		})
	}
}

func TestCheckpointReportsProgress(t *testing.T) {
	var progress []int
	req := Request{
		Risks:    mixedRegister(),
		Settings: settings(2*ShardSize + 10),
		Checkpoint: func(completed, total int) error {
			assert.Equal(t, 2*ShardSize+10, total)
			progress = append(progress, completed)
			return nil
		},
	}
	_, err := NewEngine(nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []int{ShardSize, 2 * ShardSize, 2*ShardSize + 10}, progress)
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveRun(outcome string, iterations int, elapsed time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestObserverOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	engine := NewEngine(nil, WithObserver(obs))

	_, err := engine.Run(context.Background(), Request{Risks: mixedRegister(), Settings: settings(100)})
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), Request{Risks: mixedRegister(), Settings: settings(0)})
	require.Error(t, err)

	_, err = engine.Run(context.Background(), Request{
		Risks:      mixedRegister(),
		Settings:   settings(100),
		Checkpoint: func(int, int) error { return errors.New("stop") },
	})
	require.Error(t, err)

	assert.Equal(t, []string{OutcomeSuccess, OutcomeInvalid, OutcomeAborted}, obs.outcomes)
}

func TestRunWithoutRisks(t *testing.T) {
	result, err := Run(nil, settings(100), 750)
	require.NoError(t, err)
	assert.Equal(t, 750.0, result.P50)
	assert.Equal(t, 0, result.RisksAnalyzed)
	assert.Empty(t, result.Sensitivity)
}

func TestCancelledContextAbortsRun(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			result, err := NewEngine(nil, WithWorkers(workers)).Run(ctx, Request{
				Risks:    mixedRegister(),
				Settings: settings(8 * ShardSize),
			})
			assert.Nil(t, result)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
