package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLedger() *Ledger {
	return NewLedger(Config{
		Baselines: map[models.ContentType]float64{
			models.ContentText:  0.005,
			models.ContentImage: 0.04,
		},
	}, zap.NewNop())
}

func TestLedger_OnlySuccessesMoveTotals(t *testing.T) {
	l := testLedger()

	l.Record(models.NewUsageRecord("openai", models.ContentText, 0.002, 100, true, time.Second))
	l.Record(models.NewUsageRecord("openai", models.ContentText, 0, 0, false, time.Second))

	snap := l.Snapshot(0)
	assert.Equal(t, int64(1), snap.Totals.Requests)
	assert.InDelta(t, 0.002, snap.Totals.Cost, 0.0001)
}

func TestLedger_TotalsEqualSumOfSuccessCosts(t *testing.T) {
	l := testLedger()

	costs := []float64{0.002, 0.003, 0.01}
	var sum float64
	for _, c := range costs {
		l.Record(models.NewUsageRecord("openai", models.ContentText, c, 100, true, time.Second))
		sum += c
	}

	assert.InDelta(t, sum, l.TotalCost(), 0.00001)
}

func TestLedger_SavingsAreSigned(t *testing.T) {
	l := testLedger()

	// cheaper than the 0.005 baseline: positive savings
	l.Record(models.NewUsageRecord("openai", models.ContentText, 0.002, 100, true, time.Second))
	// pricier than the baseline: negative savings
	l.Record(models.NewUsageRecord("anthropic", models.ContentText, 0.009, 100, true, time.Second))

	snap := l.Snapshot(0)
	assert.InDelta(t, 0.003, snap.ByProvider["openai"].Savings, 0.0001)
	assert.InDelta(t, -0.004, snap.ByProvider["anthropic"].Savings, 0.0001)
	assert.InDelta(t, -0.001, snap.Totals.Savings, 0.0001)
}

func TestLedger_Breakdowns(t *testing.T) {
	l := testLedger()

	l.Record(models.NewUsageRecord("openai", models.ContentText, 0.002, 100, true, time.Second))
	l.Record(models.NewUsageRecord("openai", models.ContentImage, 0.03, 1, true, time.Second))
	l.Record(models.NewUsageRecord("stability", models.ContentImage, 0.02, 1, true, time.Second))

	snap := l.Snapshot(0)

	require.Len(t, snap.ByProvider, 2)
	assert.Equal(t, int64(2), snap.ByProvider["openai"].Requests)
	assert.InDelta(t, 0.032, snap.ByProvider["openai"].Cost, 0.0001)
	assert.Equal(t, int64(1), snap.ByProvider["stability"].Requests)

	require.Len(t, snap.ByContentType, 2)
	assert.Equal(t, int64(2), snap.ByContentType[models.ContentImage].Requests)
	assert.InDelta(t, 0.05, snap.ByContentType[models.ContentImage].Cost, 0.0001)
}

func TestLedger_TimeframeFiltersEntries(t *testing.T) {
	l := testLedger()

	old := models.NewUsageRecord("openai", models.ContentText, 0.01, 100, true, time.Second)
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	l.Record(old)
	l.Record(models.NewUsageRecord("openai", models.ContentText, 0.002, 100, true, time.Second))

	hourly := l.Snapshot(time.Hour)
	assert.Equal(t, int64(1), hourly.Totals.Requests)
	assert.InDelta(t, 0.002, hourly.Totals.Cost, 0.0001)

	all := l.Snapshot(0)
	assert.Equal(t, int64(2), all.Totals.Requests)
}

func TestLedger_ProjectionsExtrapolateTimeframe(t *testing.T) {
	l := testLedger()

	l.Record(models.NewUsageRecord("openai", models.ContentText, 0.002, 100, true, time.Second))

	// 0.002 observed over one day projects linearly to each horizon
	snap := l.Snapshot(24 * time.Hour)
	assert.InDelta(t, 0.002, snap.Projections.Daily.Cost, 0.0001)
	assert.InDelta(t, 0.06, snap.Projections.Monthly.Cost, 0.0001)
	assert.InDelta(t, 0.002*365, snap.Projections.Annual.Cost, 0.0001)
	assert.InDelta(t, 0.003*30, snap.Projections.Monthly.Savings, 0.0001)
}

func TestLedger_EmptySnapshot(t *testing.T) {
	l := testLedger()

	snap := l.Snapshot(time.Hour)
	assert.Equal(t, int64(0), snap.Totals.Requests)
	assert.Zero(t, snap.Projections.Monthly.Cost)
	assert.Empty(t, snap.ByProvider)
}

func TestLedger_ConcurrentRecords(t *testing.T) {
	l := testLedger()

	var wg sync.WaitGroup
	providers := []string{"openai", "anthropic", "stability"}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Record(models.NewUsageRecord(providers[i%3], models.ContentText, 0.001, 10, true, time.Second))
		}(i)
	}
	wg.Wait()

	snap := l.Snapshot(0)
	assert.Equal(t, int64(30), snap.Totals.Requests)
	assert.InDelta(t, 0.03, snap.Totals.Cost, 0.0001)
}
