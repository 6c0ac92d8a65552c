package batch

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frota/internal/nfe/models"
	dErrors "frota/pkg/domain-errors"
	"frota/pkg/requestcontext"
)

type stubLooker struct {
	mu       sync.Mutex
	records  map[string]models.Record
	failures map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	runIDs   []string
}

func (l *stubLooker) Lookup(ctx context.Context, key string) (models.Record, bool, error) {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		peak := l.peak.Load()
		if n <= peak || l.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	l.mu.Lock()
	l.runIDs = append(l.runIDs, requestcontext.RunID(ctx))
	l.mu.Unlock()

	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return models.Record{}, false, ctx.Err()
		}
	}
	if err, ok := l.failures[key]; ok {
		return models.Record{}, false, err
	}
	rec, ok := l.records[key]
	return rec, ok, nil
}

func key(d string) string { return strings.Repeat(d, 44) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCollectsRowsInInputOrder(t *testing.T) {
	looker := &stubLooker{
		records: map[string]models.Record{
			key("1"): {Date: "01/01/2024", Amount: "10,00", Plate: "AAA1111", KM: "100"},
			key("3"): {Date: "03/01/2024", Amount: "30,00", Plate: "N/A", KM: "N/A"},
			key("4"): {Date: "04/01/2024", Amount: "40,00", Plate: "DDD4444", KM: "400"},
		},
		failures: map[string]error{
			key("2"): dErrors.New(dErrors.CodeUpstream, "document service xml endpoint returned 404"),
		},
	}
	runner, err := New(looker, "deluca", WithConcurrency(3), WithLogger(quietLogger()))
	require.NoError(t, err)

	keys := []string{key("1"), key("2"), key("3"), key("4"), key("5")}
	report, err := runner.Run(context.Background(), keys)
	require.NoError(t, err)

	require.Len(t, report.Rows, 3)
	assert.Equal(t, key("1"), report.Rows[0].AccessKey.String())
	assert.Equal(t, key("3"), report.Rows[1].AccessKey.String())
	assert.Equal(t, key("4"), report.Rows[2].AccessKey.String())
	for _, row := range report.Rows {
		assert.Equal(t, "deluca", row.Station)
	}

	require.Len(t, report.Failures, 1)
	assert.Equal(t, key("2"), report.Failures[0].AccessKey)
	assert.Equal(t, dErrors.CodeUpstream, report.Failures[0].Code)

	s := report.Summary
	assert.Equal(t, 5, s.Processed)
	assert.Equal(t, 3, s.Extracted)
	assert.Equal(t, 1, s.Absent)
	assert.Equal(t, 1, s.Failed)
	assert.NotEmpty(t, s.RunID)
}

func TestRunStampsRunIDOnEveryLookup(t *testing.T) {
	looker := &stubLooker{}
	runner, err := New(looker, "deluca", WithLogger(quietLogger()))
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), []string{key("1"), key("2"), key("3")})
	require.NoError(t, err)

	require.Len(t, looker.runIDs, 3)
	for _, id := range looker.runIDs {
		assert.Equal(t, report.Summary.RunID, id)
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	looker := &stubLooker{delay: 20 * time.Millisecond}
	runner, err := New(looker, "deluca", WithConcurrency(2), WithLogger(quietLogger()))
	require.NoError(t, err)

	keys := make([]string, 8)
	for i := range keys {
		keys[i] = key("9")
	}
	_, err = runner.Run(context.Background(), keys)
	require.NoError(t, err)
	assert.LessOrEqual(t, looker.peak.Load(), int32(2))
}

func TestRunAppliesPerKeyTimeout(t *testing.T) {
	looker := &stubLooker{delay: time.Second}
	runner, err := New(looker, "deluca", WithKeyTimeout(10*time.Millisecond), WithLogger(quietLogger()))
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), []string{key("1")})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, context.DeadlineExceeded)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	looker := &stubLooker{}
	runner, err := New(looker, "deluca", WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runner.Run(ctx, []string{key("1"), key("2")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Summary.Processed)
	assert.Empty(t, looker.runIDs)
}

func TestRunEmptyInput(t *testing.T) {
	runner, err := New(&stubLooker{}, "deluca", WithLogger(quietLogger()))
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.Zero(t, report.Summary.Processed)
}

func TestNewRequiresLooker(t *testing.T) {
	_, err := New(nil, "deluca")
	assert.Error(t, err)
}
