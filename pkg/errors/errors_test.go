package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureReporter struct {
	errs []error
}

func (c *captureReporter) Report(err error) {
	c.errs = append(c.errs, err)
}

func TestAndReportForwardsToReporters(t *testing.T) {
	t.Setenv(debugMode, "")
	resetReporters()
	defer resetReporters()
	capture := &captureReporter{}
	Register(capture)

	base := New("boom")
	err := WrapAndReport(base, "call contract")
	require.Error(t, err)
	assert.Equal(t, "call contract: boom", err.Error())
	assert.True(t, Is(err, base))
	require.Len(t, capture.errs, 1)

	assert.Nil(t, WrapAndReport(nil, "nothing"))
	assert.Len(t, capture.errs, 1)
}

func TestDebugModeSilencesReporters(t *testing.T) {
	t.Setenv(debugMode, "1")
	resetReporters()
	defer resetReporters()
	capture := &captureReporter{}
	Register(capture)

	_ = NewWithReport("quiet")
	assert.Empty(t, capture.errs)
}

func TestMarkKeepsSentinelAndCause(t *testing.T) {
	sentinel := New("user rejected")
	cause := New("code 4001")
	err := Mark(cause, sentinel)
	assert.True(t, Is(err, sentinel))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "code 4001")
	assert.Nil(t, Mark(nil, sentinel))
}

func TestRateLimiterSilencesWithinWindow(t *testing.T) {
	limiter := newRateLimiter(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limited, stats := limiter.StackBasedRateLimited("a")
	assert.False(t, limited)
	assert.Nil(t, stats.lastReportTime)

	limited, _ = limiter.StackBasedRateLimited("a")
	assert.True(t, limited)

	limited, _ = limiter.StackBasedRateLimited("b")
	assert.False(t, limited)

	now = now.Add(2 * time.Minute)
	limited, stats = limiter.StackBasedRateLimited("a")
	assert.False(t, limited)
	assert.Equal(t, 1, stats.occurCountSinceLastReport)
}

func TestOriginSkipsErrorsPackage(t *testing.T) {
	stacks := []string{
		"crowdfund.io/crowdfund-dapp/pkg/errors.report (errors.go:1)",
		"crowdfund.io/crowdfund-dapp/internal/wallet.(*Manager).Connect (session.go:10)",
	}
	assert.Contains(t, origin(stacks), "wallet")
	assert.Empty(t, origin(nil))
}

func TestAlarmLines(t *testing.T) {
	reported := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	stats := &errorStats{totalOccurCount: 4, occurCountSinceLastReport: 3, lastReportTime: &reported}
	stacks := make([]string, 20)
	for i := range stacks {
		stacks[i] = "frame"
	}

	lines := alarmLines(Wrap(New("rpc down"), "dial"), stats, stacks)
	assert.Equal(t, "Error: dial: rpc down", lines[0])
	assert.Equal(t, "\nPrevious alarm: 2024-01-01 12:30:00 UTC", lines[2])
	assert.Equal(t, "\nHeld back since then: 3 (total 5)", lines[3])
	assert.Len(t, lines, 5+maxLarkFrames)
	assert.Equal(t, "none", formatReportTime(nil))
}
