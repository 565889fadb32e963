package staffplancli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phillip-england/staffplan/internal/planner"
	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/trigger"
)

func TestExecuteWithoutCommandIsUsage(t *testing.T) {
	require.ErrorIs(t, Execute(nil), ErrUsage)
	require.ErrorIs(t, Execute([]string{"bogus"}), ErrUsage)
	require.ErrorIs(t, Execute([]string{"setup", "--nope"}), ErrUsage)
}

func TestSetupWritesEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, Execute([]string{"setup", "--env-file", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "STAFFPLAN_SYNC_SCHEDULE=")
	require.Contains(t, string(data), "STAFFPLAN_HORIZON_WEEKS=4")

	require.Error(t, Execute([]string{"setup", "--env-file", path}))
	require.NoError(t, Execute([]string{"setup", "--env-file", path, "--force"}))
}

func TestWriteTriggerReport(t *testing.T) {
	report := planner.TriggerReport{
		Location: roster.LocationEP,
		Profile:  trigger.ProfileBaseline,
		Evaluations: []trigger.Evaluation{
			{Transition: trigger.WinterToSpring, Hits: 2, HitRate: 66.7, FirstHit: "2025-03", LastHit: "2025-04", AnchorHit: true},
			{Transition: trigger.SummerToFall},
		},
		Gap: &trigger.GapReport{
			Month: "2025-04",
			Ranked: []trigger.RuleGap{{
				Transition: trigger.SpringToSummer,
				Score:      0.125,
				Conditions: []trigger.ConditionGap{{Metric: "avgDailyRevenue", Move: 650}},
			}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, writeTriggerReport(&buf, report))
	out := buf.String()
	require.Contains(t, out, "EP triggers (profile baseline)")
	require.Contains(t, out, "66.7%")
	require.Contains(t, out, "closest rules for 2025-04")
	require.Contains(t, out, "avgDailyRevenue +650.0")
}

func TestCronLoggerWritesToZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := newCronLogger(zap.New(core))

	cl.Info("skip", "job", "sync")
	cl.Error(errors.New("boom"), "panic", "job", "sync")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "cron", entries[0].LoggerName)
	require.Equal(t, "sync", entries[0].ContextMap()["job"])
	require.Equal(t, zap.ErrorLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestCronRecoverLogsPanicThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := newCronLogger(zap.New(core))

	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		panic("sync exploded")
	}))
	require.NotPanics(t, job.Run)
	require.Equal(t, 1, logs.FilterMessage("panic").Len())
}
