package staffplancli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phillip-england/staffplan/internal/apiapp"
	"github.com/phillip-england/staffplan/internal/config"
	"github.com/phillip-england/staffplan/internal/envutil"
	"github.com/phillip-england/staffplan/internal/planner"
	"github.com/phillip-england/staffplan/internal/roster"
)

var ErrUsage = errors.New("usage")

const syncTimeout = 2 * time.Minute

func Execute(args []string) error {
	root := newRootCmd(os.Stdout)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// PrintUsage writes the command overview to w.
func PrintUsage(w io.Writer) {
	_, _ = io.WriteString(w, newRootCmd(w).UsageString())
}

func newRootCmd(out io.Writer) *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "staffplan",
		Short:         "Seasonal staffing plans for EP and NL",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageError()
		},
	}
	root.SetOut(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env file")

	root.AddCommand(
		newSetupCmd(&envFile),
		newRunCmd(&envFile),
		newImportCmd(&envFile),
		newExportCmd(&envFile),
		newTriggersCmd(&envFile),
	)
	return root
}

func usageError() error {
	return fmt.Errorf("%w: staffplan <setup|run|import|export|triggers> [...]", ErrUsage)
}

func newSetupCmd(envFile *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a .env with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envutil.WriteDotEnv(*envFile, config.Defaults(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", *envFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing env file")
	return cmd
}

func newRunCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the API and refresh feeds on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := bootstrap(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			cl := newCronLogger(a.logger)
			c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
			if _, err := c.AddFunc(a.cfg.SyncSchedule, func() {
				syncCtx, cancel := context.WithTimeout(context.Background(), syncTimeout)
				defer cancel()
				a.svc.SyncAll(syncCtx)
			}); err != nil {
				return fmt.Errorf("invalid STAFFPLAN_SYNC_SCHEDULE %q: %w", a.cfg.SyncSchedule, err)
			}
			c.Start()
			defer c.Stop()
			a.logger.Info("feed sync scheduled", zap.String("schedule", a.cfg.SyncSchedule))

			go func() {
				syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
				defer cancel()
				a.svc.SyncAll(syncCtx)
			}()

			err = apiapp.Run(ctx, apiapp.Config{Addr: a.cfg.Addr}, a.svc, a.logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newImportCmd(envFile *string) *cobra.Command {
	var locFlag string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a daily or hourly metrics spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := roster.ParseLocation(locFlag)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := bootstrap(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			imported, err := a.svc.ImportMetrics(cmd.Context(), f, filepath.Base(args[0]), loc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d daily and %d hourly rows (%d skipped)\n",
				len(imported.Daily), len(imported.Hourly), imported.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&locFlag, "location", "", "location the rows belong to when the sheet has no location column (EP or NL)")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func newExportCmd(envFile *string) *cobra.Command {
	var (
		locFlag string
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the plan for a location to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := roster.ParseLocation(locFlag)
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			buf, filename, err := a.svc.Export(cmd.Context(), loc)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(outDir, filename)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&locFlag, "location", "", "EP or NL")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func newTriggersCmd(envFile *string) *cobra.Command {
	var (
		locFlag string
		anchor  string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Show how the seasonal trigger rules fare against observed months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := roster.ParseLocation(locFlag)
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.svc.Triggers(cmd.Context(), loc, strings.TrimSpace(anchor))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return writeTriggerReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&locFlag, "location", "", "EP or NL")
	cmd.Flags().StringVar(&anchor, "anchor", "", "anchor month (YYYY-MM) for the gap ranking")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func writeTriggerReport(out io.Writer, report planner.TriggerReport) error {
	fmt.Fprintf(out, "%s triggers (profile %s), %d observed month(s)\n\n", report.Location, report.Profile, len(report.Observed))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSITION\tHITS\tRATE\tFIRST\tLAST\tANCHOR")
	for _, e := range report.Evaluations {
		first, last := dash(e.FirstHit), dash(e.LastHit)
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\t%s\t%t\n", e.Transition, e.Hits, e.HitRate, first, last, e.AnchorHit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if report.Gap == nil {
		return nil
	}
	fmt.Fprintf(out, "\nclosest rules for %s\n", report.Gap.Month)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSITION\tMET\tSCORE\tMOVES")
	for _, g := range report.Gap.Ranked {
		var moves []string
		for _, c := range g.Conditions {
			if !c.Met {
				moves = append(moves, fmt.Sprintf("%s %+.1f", c.Metric, c.Move))
			}
		}
		fmt.Fprintf(tw, "%s\t%t\t%.3f\t%s\n", g.Transition, g.Met, g.Score, strings.Join(moves, "; "))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
