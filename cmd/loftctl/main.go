// Command loftctl imports season files, prints reports and drives the
// season simulator against a running loftrank service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	app "github.com/okian/loftrank/internal/app"
	"github.com/okian/loftrank/internal/config"
	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/seasonsim"
	"github.com/okian/loftrank/pkg/logger"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// storeFlags select the store the local commands open.
type storeFlags struct {
	driver string
	dsn    string
}

type importFlags struct {
	storeFlags
	season string
	file   string
}

type reportFlags struct {
	storeFlags
	season string
	sort   string
	url    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		// cobra already printed the error
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logMode string
	root := &cobra.Command{
		Use:           "loftctl",
		Short:         "Import and report on racing seasons",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := logger.InitMode(logMode); err != nil {
				return codeError(3, "initialize logging: %s", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logMode, "log-mode", "prod", "Log mode: prod or dev")

	root.AddCommand(newImportCmd(), newReportCmd(), newSimulateCmd())
	return root
}

func addStoreFlags(cmd *cobra.Command, f *storeFlags) {
	cmd.Flags().StringVar(&f.driver, "driver", "", "Store driver: memory, sqlite or postgres (default from config)")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "Store DSN (default from config)")
}

func newImportCmd() *cobra.Command {
	var flags importFlags
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a season file into the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.season, "season", "", "Season to import into")
	cmd.Flags().StringVar(&flags.file, "file", "", "JSON batch file (array or {\"data\": [...]})")
	addStoreFlags(cmd, &flags.storeFlags)
	_ = cmd.MarkFlagRequired("season")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newReportCmd() *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a season report from the store or a running service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.season, "season", "", "Season to report on")
	cmd.Flags().StringVar(&flags.sort, "sort", "id", "Entry order: id or index")
	cmd.Flags().StringVar(&flags.url, "url", "", "Read from a running service instead of the store")
	addStoreFlags(cmd, &flags.storeFlags)
	_ = cmd.MarkFlagRequired("season")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	cfg := seasonsim.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a season, import it over HTTP and verify the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := seasonsim.Run(cmd.Context(), cfg)
			if err != nil {
				if errors.Is(err, seasonsim.ErrVerification) {
					return codeError(2, "%s", err)
				}
				return codeError(1, "%s", err)
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	f.StringVar(&cfg.Season, "season", cfg.Season, "Season to import into")
	f.IntVar(&cfg.Entries, "entries", cfg.Entries, "Number of entries to generate")
	f.IntVar(&cfg.Weeks, "weeks", cfg.Weeks, "Week slots per entry")
	f.IntVar(&cfg.ChunkSize, "chunk", cfg.ChunkSize, "Entries per import request")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent import requests")
	f.BoolVar(&cfg.Async, "async", cfg.Async, "Submit queued jobs instead of synchronous imports")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed (0 picks one from the clock)")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.StringVar(&cfg.OutputFile, "output", "", "Write the generated batch to this file")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log every imported chunk")
	return cmd
}

func runImport(ctx context.Context, out io.Writer, flags importFlags) error {
	data, err := os.ReadFile(flags.file)
	if err != nil {
		return codeError(3, "reading batch: %s", err)
	}
	raws, err := model.ParseRawBatch(data)
	if err != nil {
		return codeError(3, "parsing batch: %s", err)
	}

	svc, err := startLocal(ctx, flags.storeFlags)
	if err != nil {
		return err
	}
	defer svc.Stop()

	result, err := svc.ImportBatch(ctx, flags.season, raws)
	if err != nil {
		return codeError(1, "import: %s", err)
	}
	return writeJSON(out, result)
}

func runReport(ctx context.Context, out io.Writer, flags reportFlags) error {
	var byIndex bool
	switch flags.sort {
	case "", "id":
	case "index":
		byIndex = true
	default:
		return codeError(3, "unknown sort %q", flags.sort)
	}

	if flags.url != "" {
		report, err := seasonsim.NewClient(flags.url, 30*time.Second).Report(ctx, flags.season, byIndex)
		if err != nil {
			return codeError(1, "report: %s", err)
		}
		return writeJSON(out, report)
	}

	svc, err := startLocal(ctx, flags.storeFlags)
	if err != nil {
		return err
	}
	defer svc.Stop()

	report, err := svc.SeasonReport(ctx, flags.season, app.ReportOptions{SortByIndex: byIndex})
	if err != nil {
		return codeError(1, "report: %s", err)
	}
	return writeJSON(out, report)
}

// startLocal starts a service on the configured store with flag overrides.
// Only persistent stores are accepted.
func startLocal(ctx context.Context, flags storeFlags) (*app.Service, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, codeError(3, "%s", err)
	}
	if flags.driver != "" {
		cfg.StoreDriver = flags.driver
	}
	if flags.dsn != "" {
		cfg.StoreDSN = flags.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, codeError(3, "%s", err)
	}
	if cfg.StoreDriver == config.StoreMemory {
		return nil, codeError(3, "the %s store does not outlive this command; use --driver sqlite or postgres", cfg.StoreDriver)
	}

	svc := app.New(
		app.WithLogger(logger.Get().Named("loftctl")),
		app.WithStoreDriver(cfg.StoreDriver, cfg.StoreDSN),
		app.WithImportConcurrency(cfg.ImportConcurrency),
		app.WithMaxBatchSize(cfg.MaxBatchSize),
		app.WithWeekSlots(cfg.WeekSlots),
		app.WithSeasonWeekSlots(cfg.SeasonWeekSlots),
		app.WithFallbackReferenceScale(cfg.FallbackReferenceScale),
		app.WithCoefficientPlaces(cfg.CoefficientPlaces),
		app.WithWorkerCount(1),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, codeError(1, "start: %s", err)
	}
	return svc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
