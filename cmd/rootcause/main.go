// Command rootcause diagnoses late and failed deliveries from a directory of
// logistics CSV exports and answers questions about them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rootcause/internal/apperr"
	"rootcause/internal/config"
	"rootcause/internal/dataset"
	"rootcause/internal/intent"
	"rootcause/internal/llm"
	"rootcause/internal/logging"
	"rootcause/internal/metrics"
	"rootcause/internal/narrative"
	"rootcause/internal/pipeline"
	"rootcause/internal/query"
)

// app carries everything one invocation shares between commands.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	// Global flags.
	dataDir     string
	configPath  string
	metricsFile string
	verbose     bool
	narrate     bool

	settings *config.Settings
	logger   *zap.Logger
	metrics  *metrics.Recorder

	// llm is nil when the client could not be built; llmErr says why.
	llm    *llm.Client
	llmErr error

	// Test seams. Nil means the production implementation.
	loader      dataset.Loader
	narrator    narrative.Narrator
	generator   llmGenerator
	interactive func() bool
	prompt      func(ctx context.Context) (string, error)
}

// llmGenerator is what the narrative and extraction layers need from a
// text-generation client.
type llmGenerator interface {
	Generate(ctx context.Context, purpose string, req llm.Request) (string, error)
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "rootcause",
		Short: "Diagnose late and failed deliveries",
		Long: `rootcause fuses orders with fleet, warehouse, weather and feedback
records, classifies each order as late or failed, and explains why.

Data is read from a directory of CSV exports (--data-dir). Settings come
from .rootcause/settings.yaml, the environment and flags, in that order.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.dataDir, "data-dir", "", "directory holding the CSV exports")
	pf.StringVar(&a.configPath, "config", config.Path("."), "settings file")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&a.narrate, "narrate", false, "add a generated narrative to the answer")

	root.AddCommand(
		newOrderCmd(a),
		newInsightsCmd(a),
		newCompareCmd(a),
		newAskCmd(a),
		newReportCmd(a),
		newExportCmd(a),
	)
	return root
}

// setup resolves settings, then builds the logger, the metrics registry and
// the text-generation client.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	s, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		s.DataDir = a.dataDir
	}
	if flags.Changed("metrics-file") {
		s.MetricsFile = a.metricsFile
	}
	if a.narrate {
		s.Report.Narrate = true
	}
	if err := s.Validate(); err != nil {
		return err
	}
	a.settings = s

	if a.logger == nil {
		a.logger, err = logging.New(logging.Options{Level: s.Log.Level, JSON: s.Log.JSON, Verbose: a.verbose})
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, "logger", err)
		}
	}
	a.metrics = metrics.New()

	if a.needsLLM() {
		a.connectLLM(cmd.Context())
	}
	return nil
}

// connectLLM builds the text-generation client once. Failure is recorded,
// not returned: callers fall back to answers without generated text.
func (a *app) connectLLM(ctx context.Context) {
	if a.generator != nil || a.llm != nil || a.llmErr != nil {
		return
	}
	a.llm, a.llmErr = llm.New(ctx, a.settings.LLM, a.logger, a.metrics)
	if a.llmErr != nil {
		a.logger.Debug("llm: client unavailable", zap.Error(a.llmErr))
	}
}

func (a *app) needsLLM() bool {
	return a.narrate || a.settings.Report.Narrate || a.settings.Intent.Strategy == intent.StrategyGenAI
}

func (a *app) teardown() error {
	if a.settings != nil && a.settings.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.settings.MetricsFile); err != nil {
			a.logger.Warn("metrics: write failed", zap.String("path", a.settings.MetricsFile), zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

// gen returns the text-generation client, or nil with the reason it is
// missing.
func (a *app) gen() (llmGenerator, error) {
	if a.generator != nil {
		return a.generator, nil
	}
	if a.llm == nil {
		if a.llmErr == nil {
			return nil, apperr.NotConfigured("text generation not requested")
		}
		return nil, a.llmErr
	}
	return a.llm, nil
}

// narrative returns the augmentation service, or nil when narration is off.
func (a *app) narrative(enabled bool) *narrative.Service {
	if !enabled {
		return nil
	}
	if a.narrator != nil {
		return narrative.NewService(a.narrator, nil, a.logger)
	}
	g, err := a.gen()
	if err != nil {
		return narrative.NewService(nil, err, a.logger)
	}
	return narrative.NewService(narrative.NewGenAINarrator(g), nil, a.logger)
}

// diagnose runs the pipeline over the configured data directory.
func (a *app) diagnose(ctx context.Context) (*pipeline.Result, *query.Engine, error) {
	loader := a.loader
	if loader == nil {
		loader = dataset.NewCSVDir(a.settings.DataDir, a.logger)
	}
	res, err := pipeline.Run(ctx, loader, pipeline.Options{
		Workers: a.settings.Workers,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return nil, nil, err
	}
	lim := query.Limits{
		TopReasons:        a.settings.Insights.TopReasons,
		TopGroups:         a.settings.Insights.TopGroups,
		CompareTopReasons: a.settings.Insights.CompareTopReasons,
		ReportTopReasons:  a.settings.Report.TopReasons,
	}
	return res, query.New(res.Store, lim), nil
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rootcause: %v\n", err)
		os.Exit(exitCode(err))
	}
}
