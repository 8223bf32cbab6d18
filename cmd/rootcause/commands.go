package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rootcause/internal/apperr"
	"rootcause/internal/dataset"
	"rootcause/internal/frontmatter"
	"rootcause/internal/intent"
	"rootcause/internal/narrative"
	"rootcause/internal/pipeline"
	"rootcause/internal/query"
	"rootcause/internal/report"
)

// ---------------------------------------------------------------------------
// order
// ---------------------------------------------------------------------------

func newOrderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order <id>",
		Short: "Explain one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil {
				return apperr.Validation(fmt.Sprintf("order id %q is not an integer", args[0]))
			}
			_, eng, err := a.diagnose(cmd.Context())
			if err != nil {
				return err
			}
			a.showOrder(cmd.Context(), eng, id, fmt.Sprintf("Why was order %d late or failed?", id))
			return nil
		},
	}
}

func (a *app) showOrder(ctx context.Context, eng *query.Engine, id int64, question string) {
	rec, ok := eng.Lookup(id)
	if !ok {
		fmt.Fprintf(a.stdout, "Order %d not found.\n", id)
		return
	}
	v := query.View(rec)
	fmt.Fprint(a.stdout, renderOrder(v))
	a.augment(ctx, narrative.ForOrder(question, v))
}

// ---------------------------------------------------------------------------
// insights
// ---------------------------------------------------------------------------

func newInsightsCmd(a *app) *cobra.Command {
	var f query.Filter
	var from, to string
	var by []string
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Aggregate failure insights, optionally filtered",
		Long: `Show the top failure reasons and late rates by weather and warehouse
city. With no filter the whole dataset is summarized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if f.From, err = flagDate("from", from); err != nil {
				return err
			}
			if f.To, err = flagDate("to", to); err != nil {
				return err
			}
			dims, err := dimensions(by)
			if err != nil {
				return err
			}
			_, eng, err := a.diagnose(cmd.Context())
			if err != nil {
				return err
			}
			a.showInsights(cmd.Context(), eng, f, dims, f.Title())
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.City, "city", "", "delivery city (exact)")
	fl.StringVar(&f.Client, "client", "", "client name (substring, case-insensitive)")
	fl.StringVar(&f.Warehouse, "warehouse", "", "warehouse name or city (exact)")
	fl.StringVar(&from, "from", "", "first order date, YYYY-MM-DD")
	fl.StringVar(&to, "to", "", "last order date, YYYY-MM-DD")
	fl.StringSliceVar(&by, "by", nil, "also show late rates by this dimension (repeatable): "+strings.Join(query.DimensionNames(), ", "))
	return cmd
}

func dimensions(names []string) ([]query.Dimension, error) {
	dims := make([]query.Dimension, 0, len(names))
	for _, name := range names {
		d, ok := query.DimensionByName(strings.TrimSpace(name))
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("--by %q is not a dimension (%s)", name, strings.Join(query.DimensionNames(), ", ")))
		}
		dims = append(dims, d)
	}
	return dims, nil
}

func flagDate(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, ok := dataset.ParseDate(v)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("--%s %q is not a date (YYYY-MM-DD)", name, v))
	}
	return &t, nil
}

func (a *app) showInsights(ctx context.Context, eng *query.Engine, f query.Filter, dims []query.Dimension, question string) {
	in := eng.Insights(f)
	fmt.Fprint(a.stdout, renderInsights(in))
	if len(dims) > 0 && in.Counts.Total > 0 {
		fmt.Fprint(a.stdout, renderDimensionRates(eng.LateRates(f, dims...)))
	}
	if in.NoProblems() {
		return
	}
	a.augment(ctx, narrative.ForInsights(question, in))
}

// ---------------------------------------------------------------------------
// compare
// ---------------------------------------------------------------------------

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <cityA> <cityB>",
		Short: "Compare failure rates and reasons of two cities",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, eng, err := a.diagnose(cmd.Context())
			if err != nil {
				return err
			}
			a.showComparison(cmd.Context(), eng, args[0], args[1],
				fmt.Sprintf("Compare %s and %s", args[0], args[1]))
			return nil
		},
	}
}

func (a *app) showComparison(ctx context.Context, eng *query.Engine, cityA, cityB, question string) {
	c := eng.Compare(cityA, cityB)
	fmt.Fprint(a.stdout, renderComparison(c))
	if c.A.NoData && c.B.NoData {
		return
	}
	a.augment(ctx, narrative.ForComparison(question, c))
}

// ---------------------------------------------------------------------------
// ask
// ---------------------------------------------------------------------------

func newAskCmd(a *app) *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question in plain language",
		Long: `Route a free-text question to an order lookup, a city comparison, a
filtered analysis or the general insights.

  rootcause ask "Why was order 101 late?"
  rootcause ask compare Mumbai and Delhi

With no question on an interactive terminal, a prompt opens and stays open
until an empty line or Esc.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("strategy") {
				a.settings.Intent.Strategy = strategy
			}
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" && !a.isInteractive() {
				return apperr.Validation("no question given")
			}

			res, eng, err := a.diagnose(cmd.Context())
			if err != nil {
				return err
			}
			router, err := a.router(cmd.Context(), res)
			if err != nil {
				return err
			}

			if question != "" {
				a.answer(cmd.Context(), router, eng, question)
				return nil
			}
			for {
				q, err := a.ask(cmd.Context())
				if err != nil {
					return err
				}
				if q == "" {
					return nil
				}
				a.answer(cmd.Context(), router, eng, q)
				fmt.Fprintln(a.stdout)
			}
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "intent strategy: "+strings.Join(intent.Strategies(), ", "))
	return cmd
}

func (a *app) router(ctx context.Context, res *pipeline.Result) (intent.Router, error) {
	d := intent.Deps{Logger: a.logger}
	if res.Input != nil {
		d.Vocabulary = intent.VocabularyFrom(res.Input)
	}
	if a.settings.Intent.Strategy == intent.StrategyGenAI {
		a.connectLLM(ctx)
		if g, err := a.gen(); err != nil {
			d.GeneratorErr = err
		} else {
			d.Generator = g
		}
	}
	return intent.New(a.settings.Intent.Strategy, d)
}

func (a *app) answer(ctx context.Context, r intent.Router, eng *query.Engine, question string) {
	in := r.Route(ctx, question)
	a.logger.Debug("ask: routed", zap.String("question", question), zap.String("action", string(in.Action)), zap.String("strategy", in.Strategy))
	fmt.Fprintf(a.stdout, "%s\n\n", styleIntent.Render("→ "+in.Describe()))
	switch in.Action {
	case intent.ActionQueryOrder:
		if in.OrderRef != "" {
			fmt.Fprintf(a.stdout, "Order %s not found.\n", in.OrderRef)
			return
		}
		a.showOrder(ctx, eng, in.OrderID, question)
	case intent.ActionCompareCities:
		a.showComparison(ctx, eng, in.Cities[0], in.Cities[1], question)
	default:
		a.showInsights(ctx, eng, in.Filter, nil, question)
	}
}

func (a *app) isInteractive() bool {
	if a.interactive != nil {
		return a.interactive()
	}
	return stdinIsTerminal()
}

func (a *app) ask(ctx context.Context) (string, error) {
	if a.prompt != nil {
		return a.prompt(ctx)
	}
	return promptQuestion(ctx, a.stdin, a.stdout)
}

// ---------------------------------------------------------------------------
// report
// ---------------------------------------------------------------------------

func newReportCmd(a *app) *cobra.Command {
	var out string
	var force, render bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the full markdown report bundle",
		Long: `Write report.md and cities.md into the report directory.

An existing report is never replaced unless --force is given. When the
existing report was built from identical inputs nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("out") {
				out = a.settings.Report.Dir
			}
			res, eng, err := a.diagnose(cmd.Context())
			if err != nil {
				return err
			}
			if !force {
				fresh, err := report.UpToDate(out, res.Fingerprint)
				if err != nil {
					a.logger.Warn("report: cannot read existing report", zap.Error(err))
				}
				if fresh {
					fmt.Fprintf(a.stdout, "Report in %s is up to date.\n", out)
					return nil
				}
			}

			in := report.Input{
				Source: report.Source{
					RunID:        res.RunID,
					GeneratedAt:  res.GeneratedAt,
					InputsSHA256: res.Fingerprint,
				},
				Overview: eng.Overview(),
				Cities:   eng.Cities(),
			}
			if text, ok := a.narrative(a.settings.Report.Narrate).Augment(cmd.Context(),
				narrative.ForOverview("Summarize the main causes of delivery failures and how to reduce them.", in.Overview)); ok {
				in.Narrative = text
			}

			bundle, err := report.Build(in)
			if err != nil {
				return err
			}
			if err := report.Write(bundle, out, force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Report written to %s (%d orders).\n", out, res.Counts.Total)

			if render {
				_, body, err := frontmatter.Parse(bundle.Page(report.MainPage))
				if err != nil {
					return err
				}
				text, err := renderMarkdown(string(body))
				if err != nil {
					return err
				}
				fmt.Fprint(a.stdout, text)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&out, "out", "o", "", "report directory (default from settings)")
	fl.BoolVar(&force, "force", false, "replace an existing report")
	fl.BoolVar(&render, "render", false, "print the report rendered for the terminal")
	return cmd
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

func newExportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump every fused, diagnosed order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != pipeline.FormatYAML && format != pipeline.FormatJSON {
				return apperr.Validation(fmt.Sprintf("unknown format %q (yaml or json)", format))
			}
			res, _, err := a.diagnose(cmd.Context())
			if err != nil {
				return err
			}
			return pipeline.WriteSnapshot(a.stdout, pipeline.NewSnapshot(res), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatYAML, "yaml or json")
	return cmd
}

// augment prints a narrative when one is enabled and available.
func (a *app) augment(ctx context.Context, req narrative.Request) {
	text, ok := a.narrative(a.narrate).Augment(ctx, req)
	if !ok {
		return
	}
	fmt.Fprintf(a.stdout, "\n%s\n%s\n", styleHeading.Render("Analysis"), text)
}
