// Package narrative is the boundary to the external prose generator. It
// turns query results into compact textual summaries, sends them with the
// user's question and a context label, and degrades to "no narrative" when
// the service is missing or misbehaves.
package narrative

import (
	"fmt"
	"strings"

	"rootcause/internal/query"
)

// Context labels sent with each request.
const (
	ContextOrder      = "order"
	ContextInsights   = "insights"
	ContextComparison = "comparison"
	ContextOverview   = "overview"
)

// Request is what the narrative service receives.
type Request struct {
	Question string
	Summary  string
	Context  string
}

// ForOrder summarizes one order's diagnosis.
func ForOrder(question string, v *query.OrderView) Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %d: status %s, performance %s.\n", v.OrderID, orNone(v.Status), v.Performance)
	if v.Promised != nil {
		fmt.Fprintf(&b, "Promised %s", v.Promised.Format("2006-01-02"))
		if v.Actual != nil {
			fmt.Fprintf(&b, ", delivered %s", v.Actual.Format("2006-01-02"))
		}
		b.WriteString(".\n")
	}
	if v.Reason != "" {
		fmt.Fprintf(&b, "Consolidated reason: %s.\n", v.Reason)
	}
	for _, f := range v.Factors {
		fmt.Fprintf(&b, "- %s: %s\n", f.Source, f.Detail)
	}
	if v.Feedback != "" {
		fmt.Fprintf(&b, "Customer feedback: %q", v.Feedback)
		if v.Rating != nil {
			fmt.Fprintf(&b, " (rating %.1f)", *v.Rating)
		}
		b.WriteString("\n")
	}
	return Request{Question: question, Summary: b.String(), Context: ContextOrder}
}

// ForInsights summarizes an aggregate slice.
func ForInsights(question string, in *query.Insights) Request {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d orders, %d late, %d failed.\n", in.Title, in.Counts.Total, in.Counts.Late, in.Counts.Failed)
	writeReasons(&b, "Top reasons", in.TopReasons)
	writeRates(&b, "Late rate by weather", in.ByWeather)
	writeRates(&b, "Late rate by warehouse city", in.ByWarehouse)
	return Request{Question: question, Summary: b.String(), Context: ContextInsights}
}

// ForComparison summarizes a two-city comparison.
func ForComparison(question string, c *query.Comparison) Request {
	var b strings.Builder
	for _, side := range []query.CitySide{c.A, c.B} {
		if side.NoData {
			fmt.Fprintf(&b, "%s: no data.\n", side.City)
			continue
		}
		fmt.Fprintf(&b, "%s: %d orders, failure/late rate %.1f%%.\n", side.City, side.Orders, side.Rate)
		writeReasons(&b, "Top reasons in "+side.City, side.TopReasons)
	}
	return Request{Question: question, Summary: b.String(), Context: ContextComparison}
}

// ForOverview summarizes the whole run for the report.
func ForOverview(question string, o *query.Overview) Request {
	var b strings.Builder
	fmt.Fprintf(&b, "%d orders analyzed, %d late, %d failed (%.1f%% problematic).\n",
		o.Counts.Total, o.Counts.Late, o.Counts.Failed, o.FailureRate)
	writeReasons(&b, "Top reasons", head(o.TopReasons, 10))
	writeRates(&b, "Late rate by weather", o.ByWeather)
	writeRates(&b, "Failure/late rate by city", head(o.ByCity, 10))
	return Request{Question: question, Summary: b.String(), Context: ContextOverview}
}

func writeReasons(b *strings.Builder, title string, rs []query.ReasonCount) {
	if len(rs) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, r := range rs {
		fmt.Fprintf(b, "- %s (%d)\n", r.Reason, r.Count)
	}
}

func writeRates(b *strings.Builder, title string, gs []query.GroupRate) {
	if len(gs) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, g := range gs {
		fmt.Fprintf(b, "- %s: %.1f%% of %d\n", g.Key, g.Rate, g.Orders)
	}
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
