package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"rootcause/internal/query"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleHeading = lipgloss.NewStyle().Bold(true)
	styleIntent  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	styleLate    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleOnTime  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func renderOrder(v *query.OrderView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", styleTitle.Render(fmt.Sprintf("Order %d Analysis", v.OrderID)))
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%-12s %s\n", name+":", value)
		}
	}
	field("Customer", v.Customer)
	field("Client", v.Client)
	field("City", v.City)
	field("Status", v.Status)
	field("Promised", dateString(v.Promised))
	field("Actual", dateString(v.Actual))
	fmt.Fprintf(&b, "%-12s %s\n", "Performance:", performanceStyle(v.Performance).Render(v.Performance))
	field("Reason", v.Reason)

	if len(v.Factors) > 0 {
		fmt.Fprintf(&b, "\n%s\n", styleHeading.Render("Identified Factors"))
		for _, f := range v.Factors {
			fmt.Fprintf(&b, "- %s: %s\n", f.Source, f.Detail)
		}
	}
	if v.Feedback != "" {
		fmt.Fprintf(&b, "\n%s\n%q", styleHeading.Render("Customer Feedback"), v.Feedback)
		if v.Rating != nil {
			fmt.Fprintf(&b, " (Rating: %s)", strconv.FormatFloat(*v.Rating, 'f', -1, 64))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func performanceStyle(label string) lipgloss.Style {
	switch label {
	case query.LabelLate:
		return styleLate
	case query.LabelOnTime:
		return styleOnTime
	default:
		return lipgloss.NewStyle()
	}
}

func renderInsights(in *query.Insights) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", styleTitle.Render(in.Title))
	fmt.Fprintf(&b, "Orders: %d  Late: %d  Failed: %d\n", in.Counts.Total, in.Counts.Late, in.Counts.Failed)
	if in.NoProblems() {
		b.WriteString("No failures or late deliveries found in this slice.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "\n%s\n%s\n", styleHeading.Render("Top Failure Reasons"), reasonTable(in.TopReasons))
	if len(in.ByWeather) > 0 {
		fmt.Fprintf(&b, "\n%s\n%s\n", styleHeading.Render("Impact of Weather (Late Rate %)"), rateTable("Weather", in.ByWeather))
	}
	if len(in.ByWarehouse) > 0 {
		fmt.Fprintf(&b, "\n%s\n%s\n", styleHeading.Render("Warehouse Performance (Highest Late Rates)"), rateTable("Warehouse city", in.ByWarehouse))
	}
	return b.String()
}

func renderDimensionRates(rs []query.DimensionRates) string {
	var b strings.Builder
	for _, r := range rs {
		if len(r.Rates) == 0 {
			fmt.Fprintf(&b, "\n%s\nNo %s values in this slice.\n", styleHeading.Render("Late Rate by "+r.Dimension), r.Dimension)
			continue
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", styleHeading.Render("Late Rate by "+r.Dimension), rateTable(r.Dimension, r.Rates))
	}
	return b.String()
}

func renderComparison(c *query.Comparison) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", styleTitle.Render(fmt.Sprintf("Comparing %s vs %s", c.A.City, c.B.City)))
	t := newTable("City", "Orders", "Late or failed", "Rate")
	for _, s := range []query.CitySide{c.A, c.B} {
		if s.NoData {
			t.Row(s.City, "no data", "", "")
			continue
		}
		t.Row(s.City, strconv.Itoa(s.Orders), strconv.Itoa(s.Problematic), pct(s.Rate))
	}
	fmt.Fprintf(&b, "%s\n", t.String())
	for _, s := range []query.CitySide{c.A, c.B} {
		if s.NoData {
			fmt.Fprintf(&b, "\nNo data for %s\n", s.City)
			continue
		}
		if len(s.TopReasons) > 0 {
			fmt.Fprintf(&b, "\n%s\n%s\n", styleHeading.Render("Top Reasons in "+s.City), reasonTable(s.TopReasons))
		}
	}
	return b.String()
}

func reasonTable(rs []query.ReasonCount) string {
	t := newTable("Reason", "Orders")
	for _, r := range rs {
		t.Row(r.Reason, strconv.Itoa(r.Count))
	}
	return t.String()
}

func rateTable(column string, gs []query.GroupRate) string {
	t := newTable(column, "Orders", "Late", "Rate")
	for _, g := range gs {
		t.Row(g.Key, strconv.Itoa(g.Orders), strconv.Itoa(g.Hits), pct(g.Rate))
	}
	return t.String()
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// renderMarkdown styles a markdown page for the terminal.
func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return r.Render(md)
}

// stdinIsTerminal reports whether stdin is a character device.
func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
