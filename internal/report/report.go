// Package report turns a diagnosis run into a small bundle of markdown pages.
//
// Bundle layout:
//
//	report.md   overview, top reasons, late rates, narrative
//	cities.md   per-city failure/late breakdown
//
// Every page opens with frontmatter naming the run and the input
// fingerprint. Build is pure; Write puts pages on disk in sorted order so two
// writes of the same bundle are byte-identical.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rootcause/internal/apperr"
	"rootcause/internal/frontmatter"
	"rootcause/internal/query"
)

// Page paths inside a bundle.
const (
	MainPage   = "report.md"
	CitiesPage = "cities.md"
)

// ErrExists is returned by Write when the main page is already present and
// the write was not forced.
var ErrExists = errors.New("report already exists")

// Source identifies the run a bundle was built from.
type Source struct {
	RunID        string
	GeneratedAt  time.Time
	InputsSHA256 string
}

// Input is everything Build needs.
type Input struct {
	Source   Source
	Overview *query.Overview
	Cities   []query.CitySide
	// Narrative is optional prose; empty omits the analysis section.
	Narrative string
}

// Bundle holds rendered pages keyed by slash-separated relative path.
type Bundle struct {
	pages map[string][]byte
}

// Paths returns the page paths in write order.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.pages))
	for p := range b.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Page returns the rendered page at path, or nil.
func (b *Bundle) Page(path string) []byte {
	return b.pages[path]
}

// Build renders every page. No files are written.
func Build(in Input) (*Bundle, error) {
	if in.Overview == nil {
		return nil, apperr.Validation("report: overview is required")
	}
	meta := func(title string) frontmatter.Meta {
		return frontmatter.Meta{
			Title:        title,
			RunID:        in.Source.RunID,
			GeneratedAt:  in.Source.GeneratedAt,
			InputsSHA256: in.Source.InputsSHA256,
			Orders:       in.Overview.Counts.Total,
			Problematic:  in.Overview.Counts.Problematic,
		}
	}

	pages := make(map[string][]byte, 2)
	for _, p := range []struct {
		path, title, body string
	}{
		{MainPage, "Delivery Failure Report", buildMain(in)},
		{CitiesPage, "City Breakdown", buildCities(in.Cities)},
	} {
		data, err := frontmatter.Render(meta(p.title), p.body)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", p.path, err)
		}
		pages[p.path] = data
	}
	return &Bundle{pages: pages}, nil
}

// Write puts every page under dir. It refuses to replace an existing main
// page unless force is set.
func Write(b *Bundle, dir string, force bool) error {
	if !force {
		if _, err := os.Stat(filepath.Join(dir, MainPage)); err == nil {
			return apperr.Wrap(apperr.KindValidation, filepath.Join(dir, MainPage), ErrExists).WithOp("report")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for _, p := range b.Paths() {
		abs := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.WriteFile(abs, b.pages[p], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", abs, err)
		}
	}
	return nil
}

// UpToDate reports whether dir holds a main page built from the inputs with
// the given fingerprint. A missing page is not an error.
func UpToDate(dir, fingerprint string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, MainPage))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m, _, err := frontmatter.Parse(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", MainPage, err)
	}
	return fingerprint != "" && m.InputsSHA256 == fingerprint, nil
}

// ---------------------------------------------------------------------------
// Page builders
// ---------------------------------------------------------------------------

func buildMain(in Input) string {
	o := in.Overview
	var b strings.Builder
	b.WriteString("# Delivery Failure Report\n\n")
	fmt.Fprintf(&b, "- **Generated**: %s\n", in.Source.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Run**: `%s`\n", in.Source.RunID)
	fmt.Fprintf(&b, "- **Orders analyzed**: %d\n", o.Counts.Total)
	fmt.Fprintf(&b, "- **Late**: %d\n", o.Counts.Late)
	fmt.Fprintf(&b, "- **Failed**: %d\n", o.Counts.Failed)
	fmt.Fprintf(&b, "- **Failure/late rate**: %.1f%%\n\n", o.FailureRate)

	b.WriteString("## Top Reasons\n\n")
	if len(o.TopReasons) == 0 {
		b.WriteString("_No late or failed orders._\n\n")
	} else {
		b.WriteString("| Reason | Orders |\n")
		b.WriteString("|--------|--------|\n")
		for _, r := range o.TopReasons {
			fmt.Fprintf(&b, "| %s | %d |\n", cell(r.Reason), r.Count)
		}
		b.WriteString("\n")
	}

	rateTable(&b, "Late Rate by Weather", "Weather", o.ByWeather)
	rateTable(&b, "Late Rate by Warehouse City", "Warehouse city", o.ByWarehouse)
	rateTable(&b, "Late Rate by Delivery Partner", "Partner", o.ByPartner)

	if in.Narrative != "" {
		b.WriteString("## Analysis\n\n")
		b.WriteString(strings.TrimSpace(in.Narrative))
		b.WriteString("\n")
	}
	return b.String()
}

func buildCities(cities []query.CitySide) string {
	var b strings.Builder
	b.WriteString("# City Breakdown\n\n")
	if len(cities) == 0 {
		b.WriteString("_No orders._\n")
		return b.String()
	}
	b.WriteString("| City | Orders | Late or failed | Rate | Top reason |\n")
	b.WriteString("|------|--------|----------------|------|------------|\n")
	for _, c := range cities {
		top := ""
		if len(c.TopReasons) > 0 {
			top = c.TopReasons[0].Reason
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %.1f%% | %s |\n", cell(c.City), c.Orders, c.Problematic, c.Rate, cell(top))
	}
	for _, c := range cities {
		if len(c.TopReasons) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", c.City)
		for _, r := range c.TopReasons {
			fmt.Fprintf(&b, "- %s (%d)\n", r.Reason, r.Count)
		}
	}
	return b.String()
}

func rateTable(b *strings.Builder, title, column string, rows []query.GroupRate) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "| %s | Orders | Late | Rate |\n", column)
	b.WriteString("|---|---|---|---|\n")
	for _, g := range rows {
		fmt.Fprintf(b, "| %s | %d | %d | %.1f%% |\n", cell(g.Key), g.Orders, g.Hits, g.Rate)
	}
	b.WriteString("\n")
}

// cell escapes pipes so free-text values cannot break a table row.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
