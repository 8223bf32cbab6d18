// Package query answers questions over a fused order store: point lookups,
// filtered aggregates, two-city comparisons and a whole-run overview.
//
// The store is immutable, so every operation is a read-only scan and an
// Engine may be shared between goroutines.
package query

import (
	"rootcause/internal/fusion"
	"rootcause/internal/store"
)

// Limits caps the size of ranked tables.
type Limits struct {
	TopReasons        int
	TopGroups         int
	CompareTopReasons int
	ReportTopReasons  int
}

// DefaultLimits matches the CLI defaults.
var DefaultLimits = Limits{TopReasons: 5, TopGroups: 5, CompareTopReasons: 3, ReportTopReasons: 20}

// Engine runs queries against one store.
type Engine struct {
	store  *store.Store
	limits Limits
}

// New returns an Engine over st.
func New(st *store.Store, limits Limits) *Engine {
	return &Engine{store: st, limits: limits}
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Lookup returns the record for id; ok is false for an unknown id.
func (e *Engine) Lookup(id int64) (rec *fusion.Record, ok bool) {
	return e.store.Get(id)
}

// Select returns the records matching f in store order.
func (e *Engine) Select(f Filter) []*fusion.Record {
	if f.IsZero() {
		return e.store.All()
	}
	return e.store.Select(f.Match)
}

// ---------------------------------------------------------------------------
// Insights
// ---------------------------------------------------------------------------

// Insights is the aggregate view of one filtered slice.
type Insights struct {
	Title       string        `yaml:"title" json:"title"`
	Filter      Filter        `yaml:"filter" json:"filter"`
	Counts      store.Counts  `yaml:"counts" json:"counts"`
	TopReasons  []ReasonCount `yaml:"top_reasons" json:"top_reasons"`
	ByWeather   []GroupRate   `yaml:"late_rate_by_weather" json:"late_rate_by_weather"`
	ByWarehouse []GroupRate   `yaml:"late_rate_by_warehouse_city" json:"late_rate_by_warehouse_city"`
}

// NoProblems reports whether the slice has no late or failed order.
func (in *Insights) NoProblems() bool {
	return in.Counts.Problematic == 0
}

// Insights aggregates the slice selected by f. Late rates are computed over
// the whole slice, reasons over its late or failed records.
func (e *Engine) Insights(f Filter) *Insights {
	recs := e.Select(f)
	return &Insights{
		Title:       f.Title(),
		Filter:      f,
		Counts:      store.Count(recs),
		TopReasons:  TopReasons(recs, e.limits.TopReasons),
		ByWeather:   LateRateBy(recs, ByWeather, e.limits.TopGroups),
		ByWarehouse: LateRateBy(recs, ByWarehouseCity, e.limits.TopGroups),
	}
}

// DimensionRates is the late rate of one slice grouped by one dimension.
type DimensionRates struct {
	Dimension string      `yaml:"dimension" json:"dimension"`
	Rates     []GroupRate `yaml:"rates" json:"rates"`
}

// LateRates groups the slice selected by f by each of dims in turn.
func (e *Engine) LateRates(f Filter, dims ...Dimension) []DimensionRates {
	recs := e.Select(f)
	out := make([]DimensionRates, len(dims))
	for i, d := range dims {
		out[i] = DimensionRates{Dimension: d.Name, Rates: LateRateBy(recs, d, e.limits.TopGroups)}
	}
	return out
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

// CitySide is one half of a comparison.
type CitySide struct {
	City        string        `yaml:"city" json:"city"`
	NoData      bool          `yaml:"no_data" json:"no_data"`
	Orders      int           `yaml:"orders" json:"orders"`
	Problematic int           `yaml:"problematic" json:"problematic"`
	Rate        float64       `yaml:"failure_rate_pct" json:"failure_rate_pct"`
	TopReasons  []ReasonCount `yaml:"top_reasons,omitempty" json:"top_reasons,omitempty"`
}

// Comparison holds both sides computed independently over the full store.
type Comparison struct {
	A CitySide `yaml:"a" json:"a"`
	B CitySide `yaml:"b" json:"b"`
}

// Compare computes failure/late rate and top reasons for two cities. A city
// with no orders is reported with NoData set instead of failing.
func (e *Engine) Compare(a, b string) *Comparison {
	return &Comparison{A: e.citySide(a), B: e.citySide(b)}
}

func (e *Engine) citySide(city string) CitySide {
	recs := e.store.Select(Filter{City: city}.Match)
	side := CitySide{City: city}
	if len(recs) == 0 {
		side.NoData = true
		return side
	}
	c := store.Count(recs)
	side.Orders = c.Total
	side.Problematic = c.Problematic
	side.Rate = percent(c.Problematic, c.Total)
	side.TopReasons = TopReasons(recs, e.limits.CompareTopReasons)
	return side
}

// ---------------------------------------------------------------------------
// Overview
// ---------------------------------------------------------------------------

// Overview summarizes the whole store for the report.
type Overview struct {
	Counts      store.Counts  `yaml:"counts" json:"counts"`
	FailureRate float64       `yaml:"failure_rate_pct" json:"failure_rate_pct"`
	TopReasons  []ReasonCount `yaml:"top_reasons" json:"top_reasons"`
	ByWeather   []GroupRate   `yaml:"late_rate_by_weather" json:"late_rate_by_weather"`
	ByWarehouse []GroupRate   `yaml:"late_rate_by_warehouse_city" json:"late_rate_by_warehouse_city"`
	ByCity      []GroupRate   `yaml:"failure_rate_by_city" json:"failure_rate_by_city"`
	ByPartner   []GroupRate   `yaml:"late_rate_by_partner" json:"late_rate_by_partner"`
}

// Overview aggregates every record. City and partner tables are not capped.
func (e *Engine) Overview() *Overview {
	recs := e.store.All()
	c := store.Count(recs)
	return &Overview{
		Counts:      c,
		FailureRate: percent(c.Problematic, c.Total),
		TopReasons:  TopReasons(recs, e.limits.ReportTopReasons),
		ByWeather:   LateRateBy(recs, ByWeather, e.limits.TopGroups),
		ByWarehouse: LateRateBy(recs, ByWarehouseCity, e.limits.TopGroups),
		ByCity:      ProblemRateBy(recs, ByCity, 0),
		ByPartner:   LateRateBy(recs, ByPartner, 0),
	}
}

// Cities returns one CitySide per city present in the store, ordered like
// ProblemRateBy: highest failure/late rate first.
func (e *Engine) Cities() []CitySide {
	rates := ProblemRateBy(e.store.All(), ByCity, 0)
	out := make([]CitySide, 0, len(rates))
	for _, g := range rates {
		out = append(out, e.citySide(g.Key))
	}
	return out
}
