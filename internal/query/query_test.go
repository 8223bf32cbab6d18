package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rootcause/internal/fusion"
	"rootcause/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func sp(s string) *string { return &s }

func day(v string) *time.Time {
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		panic(err)
	}
	return &t
}

// fixture builds an already diagnosed store:
//
//	id  city    client       warehouse         weather late failed reason
//	1   Mumbai  Acme Retail  North Hub/Pune    Storm   y    .      Weather: Storm
//	2   Mumbai  Acme Retail  North Hub/Pune    Clear   .    .
//	3   Delhi   Globex       South Hub/Delhi   Rain    y    .      Weather: Rain
//	4   Delhi   Globex       South Hub/Delhi   Storm   .    y      Status: Refused
//	5   Delhi   acme online  -                 -       y    .      Weather: Storm
//	6   Pune    -            -                 Clear   .    .
func fixture() []*fusion.Record {
	return []*fusion.Record{
		{OrderID: 1, City: sp("Mumbai"), ClientName: sp("Acme Retail"), WarehouseName: sp("North Hub"), WarehouseCity: sp("Pune"),
			WeatherCondition: sp("Storm"), Status: sp("Delivered"), OrderDate: day("2024-01-01"),
			IsLate: true, ConsolidatedReason: "Weather: Storm"},
		{OrderID: 2, City: sp("Mumbai"), ClientName: sp("Acme Retail"), WarehouseName: sp("North Hub"), WarehouseCity: sp("Pune"),
			WeatherCondition: sp("Clear"), Status: sp("Delivered"), OrderDate: day("2024-01-02")},
		{OrderID: 3, City: sp("Delhi"), ClientName: sp("Globex"), WarehouseName: sp("South Hub"), WarehouseCity: sp("Delhi"),
			WeatherCondition: sp("Rain"), Status: sp("Delivered"), OrderDate: day("2024-01-03"),
			IsLate: true, ConsolidatedReason: "Weather: Rain"},
		{OrderID: 4, City: sp("Delhi"), ClientName: sp("Globex"), WarehouseName: sp("South Hub"), WarehouseCity: sp("Delhi"),
			WeatherCondition: sp("Storm"), Status: sp("Returned"), OrderDate: day("2024-01-04"),
			IsFailed: true, ConsolidatedReason: "Status: Refused"},
		{OrderID: 5, City: sp("Delhi"), ClientName: sp("acme online"), Status: sp("Delivered"),
			IsLate: true, ConsolidatedReason: "Weather: Storm"},
		{OrderID: 6, City: sp("Pune"), WeatherCondition: sp("Clear"), Status: sp("InTransit"), OrderDate: day("2024-01-06")},
	}
}

func engine() *Engine {
	return New(store.New(fixture()), DefaultLimits)
}

func ids(recs []*fusion.Record) []int64 {
	var out []int64
	for _, r := range recs {
		out = append(out, r.OrderID)
	}
	return out
}

// ---------------------------------------------------------------------------
// Lookup and filters
// ---------------------------------------------------------------------------

// TestLookup_UnknownIsNotFound verifies a missing id is a plain false.
func TestLookup_UnknownIsNotFound(t *testing.T) {
	e := engine()
	r, ok := e.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, "Delhi", fusion.Str(r.City))

	r, ok = e.Lookup(999)
	assert.False(t, ok)
	assert.Nil(t, r)
}

// TestSelect_FiltersCompose verifies each predicate and their conjunction.
func TestSelect_FiltersCompose(t *testing.T) {
	e := engine()
	tests := []struct {
		name string
		f    Filter
		want []int64
	}{
		{"none", Filter{}, []int64{1, 2, 3, 4, 5, 6}},
		{"city exact", Filter{City: "Delhi"}, []int64{3, 4, 5}},
		{"city is case sensitive", Filter{City: "delhi"}, nil},
		{"client substring any case", Filter{Client: "ACME"}, []int64{1, 2, 5}},
		{"warehouse by name", Filter{Warehouse: "South Hub"}, []int64{3, 4}},
		{"warehouse by city", Filter{Warehouse: "Pune"}, []int64{1, 2}},
		{"city and client", Filter{City: "Delhi", Client: "acme"}, []int64{5}},
		{"date range inclusive", Filter{From: day("2024-01-02"), To: day("2024-01-04")}, []int64{2, 3, 4}},
		{"open ended from", Filter{From: day("2024-01-04")}, []int64{4, 6}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(e.Select(tc.f)))
		})
	}
}

// TestFilter_DateRangeIgnoresTimeOfDay verifies whole-day comparison.
func TestFilter_DateRangeIgnoresTimeOfDay(t *testing.T) {
	ts := time.Date(2024, 1, 4, 23, 59, 0, 0, time.UTC)
	r := &fusion.Record{OrderDate: &ts}
	assert.True(t, Filter{To: day("2024-01-04")}.Match(r))
	assert.False(t, Filter{To: day("2024-01-03")}.Match(r))
}

// TestFilter_Title names the slice.
func TestFilter_Title(t *testing.T) {
	assert.Equal(t, "Aggregate Insights", Filter{}.Title())
	assert.Equal(t, "Insights for City: Mumbai, Client: Acme", Filter{City: "Mumbai", Client: "Acme"}.Title())
	assert.Equal(t, "Insights for Dates: 2024-01-01..", Filter{From: day("2024-01-01")}.Title())
}

// ---------------------------------------------------------------------------
// Aggregates
// ---------------------------------------------------------------------------

// TestTopReasons_CountsProblematicOnly verifies frequency and tie order.
func TestTopReasons_CountsProblematicOnly(t *testing.T) {
	got := TopReasons(fixture(), 0)
	assert.Equal(t, []ReasonCount{
		{"Weather: Storm", 2},
		{"Weather: Rain", 1},
		{"Status: Refused", 1},
	}, got)
	assert.Len(t, TopReasons(fixture(), 1), 1)
	assert.Empty(t, TopReasons(fixture()[1:2], 5))
}

// TestLateRateBy_SortsWithStableTies verifies rate order and first-encounter
// tie-breaking; absent keys are skipped.
func TestLateRateBy_SortsWithStableTies(t *testing.T) {
	got := LateRateBy(fixture(), ByWeather, 0)
	assert.Equal(t, []GroupRate{
		{Key: "Rain", Orders: 1, Hits: 1, Rate: 100},
		{Key: "Storm", Orders: 2, Hits: 1, Rate: 50},
		{Key: "Clear", Orders: 2, Hits: 0, Rate: 0},
	}, got)

	ties := []*fusion.Record{
		{City: sp("B"), IsLate: true},
		{City: sp("A"), IsLate: true},
		{City: sp("C")},
	}
	got = LateRateBy(ties, ByCity, 0)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"B", "A", "C"}, []string{got[0].Key, got[1].Key, got[2].Key})
}

// TestDimensionByName resolves every listed dimension.
func TestDimensionByName(t *testing.T) {
	for _, d := range Dimensions {
		got, ok := DimensionByName(d.Name)
		require.True(t, ok)
		assert.Equal(t, d.Name, got.Name)
	}
	_, ok := DimensionByName("nope")
	assert.False(t, ok)
}

// TestLateRates_PerDimension groups one slice by several dimensions.
func TestLateRates_PerDimension(t *testing.T) {
	got := engine().LateRates(Filter{City: "Delhi"}, ByClient, ByWarehouse)
	require.Len(t, got, 2)

	assert.Equal(t, "client_name", got[0].Dimension)
	assert.Equal(t, []GroupRate{
		{Key: "acme online", Orders: 1, Hits: 1, Rate: 100},
		{Key: "Globex", Orders: 2, Hits: 1, Rate: 50},
	}, got[0].Rates)

	assert.Equal(t, "warehouse_name", got[1].Dimension)
	assert.Equal(t, []GroupRate{{Key: "South Hub", Orders: 2, Hits: 1, Rate: 50}}, got[1].Rates)
}

// TestDimensionNames matches the lookup table.
func TestDimensionNames(t *testing.T) {
	names := DimensionNames()
	require.Len(t, names, len(Dimensions))
	assert.Contains(t, names, "traffic_condition")
	assert.Contains(t, names, "partner_company")
}

// TestInsights_FilteredSlice verifies the insight bundle of one slice.
func TestInsights_FilteredSlice(t *testing.T) {
	in := engine().Insights(Filter{City: "Delhi"})
	assert.Equal(t, "Insights for City: Delhi", in.Title)
	assert.Equal(t, store.Counts{Total: 3, Late: 2, Failed: 1, Problematic: 3}, in.Counts)
	assert.False(t, in.NoProblems())
	assert.Equal(t, "Weather: Rain", in.TopReasons[0].Reason)
	require.Len(t, in.ByWarehouse, 1)
	assert.Equal(t, "Delhi", in.ByWarehouse[0].Key)

	quiet := engine().Insights(Filter{City: "Pune"})
	assert.True(t, quiet.NoProblems())
}

// ---------------------------------------------------------------------------
// Comparison and overview
// ---------------------------------------------------------------------------

// TestCompare_ComputesBothSides verifies per-city rates and reasons.
func TestCompare_ComputesBothSides(t *testing.T) {
	c := engine().Compare("Mumbai", "Delhi")
	assert.Equal(t, 2, c.A.Orders)
	assert.InDelta(t, 50.0, c.A.Rate, 1e-9)
	assert.InDelta(t, 100.0, c.B.Rate, 1e-9)
	assert.Len(t, c.B.TopReasons, 3)
	assert.False(t, c.A.NoData || c.B.NoData)
}

// TestCompare_MissingCityReportsNoData verifies one empty side does not fail
// the other.
func TestCompare_MissingCityReportsNoData(t *testing.T) {
	c := engine().Compare("Atlantis", "Mumbai")
	assert.True(t, c.A.NoData)
	assert.Equal(t, "Atlantis", c.A.City)
	assert.False(t, c.B.NoData)
	assert.Equal(t, 2, c.B.Orders)
}

// TestOverview_WholeStore verifies the report summary.
func TestOverview_WholeStore(t *testing.T) {
	o := engine().Overview()
	assert.Equal(t, 6, o.Counts.Total)
	assert.Equal(t, 4, o.Counts.Problematic)
	assert.InDelta(t, 66.666, o.FailureRate, 0.01)
	assert.Equal(t, "Delhi", o.ByCity[0].Key)
	assert.Len(t, o.ByCity, 3)
}

// TestCities_OrderedByRate verifies the per-city breakdown.
func TestCities_OrderedByRate(t *testing.T) {
	cs := engine().Cities()
	require.Len(t, cs, 3)
	assert.Equal(t, []string{"Delhi", "Mumbai", "Pune"}, []string{cs[0].City, cs[1].City, cs[2].City})
	assert.Equal(t, 3, cs[0].Problematic)
	assert.Empty(t, cs[2].TopReasons)
	assert.False(t, cs[2].NoData)
}

// ---------------------------------------------------------------------------
// Order view
// ---------------------------------------------------------------------------

// TestView_PerformanceLabels covers LATE, ON TIME and raw statuses.
func TestView_PerformanceLabels(t *testing.T) {
	recs := fixture()
	assert.Equal(t, LabelLate, View(recs[0]).Performance)
	assert.Equal(t, LabelOnTime, View(recs[1]).Performance)
	assert.Equal(t, "RETURNED", View(recs[3]).Performance)
	assert.Equal(t, "INTRANSIT", View(recs[5]).Performance)
	assert.Equal(t, LabelUnknown, View(&fusion.Record{}).Performance)
}

// TestView_ListsRawFactors verifies every signal is listed, benign or not.
func TestView_ListsRawFactors(t *testing.T) {
	rating := 2.0
	r := &fusion.Record{
		OrderID:          9,
		GPSDelayNotes:    sp("Detour"),
		WeatherCondition: sp("Clear"),
		TrafficCondition: sp("Light"),
		FeedbackText:     sp("Late again"),
		Rating:           &rating,
	}
	v := View(r)
	assert.Equal(t, []Factor{
		{"Fleet Log", "Detour"},
		{"Weather", "Clear"},
		{"Traffic", "Light"},
	}, v.Factors)
	assert.Equal(t, "Late again", v.Feedback)
	assert.Equal(t, 2.0, *v.Rating)
}
