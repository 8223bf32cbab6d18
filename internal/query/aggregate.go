package query

import (
	"sort"

	"rootcause/internal/fusion"
)

// ReasonCount is one row of a reason frequency table.
type ReasonCount struct {
	Reason string `yaml:"reason" json:"reason"`
	Count  int    `yaml:"count" json:"count"`
}

// TopReasons counts consolidated reasons among late or failed records and
// returns the n most frequent. Equal counts keep first-encounter order.
// n <= 0 returns every reason.
func TopReasons(recs []*fusion.Record, n int) []ReasonCount {
	idx := make(map[string]int)
	var out []ReasonCount
	for _, r := range recs {
		if !r.Problematic() {
			continue
		}
		i, ok := idx[r.ConsolidatedReason]
		if !ok {
			i = len(out)
			idx[r.ConsolidatedReason] = i
			out = append(out, ReasonCount{Reason: r.ConsolidatedReason})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return head(out, n)
}

// Dimension extracts a grouping key from a record. A nil key excludes the
// record from the grouping.
type Dimension struct {
	Name string
	Key  func(r *fusion.Record) *string
}

// Grouping dimensions available to LateRateBy.
var (
	ByWeather       = Dimension{"weather_condition", func(r *fusion.Record) *string { return r.WeatherCondition }}
	ByTraffic       = Dimension{"traffic_condition", func(r *fusion.Record) *string { return r.TrafficCondition }}
	ByCity          = Dimension{"city", func(r *fusion.Record) *string { return r.City }}
	ByWarehouseCity = Dimension{"warehouse_city", func(r *fusion.Record) *string { return r.WarehouseCity }}
	ByWarehouse     = Dimension{"warehouse_name", func(r *fusion.Record) *string { return r.WarehouseName }}
	ByClient        = Dimension{"client_name", func(r *fusion.Record) *string { return r.ClientName }}
	ByPartner       = Dimension{"partner_company", func(r *fusion.Record) *string { return r.PartnerCompany }}
)

// Dimensions lists every grouping dimension by name.
var Dimensions = []Dimension{ByWeather, ByTraffic, ByCity, ByWarehouseCity, ByWarehouse, ByClient, ByPartner}

// DimensionByName looks up a grouping dimension.
func DimensionByName(name string) (Dimension, bool) {
	for _, d := range Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// DimensionNames lists the names DimensionByName accepts.
func DimensionNames() []string {
	out := make([]string, len(Dimensions))
	for i, d := range Dimensions {
		out[i] = d.Name
	}
	return out
}

// GroupRate is the share of one group's orders that were hits (late, or
// late or failed, depending on the aggregate).
type GroupRate struct {
	Key    string  `yaml:"key" json:"key"`
	Orders int     `yaml:"orders" json:"orders"`
	Hits   int     `yaml:"hits" json:"hits"`
	Rate   float64 `yaml:"rate_pct" json:"rate_pct"`
}

// LateRateBy groups recs by dim and returns late rates in percent, highest
// first. Equal rates keep the order in which groups were first encountered.
// n <= 0 returns every group.
func LateRateBy(recs []*fusion.Record, dim Dimension, n int) []GroupRate {
	return rateBy(recs, dim, n, func(r *fusion.Record) bool { return r.IsLate })
}

// ProblemRateBy is LateRateBy counting late or failed records.
func ProblemRateBy(recs []*fusion.Record, dim Dimension, n int) []GroupRate {
	return rateBy(recs, dim, n, (*fusion.Record).Problematic)
}

func rateBy(recs []*fusion.Record, dim Dimension, n int, hit func(*fusion.Record) bool) []GroupRate {
	idx := make(map[string]int)
	var out []GroupRate
	for _, r := range recs {
		k := dim.Key(r)
		if k == nil {
			continue
		}
		i, ok := idx[*k]
		if !ok {
			i = len(out)
			idx[*k] = i
			out = append(out, GroupRate{Key: *k})
		}
		out[i].Orders++
		if hit(r) {
			out[i].Hits++
		}
	}
	for i := range out {
		out[i].Rate = percent(out[i].Hits, out[i].Orders)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate > out[j].Rate })
	return head(out, n)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func head[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
