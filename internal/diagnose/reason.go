package diagnose

import (
	"strings"

	"rootcause/internal/fusion"
)

// Fallback is emitted for a late or failed record with no detected signal.
const Fallback = "Unknown Operational Delay"

// ClauseSep joins reason clauses.
const ClauseSep = "; "

var (
	benignWeather  = map[string]bool{"Clear": true, "Sunny": true}
	adverseTraffic = map[string]bool{"Heavy": true, "Jam": true}
)

// Rule yields one labeled clause when its signal is present.
type Rule struct {
	Name   string
	Clause func(r *fusion.Record) (string, bool)
}

// Rules is the fixed priority order of reason clauses. Reports and
// aggregations depend on both the wording and the order.
var Rules = []Rule{
	{Name: "status", Clause: func(r *fusion.Record) (string, bool) {
		if !r.IsFailed || r.FailureReason == nil {
			return "", false
		}
		return "Status: " + *r.FailureReason, true
	}},
	{Name: "fleet", Clause: labeled("Fleet", func(r *fusion.Record) *string { return r.GPSDelayNotes })},
	{Name: "warehouse", Clause: labeled("Warehouse", func(r *fusion.Record) *string { return r.WarehouseNotes })},
	{Name: "weather", Clause: func(r *fusion.Record) (string, bool) {
		if r.WeatherCondition == nil || benignWeather[*r.WeatherCondition] {
			return "", false
		}
		return "Weather: " + *r.WeatherCondition, true
	}},
	{Name: "traffic", Clause: func(r *fusion.Record) (string, bool) {
		if r.TrafficCondition == nil || !adverseTraffic[*r.TrafficCondition] {
			return "", false
		}
		return "Traffic: " + *r.TrafficCondition, true
	}},
	{Name: "event", Clause: labeled("Event", func(r *fusion.Record) *string { return r.EventType })},
}

func labeled(label string, field func(*fusion.Record) *string) func(*fusion.Record) (string, bool) {
	return func(r *fusion.Record) (string, bool) {
		v := field(r)
		if v == nil {
			return "", false
		}
		return label + ": " + *v, true
	}
}

// Clauses returns the clauses produced by Rules, in priority order.
func Clauses(r *fusion.Record) []string {
	var out []string
	for _, rule := range Rules {
		if c, ok := rule.Clause(r); ok {
			out = append(out, c)
		}
	}
	return out
}

// Reason builds the consolidated reason. The flags must already be set on r.
// Signals are reported for every record; the fallback only for late or
// failed records, so an on-time record without signals gets "".
func Reason(r *fusion.Record) string {
	clauses := Clauses(r)
	if len(clauses) == 0 {
		if r.Problematic() {
			return Fallback
		}
		return ""
	}
	return strings.Join(clauses, ClauseSep)
}
