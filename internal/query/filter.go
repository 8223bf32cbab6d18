package query

import (
	"fmt"
	"strings"
	"time"

	"rootcause/internal/fusion"
)

// Filter is a conjunction of optional predicates. The zero Filter matches
// every record.
type Filter struct {
	// City matches the order's delivery city exactly.
	City string `yaml:"city,omitempty" json:"city,omitempty"`
	// Client matches the client name as a case-insensitive substring.
	Client string `yaml:"client,omitempty" json:"client,omitempty"`
	// Warehouse matches the warehouse name or the warehouse city exactly.
	Warehouse string `yaml:"warehouse,omitempty" json:"warehouse,omitempty"`
	// From and To bound the order date by calendar day, inclusive. Records
	// without an order date never match a bounded filter.
	From *time.Time `yaml:"from,omitempty" json:"from,omitempty"`
	To   *time.Time `yaml:"to,omitempty" json:"to,omitempty"`
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f.City == "" && f.Client == "" && f.Warehouse == "" && f.From == nil && f.To == nil
}

// Match reports whether r satisfies every set predicate.
func (f Filter) Match(r *fusion.Record) bool {
	if f.City != "" && fusion.Str(r.City) != f.City {
		return false
	}
	if f.Client != "" {
		if r.ClientName == nil || !strings.Contains(strings.ToLower(*r.ClientName), strings.ToLower(f.Client)) {
			return false
		}
	}
	if f.Warehouse != "" {
		if fusion.Str(r.WarehouseName) != f.Warehouse && fusion.Str(r.WarehouseCity) != f.Warehouse {
			return false
		}
	}
	if f.From != nil || f.To != nil {
		if r.OrderDate == nil {
			return false
		}
		d := civil(*r.OrderDate)
		if f.From != nil && d.Before(civil(*f.From)) {
			return false
		}
		if f.To != nil && d.After(civil(*f.To)) {
			return false
		}
	}
	return true
}

// Title names the slice a filter selects, e.g.
// "Insights for City: Mumbai, Client: Acme".
func (f Filter) Title() string {
	if f.IsZero() {
		return "Aggregate Insights"
	}
	var parts []string
	if f.City != "" {
		parts = append(parts, "City: "+f.City)
	}
	if f.Client != "" {
		parts = append(parts, "Client: "+f.Client)
	}
	if f.Warehouse != "" {
		parts = append(parts, "Warehouse: "+f.Warehouse)
	}
	if f.From != nil || f.To != nil {
		parts = append(parts, fmt.Sprintf("Dates: %s..%s", dayString(f.From), dayString(f.To)))
	}
	return "Insights for " + strings.Join(parts, ", ")
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
