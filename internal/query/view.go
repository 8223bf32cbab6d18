package query

import (
	"strings"
	"time"

	"rootcause/internal/diagnose"
	"rootcause/internal/fusion"
)

// Performance labels shown for a single order.
const (
	LabelLate    = "LATE"
	LabelOnTime  = "ON TIME"
	LabelUnknown = "UNKNOWN"
)

// Factor is one raw signal attached to an order.
type Factor struct {
	Source string `yaml:"source" json:"source"`
	Detail string `yaml:"detail" json:"detail"`
}

// OrderView is the presentation of one order's diagnosis.
type OrderView struct {
	OrderID     int64      `yaml:"order_id" json:"order_id"`
	Customer    string     `yaml:"customer,omitempty" json:"customer,omitempty"`
	Client      string     `yaml:"client,omitempty" json:"client,omitempty"`
	City        string     `yaml:"city,omitempty" json:"city,omitempty"`
	Status      string     `yaml:"status,omitempty" json:"status,omitempty"`
	Promised    *time.Time `yaml:"promised,omitempty" json:"promised,omitempty"`
	Actual      *time.Time `yaml:"actual,omitempty" json:"actual,omitempty"`
	Performance string     `yaml:"performance" json:"performance"`
	Reason      string     `yaml:"reason,omitempty" json:"reason,omitempty"`
	Factors     []Factor   `yaml:"factors,omitempty" json:"factors,omitempty"`
	Feedback    string     `yaml:"feedback,omitempty" json:"feedback,omitempty"`
	Rating      *float64   `yaml:"rating,omitempty" json:"rating,omitempty"`
}

// View builds the order view of r. Factors list every raw signal, including
// benign weather and light traffic that the reason omits.
func View(r *fusion.Record) *OrderView {
	v := &OrderView{
		OrderID:     r.OrderID,
		Customer:    fusion.Str(r.CustomerName),
		Client:      fusion.Str(r.ClientName),
		City:        fusion.Str(r.City),
		Status:      fusion.Str(r.Status),
		Promised:    r.PromisedDate,
		Actual:      r.ActualDate,
		Performance: performance(r),
		Reason:      r.ConsolidatedReason,
		Feedback:    fusion.Str(r.FeedbackText),
		Rating:      r.Rating,
	}
	add := func(source string, p *string) {
		if p != nil {
			v.Factors = append(v.Factors, Factor{Source: source, Detail: *p})
		}
	}
	add("Fleet Log", r.GPSDelayNotes)
	add("Warehouse Log", r.WarehouseNotes)
	add("Weather", r.WeatherCondition)
	add("Traffic", r.TrafficCondition)
	add("Event", r.EventType)
	return v
}

func performance(r *fusion.Record) string {
	switch {
	case r.IsLate:
		return LabelLate
	case fusion.Str(r.Status) == diagnose.StatusDelivered:
		return LabelOnTime
	case r.Status == nil || *r.Status == "":
		return LabelUnknown
	default:
		return strings.ToUpper(*r.Status)
	}
}
