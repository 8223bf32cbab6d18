// Package fusion joins the eight source tables into one order-centric record
// per order.
//
// Join order follows data dependencies:
//
//	orders → clients → fleet logs → drivers → warehouse logs → warehouses
//	       → weather → feedback
//
// The driver is only known once the fleet log is attached and the warehouse
// only once the warehouse log is attached. One-to-many side tables are reduced
// to a single representative row per order ("latest wins"); see reduce.go.
package fusion

import "time"

// Record is the fused, order-centric view. Fields shared by several source
// entities are prefixed with the owning role (ClientCity, DriverCity,
// WarehouseCity); City is the order's own delivery city.
//
// The fusion engine fills everything except the derived block. The diagnose
// package sets IsLate, IsFailed and ConsolidatedReason exactly once, after
// which the record is treated as immutable.
type Record struct {
	// Order
	OrderID       int64      `yaml:"order_id" json:"order_id"`
	ClientID      *string    `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	CustomerName  *string    `yaml:"customer_name,omitempty" json:"customer_name,omitempty"`
	City          *string    `yaml:"city,omitempty" json:"city,omitempty"`
	Status        *string    `yaml:"status,omitempty" json:"status,omitempty"`
	OrderDate     *time.Time `yaml:"order_date,omitempty" json:"order_date,omitempty"`
	PromisedDate  *time.Time `yaml:"promised_delivery_date,omitempty" json:"promised_delivery_date,omitempty"`
	ActualDate    *time.Time `yaml:"actual_delivery_date,omitempty" json:"actual_delivery_date,omitempty"`
	FailureReason *string    `yaml:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	// Client
	ClientName  *string `yaml:"client_name,omitempty" json:"client_name,omitempty"`
	ClientCity  *string `yaml:"client_city,omitempty" json:"client_city,omitempty"`
	ClientState *string `yaml:"client_state,omitempty" json:"client_state,omitempty"`

	// Fleet log (selected row)
	DriverID      *string    `yaml:"driver_id,omitempty" json:"driver_id,omitempty"`
	FleetLoggedAt *time.Time `yaml:"fleet_created_at,omitempty" json:"fleet_created_at,omitempty"`
	GPSDelayNotes *string    `yaml:"gps_delay_notes,omitempty" json:"gps_delay_notes,omitempty"`
	RouteCode     *string    `yaml:"route_code,omitempty" json:"route_code,omitempty"`

	// Driver
	DriverName     *string `yaml:"driver_name,omitempty" json:"driver_name,omitempty"`
	PartnerCompany *string `yaml:"partner_company,omitempty" json:"partner_company,omitempty"`
	DriverCity     *string `yaml:"driver_city,omitempty" json:"driver_city,omitempty"`

	// Warehouse log (selected row)
	WarehouseID    *string    `yaml:"warehouse_id,omitempty" json:"warehouse_id,omitempty"`
	PickingEnd     *time.Time `yaml:"picking_end,omitempty" json:"picking_end,omitempty"`
	WarehouseNotes *string    `yaml:"warehouse_notes,omitempty" json:"warehouse_notes,omitempty"`

	// Warehouse
	WarehouseName *string `yaml:"warehouse_name,omitempty" json:"warehouse_name,omitempty"`
	WarehouseCity *string `yaml:"warehouse_city,omitempty" json:"warehouse_city,omitempty"`

	// Weather / traffic / external events (selected row)
	WeatherCondition *string `yaml:"weather_condition,omitempty" json:"weather_condition,omitempty"`
	TrafficCondition *string `yaml:"traffic_condition,omitempty" json:"traffic_condition,omitempty"`
	EventType        *string `yaml:"event_type,omitempty" json:"event_type,omitempty"`

	// Feedback (selected row)
	FeedbackText *string  `yaml:"feedback_text,omitempty" json:"feedback_text,omitempty"`
	Rating       *float64 `yaml:"rating,omitempty" json:"rating,omitempty"`
	Sentiment    *string  `yaml:"sentiment,omitempty" json:"sentiment,omitempty"`

	// Derived
	IsLate             bool   `yaml:"is_late" json:"is_late"`
	IsFailed           bool   `yaml:"is_failed" json:"is_failed"`
	ConsolidatedReason string `yaml:"consolidated_reason" json:"consolidated_reason"`
}

// Problematic reports whether the order was late or failed.
func (r *Record) Problematic() bool {
	return r.IsLate || r.IsFailed
}

// Str dereferences an optional string, returning "" when absent.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
