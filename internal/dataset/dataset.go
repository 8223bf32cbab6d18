// Package dataset defines the eight source tables of a logistics snapshot and
// loads them from a directory of CSV extracts.
//
// Every optional cell is a pointer: nil means the cell was empty, the column
// was absent, or a date failed to parse. Each row records its 0-based
// position in the file (Row) so downstream reductions can break ties by
// original row order.
package dataset

import (
	"context"
	"time"
)

// Order is one row of orders.csv.
type Order struct {
	Row           int
	OrderID       int64
	ClientID      *string
	CustomerName  *string
	City          *string
	Status        *string
	OrderDate     *time.Time
	PromisedDate  *time.Time
	ActualDate    *time.Time
	FailureReason *string
}

// Client is one row of clients.csv.
type Client struct {
	Row      int
	ClientID string
	Name     *string
	City     *string
	State    *string
}

// Driver is one row of drivers.csv.
type Driver struct {
	Row            int
	DriverID       string
	Name           *string
	PartnerCompany *string
	City           *string
}

// Warehouse is one row of warehouses.csv.
type Warehouse struct {
	Row         int
	WarehouseID string
	Name        *string
	City        *string
}

// FleetLog is one row of fleet_logs.csv. Zero or many per order.
type FleetLog struct {
	Row        int
	OrderID    int64
	DriverID   *string
	CreatedAt  *time.Time
	DelayNotes *string
	RouteCode  *string
}

// WarehouseLog is one row of warehouse_logs.csv. Zero or many per order.
type WarehouseLog struct {
	Row         int
	OrderID     int64
	WarehouseID *string
	PickingEnd  *time.Time
	Notes       *string
}

// WeatherEvent is one row of weather.csv. Zero or many per order.
type WeatherEvent struct {
	Row       int
	OrderID   int64
	Condition *string
	Traffic   *string
	EventType *string
}

// Feedback is one row of feedback.csv. Zero or many per order.
type Feedback struct {
	Row       int
	OrderID   int64
	Text      *string
	Rating    *float64
	Sentiment *string
}

// Set is the fully loaded, immutable snapshot handed to the fusion engine.
type Set struct {
	Orders        []Order
	Clients       []Client
	Drivers       []Driver
	Warehouses    []Warehouse
	FleetLogs     []FleetLog
	WarehouseLogs []WarehouseLog
	Weather       []WeatherEvent
	Feedback      []Feedback

	// Fingerprint is a SHA-256 over the raw input files; empty for sets
	// built in memory.
	Fingerprint string
	// Warnings lists tolerated schema or value problems (missing optional
	// columns, unparseable dates).
	Warnings []string
}

// Loader supplies a Set. Implementations must return either a complete Set or
// an error; the pipeline never reconciles partial input.
type Loader interface {
	Load(ctx context.Context) (*Set, error)
}
