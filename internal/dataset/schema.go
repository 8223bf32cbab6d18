package dataset

// schema.go: column contract for each source table.
//
// Required columns must be present in the header; a missing one fails the
// load. Optional columns may be absent, in which case every value of that
// column is treated as empty and a warning is recorded. Columns not listed
// here are ignored.

// Table names double as file stems: <name>.csv.
const (
	TableOrders        = "orders"
	TableClients       = "clients"
	TableDrivers       = "drivers"
	TableWarehouses    = "warehouses"
	TableFleetLogs     = "fleet_logs"
	TableWarehouseLogs = "warehouse_logs"
	TableWeather       = "weather"
	TableFeedback      = "feedback"
)

// table describes one CSV extract and how to decode its rows into a Set.
type table struct {
	name     string
	required []string
	optional []string
	decode   func(r *row, s *Set) error
}

// tables is the single source of truth for file names, column contracts and
// decode order. Warnings and the fingerprint follow this order.
var tables = []table{
	{
		name:     TableOrders,
		required: []string{"order_id", "client_id", "status"},
		optional: []string{"customer_name", "city", "order_date", "promised_delivery_date", "actual_delivery_date", "failure_reason"},
		decode:   decodeOrder,
	},
	{
		name:     TableClients,
		required: []string{"client_id"},
		optional: []string{"client_name", "city", "state"},
		decode:   decodeClient,
	},
	{
		name:     TableDrivers,
		required: []string{"driver_id"},
		optional: []string{"driver_name", "partner_company", "city"},
		decode:   decodeDriver,
	},
	{
		name:     TableWarehouses,
		required: []string{"warehouse_id"},
		optional: []string{"warehouse_name", "city"},
		decode:   decodeWarehouse,
	},
	{
		name:     TableFleetLogs,
		required: []string{"order_id", "driver_id", "created_at"},
		optional: []string{"gps_delay_notes", "route_code"},
		decode:   decodeFleetLog,
	},
	{
		name:     TableWarehouseLogs,
		required: []string{"order_id", "warehouse_id", "picking_end"},
		optional: []string{"notes"},
		decode:   decodeWarehouseLog,
	},
	{
		name:     TableWeather,
		required: []string{"order_id"},
		optional: []string{"weather_condition", "traffic_condition", "event_type"},
		decode:   decodeWeather,
	},
	{
		name:     TableFeedback,
		required: []string{"order_id"},
		optional: []string{"feedback_text", "rating", "sentiment"},
		decode:   decodeFeedback,
	},
}

func decodeOrder(r *row, s *Set) error {
	id, ok, err := r.orderID("order_id")
	if err != nil {
		return err
	}
	if !ok {
		return r.errorf("order_id is empty")
	}
	s.Orders = append(s.Orders, Order{
		Row:           r.index,
		OrderID:       id,
		ClientID:      r.str("client_id"),
		CustomerName:  r.str("customer_name"),
		City:          r.str("city"),
		Status:        r.str("status"),
		OrderDate:     r.date("order_date"),
		PromisedDate:  r.date("promised_delivery_date"),
		ActualDate:    r.date("actual_delivery_date"),
		FailureReason: r.str("failure_reason"),
	})
	return nil
}

func decodeClient(r *row, s *Set) error {
	id := r.str("client_id")
	if id == nil {
		r.skip("client_id")
		return nil
	}
	s.Clients = append(s.Clients, Client{
		Row:      r.index,
		ClientID: *id,
		Name:     r.str("client_name"),
		City:     r.str("city"),
		State:    r.str("state"),
	})
	return nil
}

func decodeDriver(r *row, s *Set) error {
	id := r.str("driver_id")
	if id == nil {
		r.skip("driver_id")
		return nil
	}
	s.Drivers = append(s.Drivers, Driver{
		Row:            r.index,
		DriverID:       *id,
		Name:           r.str("driver_name"),
		PartnerCompany: r.str("partner_company"),
		City:           r.str("city"),
	})
	return nil
}

func decodeWarehouse(r *row, s *Set) error {
	id := r.str("warehouse_id")
	if id == nil {
		r.skip("warehouse_id")
		return nil
	}
	s.Warehouses = append(s.Warehouses, Warehouse{
		Row:         r.index,
		WarehouseID: *id,
		Name:        r.str("warehouse_name"),
		City:        r.str("city"),
	})
	return nil
}

func decodeFleetLog(r *row, s *Set) error {
	id, ok, err := r.orderID("order_id")
	if err != nil || !ok {
		return r.skipIfEmpty(ok, err)
	}
	s.FleetLogs = append(s.FleetLogs, FleetLog{
		Row:        r.index,
		OrderID:    id,
		DriverID:   r.str("driver_id"),
		CreatedAt:  r.date("created_at"),
		DelayNotes: r.str("gps_delay_notes"),
		RouteCode:  r.str("route_code"),
	})
	return nil
}

func decodeWarehouseLog(r *row, s *Set) error {
	id, ok, err := r.orderID("order_id")
	if err != nil || !ok {
		return r.skipIfEmpty(ok, err)
	}
	s.WarehouseLogs = append(s.WarehouseLogs, WarehouseLog{
		Row:         r.index,
		OrderID:     id,
		WarehouseID: r.str("warehouse_id"),
		PickingEnd:  r.date("picking_end"),
		Notes:       r.str("notes"),
	})
	return nil
}

func decodeWeather(r *row, s *Set) error {
	id, ok, err := r.orderID("order_id")
	if err != nil || !ok {
		return r.skipIfEmpty(ok, err)
	}
	s.Weather = append(s.Weather, WeatherEvent{
		Row:       r.index,
		OrderID:   id,
		Condition: r.str("weather_condition"),
		Traffic:   r.str("traffic_condition"),
		EventType: r.str("event_type"),
	})
	return nil
}

func decodeFeedback(r *row, s *Set) error {
	id, ok, err := r.orderID("order_id")
	if err != nil || !ok {
		return r.skipIfEmpty(ok, err)
	}
	s.Feedback = append(s.Feedback, Feedback{
		Row:       r.index,
		OrderID:   id,
		Text:      r.str("feedback_text"),
		Rating:    r.float("rating"),
		Sentiment: r.str("sentiment"),
	})
	return nil
}
