package fusion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rootcause/internal/dataset"
	"rootcause/internal/shard"
)

// Side table names used in Stats.Matches.
const (
	MatchClient       = "clients"
	MatchFleetLog     = "fleet_logs"
	MatchDriver       = "drivers"
	MatchWarehouseLog = "warehouse_logs"
	MatchWarehouse    = "warehouses"
	MatchWeather      = "weather"
	MatchFeedback     = "feedback"
)

// Stats summarizes one fusion pass.
type Stats struct {
	Orders int
	// Matches counts orders that found a row in each joined table.
	Matches map[string]int
	// DuplicateOrderIDs lists order ids that occur more than once in orders.
	DuplicateOrderIDs []int64
	// DuplicateKeys counts dimension rows ignored because an earlier row had
	// the same key, per table.
	DuplicateKeys map[string]int
}

// Engine joins a dataset.Set into fused records.
type Engine struct {
	logger  *zap.Logger
	workers int
}

// NewEngine returns an Engine assembling records on up to workers goroutines.
func NewEngine(logger *zap.Logger, workers int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{logger: logger, workers: workers}
}

// indexes holds the dimension lookups and reduced side tables for one pass.
type indexes struct {
	clients    map[string]*dataset.Client
	drivers    map[string]*dataset.Driver
	warehouses map[string]*dataset.Warehouse
	fleet      map[int64]*dataset.FleetLog
	whLogs     map[int64]*dataset.WarehouseLog
	weather    map[int64]*dataset.WeatherEvent
	feedback   map[int64]*dataset.Feedback
}

// Fuse returns exactly one record per row of set.Orders, in the same order.
// Missing matches leave the corresponding fields nil; they are never errors.
func (e *Engine) Fuse(ctx context.Context, set *dataset.Set) ([]*Record, Stats, error) {
	stats := Stats{
		Orders:        len(set.Orders),
		Matches:       make(map[string]int),
		DuplicateKeys: make(map[string]int),
	}

	ix := indexes{
		clients: firstByKey(set.Clients, func(c *dataset.Client) string { return c.ClientID },
			func() { stats.DuplicateKeys[MatchClient]++ }),
		drivers: firstByKey(set.Drivers, func(d *dataset.Driver) string { return d.DriverID },
			func() { stats.DuplicateKeys[MatchDriver]++ }),
		warehouses: firstByKey(set.Warehouses, func(w *dataset.Warehouse) string { return w.WarehouseID },
			func() { stats.DuplicateKeys[MatchWarehouse]++ }),
		fleet:    latestFleet(set.FleetLogs),
		whLogs:   latestWarehouseLog(set.WarehouseLogs),
		weather:  latestWeather(set.Weather),
		feedback: latestFeedback(set.Feedback),
	}

	records := make([]*Record, len(set.Orders))
	err := shard.Each(ctx, len(set.Orders), e.workers, func(ctx context.Context, r shard.Range) error {
		for i := r.Lo; i < r.Hi; i++ {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			records[i] = ix.assemble(&set.Orders[i])
		}
		return nil
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("fuse orders: %w", err)
	}

	seen := make(map[int64]bool, len(records))
	for _, rec := range records {
		if seen[rec.OrderID] {
			stats.DuplicateOrderIDs = append(stats.DuplicateOrderIDs, rec.OrderID)
		}
		seen[rec.OrderID] = true
		countMatches(rec, stats.Matches)
	}

	if len(stats.DuplicateOrderIDs) > 0 {
		e.logger.Warn("fusion: duplicate order ids; each row kept, lookups return the first",
			zap.Int64s("order_ids", stats.DuplicateOrderIDs))
	}
	for table, n := range stats.DuplicateKeys {
		e.logger.Warn("fusion: duplicate dimension keys; first row kept",
			zap.String("table", table), zap.Int("ignored", n))
	}
	e.logger.Debug("fusion: fused orders",
		zap.Int("orders", stats.Orders),
		zap.Any("matches", stats.Matches))
	return records, stats, nil
}

// assemble builds one record following the join dependency order.
func (ix *indexes) assemble(o *dataset.Order) *Record {
	rec := &Record{
		OrderID:       o.OrderID,
		ClientID:      o.ClientID,
		CustomerName:  o.CustomerName,
		City:          o.City,
		Status:        o.Status,
		OrderDate:     o.OrderDate,
		PromisedDate:  o.PromisedDate,
		ActualDate:    o.ActualDate,
		FailureReason: o.FailureReason,
	}

	if o.ClientID != nil {
		if c, ok := ix.clients[*o.ClientID]; ok {
			rec.ClientName = c.Name
			rec.ClientCity = c.City
			rec.ClientState = c.State
		}
	}

	if f, ok := ix.fleet[o.OrderID]; ok {
		rec.DriverID = f.DriverID
		rec.FleetLoggedAt = f.CreatedAt
		rec.GPSDelayNotes = f.DelayNotes
		rec.RouteCode = f.RouteCode
	}

	// Driver identity arrives through the fleet log.
	if rec.DriverID != nil {
		if d, ok := ix.drivers[*rec.DriverID]; ok {
			rec.DriverName = d.Name
			rec.PartnerCompany = d.PartnerCompany
			rec.DriverCity = d.City
		}
	}

	if w, ok := ix.whLogs[o.OrderID]; ok {
		rec.WarehouseID = w.WarehouseID
		rec.PickingEnd = w.PickingEnd
		rec.WarehouseNotes = w.Notes
	}

	// Warehouse identity arrives through the warehouse log.
	if rec.WarehouseID != nil {
		if w, ok := ix.warehouses[*rec.WarehouseID]; ok {
			rec.WarehouseName = w.Name
			rec.WarehouseCity = w.City
		}
	}

	if w, ok := ix.weather[o.OrderID]; ok {
		rec.WeatherCondition = w.Condition
		rec.TrafficCondition = w.Traffic
		rec.EventType = w.EventType
	}

	if f, ok := ix.feedback[o.OrderID]; ok {
		rec.FeedbackText = f.Text
		rec.Rating = f.Rating
		rec.Sentiment = f.Sentiment
	}
	return rec
}

// countMatches increments per-table match counters for rec. A dimension
// counts as matched when one of its attributes was attached.
func countMatches(rec *Record, m map[string]int) {
	if rec.ClientName != nil || rec.ClientCity != nil || rec.ClientState != nil {
		m[MatchClient]++
	}
	if rec.DriverID != nil || rec.FleetLoggedAt != nil || rec.GPSDelayNotes != nil || rec.RouteCode != nil {
		m[MatchFleetLog]++
	}
	if rec.DriverName != nil || rec.PartnerCompany != nil || rec.DriverCity != nil {
		m[MatchDriver]++
	}
	if rec.WarehouseID != nil || rec.PickingEnd != nil || rec.WarehouseNotes != nil {
		m[MatchWarehouseLog]++
	}
	if rec.WarehouseName != nil || rec.WarehouseCity != nil {
		m[MatchWarehouse]++
	}
	if rec.WeatherCondition != nil || rec.TrafficCondition != nil || rec.EventType != nil {
		m[MatchWeather]++
	}
	if rec.FeedbackText != nil || rec.Rating != nil || rec.Sentiment != nil {
		m[MatchFeedback]++
	}
}

// firstByKey indexes dimension rows by key, keeping the first row per key.
func firstByKey[T any](rows []T, key func(*T) string, onDup func()) map[string]*T {
	out := make(map[string]*T, len(rows))
	for i := range rows {
		k := key(&rows[i])
		if _, ok := out[k]; ok {
			onDup()
			continue
		}
		out[k] = &rows[i]
	}
	return out
}
