package fusion

// Latest-wins reduction of one-to-many side tables.
//
// Each side-table row gets an ordering key (timestamp, row). For each order the
// row with the greatest key is kept:
//
//   - fleet logs:      (created_at, row)
//   - warehouse logs:  (picking_end, row)
//   - weather:         (row), no timestamp column
//   - feedback:        (row), no timestamp column
//
// Row is the 0-based position in the source file, so equal timestamps resolve
// to the row that appears later. Rows with no timestamp rank below every
// timestamped row of the same order. For weather and feedback "latest" means
// "last in file order"; that is only chronological if the extract is sorted.

import (
	"time"

	"rootcause/internal/dataset"
)

// orderingKey is the total order used to pick a representative row.
type orderingKey struct {
	ts  *time.Time
	row int
}

// before reports whether k sorts strictly before o.
func (k orderingKey) before(o orderingKey) bool {
	switch {
	case k.ts == nil && o.ts != nil:
		return true
	case k.ts != nil && o.ts == nil:
		return false
	case k.ts != nil && o.ts != nil && !k.ts.Equal(*o.ts):
		return k.ts.Before(*o.ts)
	}
	return k.row < o.row
}

// latest groups rows by order and keeps the row with the greatest key.
// The returned pointers alias rows, which must not be mutated afterwards.
func latest[T any](rows []T, key func(*T) (int64, orderingKey)) map[int64]*T {
	out := make(map[int64]*T)
	best := make(map[int64]orderingKey)
	for i := range rows {
		r := &rows[i]
		id, k := key(r)
		if cur, ok := best[id]; ok && !cur.before(k) {
			continue
		}
		out[id] = r
		best[id] = k
	}
	return out
}

func latestFleet(rows []dataset.FleetLog) map[int64]*dataset.FleetLog {
	return latest(rows, func(r *dataset.FleetLog) (int64, orderingKey) {
		return r.OrderID, orderingKey{ts: r.CreatedAt, row: r.Row}
	})
}

func latestWarehouseLog(rows []dataset.WarehouseLog) map[int64]*dataset.WarehouseLog {
	return latest(rows, func(r *dataset.WarehouseLog) (int64, orderingKey) {
		return r.OrderID, orderingKey{ts: r.PickingEnd, row: r.Row}
	})
}

func latestWeather(rows []dataset.WeatherEvent) map[int64]*dataset.WeatherEvent {
	return latest(rows, func(r *dataset.WeatherEvent) (int64, orderingKey) {
		return r.OrderID, orderingKey{row: r.Row}
	})
}

func latestFeedback(rows []dataset.Feedback) map[int64]*dataset.Feedback {
	return latest(rows, func(r *dataset.Feedback) (int64, orderingKey) {
		return r.OrderID, orderingKey{row: r.Row}
	})
}
