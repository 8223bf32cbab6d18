package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rootcause/internal/apperr"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fixtureFiles returns a small but complete snapshot: order 101 is late in
// a storm, 102 was cancelled, 105 has two fleet log rows.
func fixtureFiles() map[string]string {
	return map[string]string{
		"orders.csv": "order_id,client_id,customer_name,city,status,order_date,promised_delivery_date,actual_delivery_date,failure_reason,extra\n" +
			"101,C1,Asha,Mumbai,Delivered,2024-01-01,2024-01-05,2024-01-07,,x\n" +
			"102,C2,Ravi,Delhi,Cancelled,2024-01-02,2024-01-06,,Client unavailable,x\n" +
			"105,C1,Asha,Mumbai,Delivered,2024-01-03,2024-01-08,2024-01-08,,x\n",
		"clients.csv": "client_id,client_name,city,state\n" +
			"C1,Acme Retail,Mumbai,MH\n" +
			"C2,Globex,Delhi,DL\n",
		"drivers.csv": "driver_id,driver_name,partner_company,city\n" +
			"D1,Kiran,FastShip,Mumbai\n",
		"warehouses.csv": "warehouse_id,warehouse_name,city\n" +
			"W1,Warehouse 1,Pune\n",
		"fleet_logs.csv": "order_id,driver_id,created_at,gps_delay_notes,route_code\n" +
			"105,D1,2024-01-04 10:00:00,Early note,R1\n" +
			"105,D1,2024-01-05 09:00:00,Late note,R2\n",
		"warehouse_logs.csv": "order_id,warehouse_id,picking_end,notes\n" +
			"101,W1,2024-01-02 08:00:00,\n",
		"weather.csv": "order_id,weather_condition,traffic_condition,event_type\n" +
			"101,Storm,Heavy,\n",
		"feedback.csv": "order_id,feedback_text,rating,sentiment\n" +
			"101,Arrived late,2,Negative\n",
	}
}

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func load(t *testing.T, files map[string]string) (*Set, error) {
	t.Helper()
	return NewCSVDir(writeDir(t, files), nil).Load(context.Background())
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestLoad_CompleteSnapshot verifies typed decoding of every table.
func TestLoad_CompleteSnapshot(t *testing.T) {
	set, err := load(t, fixtureFiles())
	require.NoError(t, err)

	require.Len(t, set.Orders, 3)
	o := set.Orders[0]
	assert.Equal(t, int64(101), o.OrderID)
	assert.Equal(t, 0, o.Row)
	assert.Equal(t, "Delivered", *o.Status)
	assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), *o.ActualDate)
	assert.Nil(t, o.FailureReason, "empty cell must be absent")

	assert.Nil(t, set.Orders[1].ActualDate)
	assert.Equal(t, "Client unavailable", *set.Orders[1].FailureReason)

	require.Len(t, set.FleetLogs, 2)
	assert.Equal(t, 1, set.FleetLogs[1].Row)
	assert.Equal(t, "Late note", *set.FleetLogs[1].DelayNotes)

	require.Len(t, set.Feedback, 1)
	assert.Equal(t, 2.0, *set.Feedback[0].Rating)
	assert.Nil(t, set.Weather[0].EventType)

	assert.Len(t, set.Fingerprint, 64)
	assert.Empty(t, set.Warnings)
}

// TestLoad_EmbeddedQuoteInFreeText keeps stray quotes in note and feedback
// cells as literal text.
func TestLoad_EmbeddedQuoteInFreeText(t *testing.T) {
	files := fixtureFiles()
	files["feedback.csv"] = "order_id,feedback_text,rating,sentiment\n" +
		"101,Driver said \"5 minutes\" then vanished,1,Negative\n"
	files["fleet_logs.csv"] = "order_id,driver_id,created_at,gps_delay_notes,route_code\n" +
		"105,D1,2024-01-04 10:00:00,Stuck at \"Gate 3\",R1\n"

	set, err := load(t, files)
	require.NoError(t, err)
	require.Len(t, set.Feedback, 1)
	assert.Equal(t, `Driver said "5 minutes" then vanished`, *set.Feedback[0].Text)
	require.Len(t, set.FleetLogs, 1)
	assert.Equal(t, `Stuck at "Gate 3"`, *set.FleetLogs[0].DelayNotes)
}

// TestLoad_FingerprintTracksContent verifies the fingerprint is stable for
// identical input and changes when any file changes.
func TestLoad_FingerprintTracksContent(t *testing.T) {
	a, err := load(t, fixtureFiles())
	require.NoError(t, err)
	b, err := load(t, fixtureFiles())
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)

	files := fixtureFiles()
	files["weather.csv"] += "102,Clear,Light,\n"
	c, err := load(t, files)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

// TestLoad_MissingRequiredColumn verifies the load fails with a validation
// error naming the file and column.
func TestLoad_MissingRequiredColumn(t *testing.T) {
	files := fixtureFiles()
	files["fleet_logs.csv"] = "order_id,driver_id,gps_delay_notes\n105,D1,note\n"

	_, err := load(t, files)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), `fleet_logs.csv: missing required column "created_at"`)
}

// TestLoad_MissingFile verifies a missing extract is a not-found error.
func TestLoad_MissingFile(t *testing.T) {
	files := fixtureFiles()
	delete(files, "drivers.csv")

	_, err := load(t, files)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

// TestLoad_OptionalColumnAbsent verifies absence is tolerated and warned.
func TestLoad_OptionalColumnAbsent(t *testing.T) {
	files := fixtureFiles()
	files["weather.csv"] = "order_id,weather_condition\n101,Storm\n"

	set, err := load(t, files)
	require.NoError(t, err)
	assert.Nil(t, set.Weather[0].Traffic)
	assert.Contains(t, set.Warnings, `weather.csv: optional column "traffic_condition" absent; values treated as empty`)
}

// TestLoad_WarningsReturnedNotLogged leaves warning logs to the caller.
func TestLoad_WarningsReturnedNotLogged(t *testing.T) {
	files := fixtureFiles()
	files["weather.csv"] = "order_id,weather_condition\n101,Storm\n"
	core, logs := observer.New(zapcore.WarnLevel)

	set, err := NewCSVDir(writeDir(t, files), zap.New(core)).Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, set.Warnings)
	assert.Zero(t, logs.Len())
}

// TestLoad_MalformedOrderID verifies a non-integer key fails the load.
func TestLoad_MalformedOrderID(t *testing.T) {
	files := fixtureFiles()
	files["feedback.csv"] = "order_id,feedback_text,rating,sentiment\nabc,ok,5,Positive\n"

	_, err := load(t, files)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "feedback.csv line 2")
}

// TestLoad_UnparseableValuesBecomeAbsent verifies coercion of bad dates and
// ratings, and that empty side-table keys are skipped.
func TestLoad_UnparseableValuesBecomeAbsent(t *testing.T) {
	files := fixtureFiles()
	files["orders.csv"] = "order_id,client_id,status,promised_delivery_date,actual_delivery_date\n" +
		"101,C1,Delivered,soon,2024-01-07\n"
	files["feedback.csv"] = "order_id,feedback_text,rating,sentiment\n" +
		"101,meh,five,Neutral\n" +
		",orphan,1,Negative\n"

	set, err := load(t, files)
	require.NoError(t, err)
	assert.Nil(t, set.Orders[0].PromisedDate)
	assert.Nil(t, set.Feedback[0].Rating)
	assert.Len(t, set.Feedback, 1)
	assert.Contains(t, set.Warnings, `orders.csv: 1 unusable value(s) in "promised_delivery_date" treated as empty`)
	assert.Contains(t, set.Warnings, `feedback.csv: 1 unusable value(s) in "order_id" treated as empty`)
}

// TestLoad_HeaderBOMAndSpacing verifies header normalization.
func TestLoad_HeaderBOMAndSpacing(t *testing.T) {
	files := fixtureFiles()
	files["clients.csv"] = "\ufeffclient_id, client_name ,city,state\nC1,Acme Retail,Mumbai,MH\n"

	set, err := load(t, files)
	require.NoError(t, err)
	assert.Equal(t, "Acme Retail", *set.Clients[0].Name)
}

// TestLoad_IntegralFloatOrderID verifies "101.0" is accepted as 101.
func TestLoad_IntegralFloatOrderID(t *testing.T) {
	files := fixtureFiles()
	files["weather.csv"] = "order_id,weather_condition,traffic_condition,event_type\n101.0,Fog,,\n"

	set, err := load(t, files)
	require.NoError(t, err)
	assert.Equal(t, int64(101), set.Weather[0].OrderID)
}

// TestParseDate_Layouts verifies every accepted layout.
func TestParseDate_Layouts(t *testing.T) {
	for _, v := range []string{"2024-01-05", "2024-01-05 10:30:00", "2024-01-05T10:30:00", "2024-01-05T10:30:00Z", "01/05/2024", "2024/01/05"} {
		_, ok := ParseDate(v)
		assert.True(t, ok, v)
	}
	_, ok := ParseDate("5th of January")
	assert.False(t, ok)
}
