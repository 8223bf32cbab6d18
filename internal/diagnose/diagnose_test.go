package diagnose

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rootcause/internal/fusion"
)

func sp(s string) *string { return &s }

func day(v string) *time.Time {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		panic(err)
	}
	return &t
}

// ---------------------------------------------------------------------------
// Literal scenarios
// ---------------------------------------------------------------------------

// TestApply_Scenarios covers the reference orders 101-106.
func TestApply_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		rec        fusion.Record
		wantLate   bool
		wantFailed bool
		wantReason string
	}{
		{
			name: "101 late in storm and heavy traffic",
			rec: fusion.Record{OrderID: 101, Status: sp("Delivered"),
				PromisedDate: day("2024-01-05"), ActualDate: day("2024-01-07"),
				WeatherCondition: sp("Storm"), TrafficCondition: sp("Heavy")},
			wantLate:   true,
			wantReason: "Weather: Storm; Traffic: Heavy",
		},
		{
			name:       "102 cancelled with failure reason",
			rec:        fusion.Record{OrderID: 102, Status: sp("Cancelled"), FailureReason: sp("Client unavailable")},
			wantFailed: true,
			wantReason: "Status: Client unavailable",
		},
		{
			name: "103 delivered on time without signals",
			rec: fusion.Record{OrderID: 103, Status: sp("Delivered"),
				PromisedDate: day("2024-01-05"), ActualDate: day("2024-01-05")},
			wantReason: "",
		},
		{
			name:       "104 failed with fleet note only",
			rec:        fusion.Record{OrderID: 104, Status: sp("Failed"), GPSDelayNotes: sp("GPS dead zone")},
			wantFailed: true,
			wantReason: "Fleet: GPS dead zone",
		},
		{
			name: "106 late without any signal",
			rec: fusion.Record{OrderID: 106, Status: sp("Delivered"),
				PromisedDate: day("2024-01-05"), ActualDate: day("2024-01-06")},
			wantLate:   true,
			wantReason: Fallback,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.rec
			require.NoError(t, Apply(&r))
			assert.Equal(t, tc.wantLate, r.IsLate)
			assert.Equal(t, tc.wantFailed, r.IsFailed)
			assert.Equal(t, tc.wantReason, r.ConsolidatedReason)
		})
	}
}

// ---------------------------------------------------------------------------
// Classifier
// ---------------------------------------------------------------------------

// TestClassify_AbsentValuesCompareFalse verifies missing dates never mark late.
func TestClassify_AbsentValuesCompareFalse(t *testing.T) {
	for _, r := range []fusion.Record{
		{Status: sp("Delivered"), ActualDate: day("2024-01-09")},
		{Status: sp("Delivered"), PromisedDate: day("2024-01-01")},
		{ActualDate: day("2024-01-09"), PromisedDate: day("2024-01-01")},
		{},
	} {
		f := Classify(&r)
		assert.False(t, f.Late)
		assert.False(t, f.Failed)
	}
}

// TestClassify_LateRequiresDelivered verifies a late date on another status
// does not count.
func TestClassify_LateRequiresDelivered(t *testing.T) {
	r := fusion.Record{Status: sp("Returned"), PromisedDate: day("2024-01-01"), ActualDate: day("2024-01-09")}
	f := Classify(&r)
	assert.False(t, f.Late)
	assert.True(t, f.Failed)
}

// TestClassify_StatusIsCaseSensitive verifies exact status comparison.
func TestClassify_StatusIsCaseSensitive(t *testing.T) {
	r := fusion.Record{Status: sp("cancelled")}
	assert.False(t, Classify(&r).Failed)
}

// TestClassify_FlagsNeverBothTrue sweeps statuses and date orderings.
func TestClassify_FlagsNeverBothTrue(t *testing.T) {
	statuses := []string{"Delivered", "Failed", "Returned", "Cancelled", "InTransit", ""}
	dates := [][2]*time.Time{
		{day("2024-01-01"), day("2024-01-02")},
		{day("2024-01-02"), day("2024-01-01")},
		{nil, day("2024-01-01")},
	}
	for _, s := range statuses {
		for _, d := range dates {
			r := fusion.Record{Status: sp(s), PromisedDate: d[0], ActualDate: d[1]}
			f := Classify(&r)
			assert.False(t, f.Late && f.Failed, "status %q", s)
			require.NoError(t, Apply(&r))
		}
	}
}

// ---------------------------------------------------------------------------
// Reason rules
// ---------------------------------------------------------------------------

// TestReason_ClauseOrderAcrossAllCombinations builds every present/absent
// combination of the six signals and checks clause order.
func TestReason_ClauseOrderAcrossAllCombinations(t *testing.T) {
	labels := []string{"Status", "Fleet", "Warehouse", "Weather", "Traffic", "Event"}
	for mask := 0; mask < 1<<len(labels); mask++ {
		r := fusion.Record{Status: sp("Failed"), IsFailed: true}
		var want []string
		if mask&1 != 0 {
			r.FailureReason = sp("Address not found")
			want = append(want, "Status: Address not found")
		}
		if mask&2 != 0 {
			r.GPSDelayNotes = sp("Breakdown")
			want = append(want, "Fleet: Breakdown")
		}
		if mask&4 != 0 {
			r.WarehouseNotes = sp("Stock mismatch")
			want = append(want, "Warehouse: Stock mismatch")
		}
		if mask&8 != 0 {
			r.WeatherCondition = sp("Rain")
			want = append(want, "Weather: Rain")
		}
		if mask&16 != 0 {
			r.TrafficCondition = sp("Jam")
			want = append(want, "Traffic: Jam")
		}
		if mask&32 != 0 {
			r.EventType = sp("Strike")
			want = append(want, "Event: Strike")
		}
		got := Reason(&r)
		if len(want) == 0 {
			assert.Equal(t, Fallback, got, "mask %06b", mask)
			continue
		}
		assert.Equal(t, strings.Join(want, ClauseSep), got, "mask %06b", mask)
	}
}

// TestReason_BenignAndAdverseSets verifies weather and traffic filtering.
func TestReason_BenignAndAdverseSets(t *testing.T) {
	base := fusion.Record{IsLate: true}

	r := base
	r.WeatherCondition, r.TrafficCondition = sp("Clear"), sp("Light")
	assert.Equal(t, Fallback, Reason(&r))

	r = base
	r.WeatherCondition, r.TrafficCondition = sp("Sunny"), sp("Heavy")
	assert.Equal(t, "Traffic: Heavy", Reason(&r))

	r = base
	r.WeatherCondition, r.TrafficCondition = sp("Fog"), sp("Moderate")
	assert.Equal(t, "Weather: Fog", Reason(&r))
}

// TestReason_FailureReasonNeedsFailedFlag verifies the status clause is gated
// on the failed flag.
func TestReason_FailureReasonNeedsFailedFlag(t *testing.T) {
	r := fusion.Record{IsLate: true, FailureReason: sp("ignored")}
	assert.Equal(t, Fallback, Reason(&r))
}

// TestReason_OnTimeNeverGetsFallback verifies the fallback is reserved for
// problematic records while their signals are still reported.
func TestReason_OnTimeNeverGetsFallback(t *testing.T) {
	r := fusion.Record{}
	assert.Equal(t, "", Reason(&r))

	r.EventType = sp("Festival")
	assert.Equal(t, "Event: Festival", Reason(&r))
}

// TestApply_RejectsConflictingFlags verifies the exclusivity assertion.
func TestApply_RejectsConflictingFlags(t *testing.T) {
	saved := failedStatuses
	t.Cleanup(func() { failedStatuses = saved })
	failedStatuses = map[string]bool{StatusDelivered: true}

	r := fusion.Record{OrderID: 9, Status: sp("Delivered"), PromisedDate: day("2024-01-01"), ActualDate: day("2024-01-02")}
	err := Apply(&r)
	require.ErrorIs(t, err, ErrFlagConflict)
	assert.Contains(t, err.Error(), "order 9")
	assert.Empty(t, r.ConsolidatedReason)
}
