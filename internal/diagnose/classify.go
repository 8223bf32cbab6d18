// Package diagnose derives the performance flags and the consolidated reason
// of a fused record. Everything here is a pure function of the record; no
// state is shared between records.
package diagnose

import (
	"errors"
	"fmt"

	"rootcause/internal/fusion"
)

// Order statuses referenced by the classifier. Comparisons are exact.
const (
	StatusDelivered = "Delivered"
	StatusFailed    = "Failed"
	StatusReturned  = "Returned"
	StatusCancelled = "Cancelled"
)

// failedStatuses is disjoint from StatusDelivered.
var failedStatuses = map[string]bool{
	StatusFailed:    true,
	StatusReturned:  true,
	StatusCancelled: true,
}

// ErrFlagConflict reports a record classified as both late and failed.
var ErrFlagConflict = errors.New("record is both late and failed")

// Flags is the classifier output.
type Flags struct {
	Late   bool
	Failed bool
}

// Classify computes the late and failed flags. Missing dates or status
// compare as false.
func Classify(r *fusion.Record) Flags {
	status := fusion.Str(r.Status)
	late := status == StatusDelivered &&
		r.ActualDate != nil && r.PromisedDate != nil &&
		r.ActualDate.After(*r.PromisedDate)
	return Flags{
		Late:   late,
		Failed: failedStatuses[status],
	}
}

// Apply classifies r, synthesizes its reason and stores both on the record.
// It is the only place the derived fields are written.
func Apply(r *fusion.Record) error {
	f := Classify(r)
	if f.Late && f.Failed {
		return fmt.Errorf("order %d: %w", r.OrderID, ErrFlagConflict)
	}
	r.IsLate = f.Late
	r.IsFailed = f.Failed
	r.ConsolidatedReason = Reason(r)
	return nil
}
