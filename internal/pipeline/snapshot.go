package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"rootcause/internal/apperr"
	"rootcause/internal/fusion"
)

// SnapshotVersion is bumped when the dump layout changes.
const SnapshotVersion = 1

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Snapshot is the dump of a fused store. Field order is output order.
type Snapshot struct {
	Version      int              `yaml:"version" json:"version"`
	RunID        string           `yaml:"run_id" json:"run_id"`
	GeneratedAt  string           `yaml:"generated_at" json:"generated_at"`
	InputsSHA256 string           `yaml:"inputs_sha256,omitempty" json:"inputs_sha256,omitempty"`
	Orders       []*fusion.Record `yaml:"orders" json:"orders"`
}

// NewSnapshot captures res for export.
func NewSnapshot(res *Result) *Snapshot {
	return &Snapshot{
		Version:      SnapshotVersion,
		RunID:        res.RunID,
		GeneratedAt:  res.GeneratedAt.Format(time.RFC3339),
		InputsSHA256: res.Fingerprint,
		Orders:       res.Store.All(),
	}
}

// WriteSnapshot encodes s to w in the given format.
func WriteSnapshot(w io.Writer, s *Snapshot, format string) error {
	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		return nil
	default:
		return apperr.Validation(fmt.Sprintf("unknown export format %q (want yaml or json)", format))
	}
}
