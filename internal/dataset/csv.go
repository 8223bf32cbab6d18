package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rootcause/internal/apperr"
)

// CSVDir loads the eight extracts from <Dir>/<table>.csv.
type CSVDir struct {
	Dir    string
	Logger *zap.Logger
}

// NewCSVDir returns a loader rooted at dir. A nil logger is replaced by a
// no-op logger.
func NewCSVDir(dir string, logger *zap.Logger) *CSVDir {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVDir{Dir: dir, Logger: logger}
}

// tableResult carries per-table side outputs merged after all tables load.
type tableResult struct {
	sha      string
	warnings []string
	rows     int
}

// Load reads all tables concurrently. Any failure aborts the whole load.
func (c *CSVDir) Load(ctx context.Context) (*Set, error) {
	set := &Set{}
	results := make([]tableResult, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	for i, tb := range tables {
		g.Go(func() error {
			// Each decode appends only to its own Set field.
			res, err := c.loadTable(ctx, tb, set)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := make([]string, len(tables))
	for i, tb := range tables {
		lines[i] = tb.name + ".csv@" + results[i].sha
		set.Warnings = append(set.Warnings, results[i].warnings...)
		c.Logger.Debug("dataset: loaded table",
			zap.String("table", tb.name),
			zap.Int("rows", results[i].rows),
			zap.Int("warnings", len(results[i].warnings)))
	}
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	set.Fingerprint = hex.EncodeToString(sum[:])
	return set, nil
}

func (c *CSVDir) loadTable(ctx context.Context, tb table, set *Set) (tableResult, error) {
	path := filepath.Join(c.Dir, tb.name+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return tableResult{}, apperr.NotFound(fmt.Sprintf("dataset %s not found at %s", tb.name, path))
	}
	if err != nil {
		return tableResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	res, err := decodeTable(ctx, tb, io.TeeReader(f, h), set)
	if err != nil {
		return tableResult{}, err
	}
	// Drain anything the CSV reader left buffered so the hash covers the file.
	if _, err := io.Copy(h, f); err != nil {
		return tableResult{}, fmt.Errorf("hash %s: %w", path, err)
	}
	res.sha = hex.EncodeToString(h.Sum(nil))
	return res, nil
}

// decodeTable parses one CSV stream according to tb's column contract.
func decodeTable(ctx context.Context, tb table, r io.Reader, set *Set) (tableResult, error) {
	file := tb.name + ".csv"
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return tableResult{}, apperr.Validation(file + ": empty file (no header)")
	}
	if err != nil {
		return tableResult{}, apperr.Wrap(apperr.KindValidation, file+": read header", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var res tableResult
	for _, col := range tb.required {
		if _, ok := cols[col]; !ok {
			return tableResult{}, apperr.Validation(fmt.Sprintf("%s: missing required column %q", file, col))
		}
	}
	for _, col := range tb.optional {
		if _, ok := cols[col]; !ok {
			res.warnings = append(res.warnings, fmt.Sprintf("%s: optional column %q absent; values treated as empty", file, col))
		}
	}

	rw := &row{file: file, cols: cols, bad: map[string]int{}}
	for {
		if err := ctx.Err(); err != nil {
			return tableResult{}, err
		}
		vals, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return tableResult{}, apperr.Wrap(apperr.KindValidation, file, err)
		}
		rw.vals = vals
		rw.line, _ = cr.FieldPos(0)
		if err := tb.decode(rw, set); err != nil {
			return tableResult{}, err
		}
		rw.index++
	}
	res.rows = rw.index

	badCols := make([]string, 0, len(rw.bad))
	for col := range rw.bad {
		badCols = append(badCols, col)
	}
	sort.Strings(badCols)
	for _, col := range badCols {
		res.warnings = append(res.warnings, fmt.Sprintf("%s: %d unusable value(s) in %q treated as empty", file, rw.bad[col], col))
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Row access
// ---------------------------------------------------------------------------

// row exposes the current CSV record by column name.
type row struct {
	file  string
	line  int // 1-based line in the file
	index int // 0-based data row position
	cols  map[string]int
	vals  []string
	bad   map[string]int // per-column count of unusable values
}

func (r *row) errorf(format string, args ...any) error {
	return apperr.Validation(fmt.Sprintf("%s line %d: %s", r.file, r.line, fmt.Sprintf(format, args...)))
}

func (r *row) raw(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.vals) {
		return ""
	}
	return strings.TrimSpace(r.vals[i])
}

// skip records a row dropped because its join key is empty.
func (r *row) skip(col string) {
	r.bad[col]++
}

// skipIfEmpty turns an empty order reference into a counted skip and passes
// parse errors through.
func (r *row) skipIfEmpty(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		r.skip("order_id")
	}
	return nil
}

// str returns the trimmed cell or nil when empty or absent.
func (r *row) str(col string) *string {
	v := r.raw(col)
	if v == "" {
		return nil
	}
	return &v
}

// orderID parses an order reference. ok is false for an empty cell.
func (r *row) orderID(col string) (int64, bool, error) {
	v := r.raw(col)
	if v == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// Integral floats ("101.0") come out of spreadsheet exports.
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, false, r.errorf("%s %q is not an integer", col, v)
		}
		id = int64(f)
	}
	return id, true, nil
}

// dateLayouts are tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"01/02/2006",
	"01/02/2006 15:04",
	"2006/01/02",
}

// ParseDate parses v with the accepted layouts. ok is false if none match.
func ParseDate(v string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (r *row) date(col string) *time.Time {
	v := r.raw(col)
	if v == "" {
		return nil
	}
	t, ok := ParseDate(v)
	if !ok {
		r.bad[col]++
		return nil
	}
	return &t
}

func (r *row) float(col string) *float64 {
	v := r.raw(col)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.bad[col]++
		return nil
	}
	return &f
}
