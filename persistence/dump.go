package persistence

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// DumpColumns is the fixed column order of a cache dump.
var DumpColumns = []string{
	"prefix",
	"length",
	"first",
	"prediction",
	"default_rule",
	"accuracy",
	"upper_bound",
	"num_captured",
	"num_captured_correct",
}

// ErrMalformedDump is returned when a dump row cannot be parsed.
var ErrMalformedDump = errors.New("malformed cache dump")

// Row is one retained cache entry as stored in a dump.
// Prefix is empty for the root entry.
type Row struct {
	Prefix             []int
	Prediction         []bool
	DefaultRule        bool
	Accuracy           float64
	UpperBound         float64
	NumCaptured        int
	NumCapturedCorrect int
}

// Length returns the prefix length.
func (r Row) Length() int { return len(r.Prefix) }

// First returns the first rule index, or -1 for the root.
func (r Row) First() int {
	if len(r.Prefix) == 0 {
		return -1
	}
	return r.Prefix[0]
}

// DumpWriter writes rows as tab-separated text with a header line.
type DumpWriter struct {
	w      *csv.Writer
	header bool
	rows   int
}

// NewDumpWriter creates a dump writer on w.
func NewDumpWriter(w io.Writer) *DumpWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &DumpWriter{w: cw}
}

// WriteRow appends one row, writing the header first if needed.
func (dw *DumpWriter) WriteRow(r Row) error {
	if !dw.header {
		if err := dw.w.Write(DumpColumns); err != nil {
			return err
		}
		dw.header = true
	}
	dw.rows++
	return dw.w.Write([]string{
		joinInts(r.Prefix),
		strconv.Itoa(r.Length()),
		strconv.Itoa(r.First()),
		joinBools(r.Prediction),
		boolDigit(r.DefaultRule),
		strconv.FormatFloat(r.Accuracy, 'g', -1, 64),
		strconv.FormatFloat(r.UpperBound, 'g', -1, 64),
		strconv.Itoa(r.NumCaptured),
		strconv.Itoa(r.NumCapturedCorrect),
	})
}

// Rows returns the number of rows written so far.
func (dw *DumpWriter) Rows() int { return dw.rows }

// Flush writes buffered data and reports any write error.
func (dw *DumpWriter) Flush() error {
	if !dw.header {
		if err := dw.w.Write(DumpColumns); err != nil {
			return err
		}
		dw.header = true
	}
	dw.w.Flush()
	return dw.w.Error()
}

// ReadDump parses a dump written by DumpWriter.
func ReadDump(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = len(DumpColumns)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrMalformedDump)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
	}
	if !slices.Equal(header, DumpColumns) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrMalformedDump, header)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedDump, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	var (
		r   Row
		err error
	)
	if r.Prefix, err = splitInts(rec[0]); err != nil {
		return r, fmt.Errorf("prefix: %w", err)
	}
	length, err := strconv.Atoi(rec[1])
	if err != nil {
		return r, fmt.Errorf("length: %w", err)
	}
	if length != len(r.Prefix) {
		return r, fmt.Errorf("length %d does not match prefix %q", length, rec[0])
	}
	first, err := strconv.Atoi(rec[2])
	if err != nil {
		return r, fmt.Errorf("first: %w", err)
	}
	if first != r.First() {
		return r, fmt.Errorf("first %d does not match prefix %q", first, rec[0])
	}
	if r.Prediction, err = splitBools(rec[3]); err != nil {
		return r, fmt.Errorf("prediction: %w", err)
	}
	if len(r.Prediction) != len(r.Prefix) {
		return r, fmt.Errorf("prediction %q does not match prefix length %d", rec[3], len(r.Prefix))
	}
	switch rec[4] {
	case "0":
	case "1":
		r.DefaultRule = true
	default:
		return r, fmt.Errorf("default_rule: %q", rec[4])
	}
	if r.Accuracy, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return r, fmt.Errorf("accuracy: %w", err)
	}
	if r.UpperBound, err = strconv.ParseFloat(rec[6], 64); err != nil {
		return r, fmt.Errorf("upper_bound: %w", err)
	}
	if r.NumCaptured, err = strconv.Atoi(rec[7]); err != nil {
		return r, fmt.Errorf("num_captured: %w", err)
	}
	if r.NumCapturedCorrect, err = strconv.Atoi(rec[8]); err != nil {
		return r, fmt.Errorf("num_captured_correct: %w", err)
	}
	return r, nil
}

// SortRows orders rows by (length, first, prefix).
func SortRows(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(a.Length(), b.Length()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.First(), b.First()); c != 0 {
			return c
		}
		return slices.Compare(a.Prefix, b.Prefix)
	})
}

// Best returns the first row with the maximum accuracy in (length, first)
// order. rows is not modified. ok is false when rows is empty.
func Best(rows []Row) (best Row, ok bool) {
	if len(rows) == 0 {
		return Row{}, false
	}
	rows = slices.Clone(rows)
	SortRows(rows)
	best = rows[0]
	for _, r := range rows[1:] {
		if r.Accuracy > best.Accuracy {
			best = r
		}
	}
	return best, true
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func joinBools(bs []bool) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = boolDigit(b)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) ([]int, error) {
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		x, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		if x < 0 {
			return nil, fmt.Errorf("negative index %d", x)
		}
		out = append(out, x)
	}
	return out, nil
}

func splitBools(s string) ([]bool, error) {
	if s == "" {
		return []bool{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]bool, len(parts))
	for i, p := range parts {
		switch p {
		case "0":
		case "1":
			out[i] = true
		default:
			return nil, fmt.Errorf("non-binary value %q", p)
		}
	}
	return out, nil
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
