// Package dataset loads binary rule and label matrices into packed bit vectors.
//
// Both input files are whitespace-delimited text. Every row starts with a descriptor
// token followed by one 0/1 token per data row:
//
//	{label=0} 0 1 1 0
//	{label=1} 1 0 0 1
//
// The label file holds exactly two complementary rows; the second one marks positive
// labels. The rule file holds one row per candidate rule, and row order fixes the rule
// indices used throughout the search.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"slices"
	"strings"

	"github.com/alexzheng587/corels/internal/bitvec"
)

// ErrFormat is matched by every FormatError.
var ErrFormat = errors.New("input format error")

// FormatError reports malformed rule or label input.
type FormatError struct {
	File   string
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %s", ErrFormat, e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFormat, e.File, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Rule is one candidate rule: its index, descriptor and capture set.
type Rule struct {
	Index    int
	Name     string
	Captures *bitvec.Vector
}

// Dataset is the immutable input of a search.
type Dataset struct {
	ndata  int
	rules  []Rule
	labels *bitvec.Vector
}

// maxLineBytes bounds a single input row; ndata can be large.
const maxLineBytes = 256 << 20

// Load reads the label and rule files from disk.
func Load(labelPath, rulePath string) (*Dataset, error) {
	lf, err := os.Open(labelPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lf.Close() }()

	rf, err := os.Open(rulePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rf.Close() }()

	return parse(labelPath, lf, rulePath, rf)
}

// LoadRuleNames reads only the rule descriptors of a rule file.
func LoadRuleNames(rulePath string) ([]string, error) {
	f, err := os.Open(rulePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rows, err := readRows(rulePath, f, -1)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.name
	}
	return names, nil
}

// Parse reads label and rule matrices from readers.
func Parse(labels, rules io.Reader) (*Dataset, error) {
	return parse("labels", labels, "rules", rules)
}

func parse(labelName string, labels io.Reader, ruleName string, rules io.Reader) (*Dataset, error) {
	labelRows, err := readRows(labelName, labels, -1)
	if err != nil {
		return nil, err
	}
	if len(labelRows) != 2 {
		return nil, &FormatError{File: labelName, Reason: fmt.Sprintf("expected 2 label rows, got %d", len(labelRows))}
	}
	ndata := len(labelRows[0].bits)
	if ndata == 0 {
		return nil, &FormatError{File: labelName, Line: 1, Reason: "no data columns"}
	}
	if len(labelRows[1].bits) != ndata {
		return nil, &FormatError{File: labelName, Line: 2, Reason: fmt.Sprintf("expected %d columns, got %d", ndata, len(labelRows[1].bits))}
	}
	for i := range ndata {
		if labelRows[0].bits[i] == labelRows[1].bits[i] {
			return nil, &FormatError{File: labelName, Line: 2, Reason: fmt.Sprintf("label rows are not complementary at column %d", i+1)}
		}
	}

	ruleRows, err := readRows(ruleName, rules, ndata)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		ndata:  ndata,
		labels: bitvec.FromBools(labelRows[1].bits),
		rules:  make([]Rule, len(ruleRows)),
	}
	for i, row := range ruleRows {
		d.rules[i] = Rule{Index: i, Name: row.name, Captures: bitvec.FromBools(row.bits)}
	}
	return d, nil
}

type row struct {
	name string
	bits []bool
}

// readRows parses descriptor + 0/1 rows. width < 0 accepts any width.
func readRows(file string, r io.Reader, width int) ([]row, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var rows []row
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) == 1 {
			return nil, &FormatError{File: file, Line: line, Reason: "row has a descriptor but no data"}
		}
		if width >= 0 && len(fields)-1 != width {
			return nil, &FormatError{File: file, Line: line, Reason: fmt.Sprintf("expected %d columns, got %d", width, len(fields)-1)}
		}

		bits := make([]bool, len(fields)-1)
		for j, tok := range fields[1:] {
			switch tok {
			case "0":
			case "1":
				bits[j] = true
			default:
				return nil, &FormatError{File: file, Line: line, Reason: fmt.Sprintf("non-binary entry %q in column %d", tok, j+1)}
			}
		}
		rows = append(rows, row{name: fields[0], bits: bits})
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{File: file, Line: line + 1, Reason: err.Error()}
	}
	return rows, nil
}

// New builds a dataset in memory. names may be nil.
func New(labels []bool, rules [][]bool, names []string) (*Dataset, error) {
	if len(labels) == 0 {
		return nil, &FormatError{File: "labels", Reason: "no data columns"}
	}
	if names != nil && len(names) != len(rules) {
		return nil, &FormatError{File: "rules", Reason: fmt.Sprintf("%d names for %d rules", len(names), len(rules))}
	}

	d := &Dataset{
		ndata:  len(labels),
		labels: bitvec.FromBools(labels),
		rules:  make([]Rule, len(rules)),
	}
	for i, r := range rules {
		if len(r) != len(labels) {
			return nil, &FormatError{File: "rules", Line: i + 1, Reason: fmt.Sprintf("expected %d columns, got %d", len(labels), len(r))}
		}
		name := fmt.Sprintf("r%d", i)
		if names != nil {
			name = names[i]
		}
		d.rules[i] = Rule{Index: i, Name: name, Captures: bitvec.FromBools(r)}
	}
	return d, nil
}

// NData returns the number of data rows.
func (d *Dataset) NData() int { return d.ndata }

// NRules returns the number of candidate rules.
func (d *Dataset) NRules() int { return len(d.rules) }

// Rule returns rule i.
func (d *Dataset) Rule(i int) Rule { return d.rules[i] }

// Rules returns all rules in index order. The slice must not be modified.
func (d *Dataset) Rules() []Rule { return d.rules }

// Labels returns the positive-label vector.
func (d *Dataset) Labels() *bitvec.Vector { return d.labels }

// NumPositive returns the number of rows labeled 1.
func (d *Dataset) NumPositive() int { return d.labels.Count() }

// Names returns the rule descriptors in index order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name
	}
	return names
}

// Subsample keeps a deterministic random fraction of the rows.
// fraction <= 0 or >= 1 returns d unchanged.
func (d *Dataset) Subsample(seed int64, fraction float64) *Dataset {
	if fraction <= 0 || fraction >= 1 {
		return d
	}
	n := int(fraction * float64(d.ndata))
	if n < 1 {
		n = 1
	}

	rng := rand.New(rand.NewSource(seed))
	rows := rng.Perm(d.ndata)[:n]
	slices.Sort(rows)

	pick := func(v *bitvec.Vector) *bitvec.Vector {
		out := bitvec.New(uint(n))
		for j, r := range rows {
			if v.Test(uint(r)) {
				out.Set(uint(j))
			}
		}
		return out
	}

	s := &Dataset{
		ndata:  n,
		labels: pick(d.labels),
		rules:  make([]Rule, len(d.rules)),
	}
	for i, r := range d.rules {
		s.rules[i] = Rule{Index: r.Index, Name: r.Name, Captures: pick(r.Captures)}
	}
	return s
}
