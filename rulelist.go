package corels

import (
	"fmt"
	"strings"

	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/internal/cache"
	"github.com/alexzheng587/corels/internal/search"
	"github.com/alexzheng587/corels/persistence"
)

// Clause is one "if rule then prediction" step of a rule list.
type Clause struct {
	Rule       int
	Name       string
	Prediction bool
}

// RuleList is a decision list: the first clause whose rule captures a sample
// predicts it, and samples captured by no clause get the default.
type RuleList struct {
	Clauses []Clause
	Default bool
}

// NewRuleList evaluates prefix on ds and returns its rule list.
func NewRuleList(ds *dataset.Dataset, prefix []int) (RuleList, error) {
	for _, r := range prefix {
		if r < 0 || r >= ds.NRules() {
			return RuleList{}, fmt.Errorf("rule %d out of range [0, %d)", r, ds.NRules())
		}
	}
	e, err := search.NewEvaluator(ds).EvaluatePrefix(cache.FromInts(prefix))
	if err != nil {
		return RuleList{}, err
	}
	rl := RuleList{Default: e.DefaultRule}
	for i, r := range prefix {
		rl.Clauses = append(rl.Clauses, Clause{
			Rule:       r,
			Name:       ds.Rule(r).Name,
			Prediction: e.Prediction[i],
		})
	}
	return rl, nil
}

// RuleListFromRow rebuilds the rule list of a dumped cache row. names holds
// the rule descriptors in index order.
func RuleListFromRow(row persistence.Row, names []string) (RuleList, error) {
	if len(row.Prediction) != len(row.Prefix) {
		return RuleList{}, fmt.Errorf("row has %d predictions for %d rules", len(row.Prediction), len(row.Prefix))
	}
	rl := RuleList{Default: row.DefaultRule}
	for i, r := range row.Prefix {
		if r < 0 || r >= len(names) {
			return RuleList{}, fmt.Errorf("rule %d out of range [0, %d)", r, len(names))
		}
		rl.Clauses = append(rl.Clauses, Clause{Rule: r, Name: names[r], Prediction: row.Prediction[i]})
	}
	return rl, nil
}

// Len returns the number of clauses, not counting the default.
func (rl RuleList) Len() int { return len(rl.Clauses) }

// String renders the list one clause per line:
//
//	if ({age=23-25}) then (1)
//	else if ({priors>3}) then (1)
//	else (0)
func (rl RuleList) String() string {
	var sb strings.Builder
	for i, c := range rl.Clauses {
		if i > 0 {
			sb.WriteString("else ")
		}
		fmt.Fprintf(&sb, "if (%s) then (%d)\n", c.Name, bit(c.Prediction))
	}
	if len(rl.Clauses) > 0 {
		sb.WriteString("else ")
	}
	fmt.Fprintf(&sb, "(%d)", bit(rl.Default))
	return sb.String()
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
