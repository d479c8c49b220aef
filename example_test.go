package corels_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/alexzheng587/corels"
	"github.com/alexzheng587/corels/dataset"
)

const (
	exampleLabels = `{label=0} 0 0 1 1 0 1
{label=1} 1 1 0 0 1 0
`
	exampleRules = `{a} 1 1 0 0 0 0
{b} 0 0 1 1 0 0
{c} 0 0 0 0 1 0
`
)

// ExampleSearch finds the best rule list of at most two clauses.
func ExampleSearch() {
	ds, err := dataset.Parse(strings.NewReader(exampleLabels), strings.NewReader(exampleRules))
	if err != nil {
		log.Fatal(err)
	}

	res, err := corels.Search(context.Background(), ds,
		corels.WithMaxPrefixLength(2),
		corels.WithGarbageCollection(corels.GCRuleSet),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("accuracy: %.3f\n", res.Accuracy)
	fmt.Println(res.Rules)
	// Output:
	// accuracy: 1.000
	// if ({a}) then (1)
	// else if ({c}) then (1)
	// else (0)
}

// ExampleNewRuleList renders an arbitrary rule list.
func ExampleNewRuleList() {
	ds, err := dataset.Parse(strings.NewReader(exampleLabels), strings.NewReader(exampleRules))
	if err != nil {
		log.Fatal(err)
	}

	rl, err := corels.NewRuleList(ds, []int{1})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(rl)
	// Output:
	// if ({b}) then (0)
	// else (1)
}
