package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alexzheng587/corels"
	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/persistence"
)

func newInspectCmd() *cobra.Command {
	var storeURL, name, rules string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a saved run, or list runs when --name is omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), storeURL, name, rules)
		},
	}
	cmd.Flags().StringVar(&storeURL, "out", "", "run store URL")
	cmd.Flags().StringVar(&name, "name", "", "run name")
	cmd.Flags().StringVar(&rules, "rules", "", "rule file for rendering the best list")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runInspect(ctx context.Context, out io.Writer, storeURL, name, rules string) error {
	store, err := openStore(ctx, storeURL)
	if err != nil {
		return err
	}
	runs := persistence.NewRunStore(store)

	if name == "" {
		names, err := runs.List(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}

	m, rows, err := runs.Load(ctx, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run:       %s\n", m.Name)
	fmt.Fprintf(out, "created:   %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "dataset:   %d rows, %d rules, %d positive, fingerprint %08x\n",
		m.Dataset.NData, m.Dataset.NRules, m.Dataset.NumPositive, m.Dataset.Fingerprint)
	fmt.Fprintf(out, "config:    max length %d, gc %s, workers %d\n",
		m.Config.MaxPrefixLength, m.Config.GarbageCollect, m.Config.Workers)
	fmt.Fprintf(out, "incumbent: %.6f %v\n", m.Incumbent.Accuracy, m.Incumbent.Prefix)
	fmt.Fprintf(out, "dump:      %s, %d rows, %d bytes, %s\n", m.Dump.Blob, m.Dump.Rows, m.Dump.Size, m.Dump.Compression)
	if m.Truncated {
		fmt.Fprintln(out, "truncated: yes")
	}

	best, ok := persistence.Best(rows)
	if !ok {
		fmt.Fprintln(out, "best row:  none")
		return nil
	}
	fmt.Fprintf(out, "best row:  prefix %v, accuracy %.6f, upper bound %.6f, captured %d (%d correct)\n",
		best.Prefix, best.Accuracy, best.UpperBound, best.NumCaptured, best.NumCapturedCorrect)

	if rules == "" {
		return nil
	}
	names, err := dataset.LoadRuleNames(rules)
	if err != nil {
		return err
	}
	if len(names) != m.Dataset.NRules {
		return fmt.Errorf("%s has %d rules, run %q was computed on %d", rules, len(names), name, m.Dataset.NRules)
	}
	rl, err := corels.RuleListFromRow(best, names)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, rl)
	return nil
}
