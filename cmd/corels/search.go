package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/alexzheng587/corels"
	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/observability"
)

func newSearchCmd() *cobra.Command {
	var configPath string
	flags := defaultConfig()

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search for the most accurate rule list",
		Example: `  corels search --labels compas.label --rules compas.out --max-length 3
  corels search --config run.yaml --out s3://bucket/runs --name compas`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := defaultConfig()
			if configPath != "" {
				if err := loadConfigFile(configPath, &cfg); err != nil {
					return err
				}
			}
			overrideFlags(cmd.Flags(), &cfg, &flags)
			return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with search settings; flags override it")
	bindSearchFlags(cmd.Flags(), &flags)
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, cfg runConfig) error {
	opts, err := cfg.options()
	if err != nil {
		return err
	}
	ds, err := dataset.Load(cfg.Labels, cfg.Rules)
	if err != nil {
		return err
	}

	switch {
	case cfg.Out != "":
		store, err := openStore(ctx, cfg.Out)
		if err != nil {
			return err
		}
		name := cfg.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(cfg.Rules), filepath.Ext(cfg.Rules))
		}
		opts = append(opts, corels.WithStore(store, name))
		if cfg.Resume != "" {
			opts = append(opts, corels.WithResume(cfg.Resume))
		}
	case cfg.Resume != "":
		return errors.New("--resume needs --out")
	}

	if cfg.LedgerTable != "" {
		l, err := openLedger(ctx, cfg.LedgerTable)
		if err != nil {
			return err
		}
		opts = append(opts, corels.WithLedger(l, cfg.LedgerKey))
	}

	if cfg.MetricsAddr != "" {
		collector, err := observability.NewPrometheusCollector(nil)
		if err != nil {
			return err
		}
		opts = append(opts, corels.WithMetricsCollector(collector))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintln(out, "metrics server:", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	res, err := corels.Search(ctx, ds, opts...)
	if err != nil {
		return err
	}
	printResult(out, res)
	return nil
}

func printResult(out io.Writer, res *corels.Result) {
	if res.Known {
		fmt.Fprintln(out, res.Rules)
	} else {
		fmt.Fprintf(out, "no rule list beats accuracy %.6f\n", res.Accuracy)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "accuracy:  %.6f\n", res.Accuracy)
	fmt.Fprintf(out, "length:    %d\n", len(res.Prefix))
	fmt.Fprintf(out, "cache:     %d prefixes\n", res.CacheSize)
	fmt.Fprintf(out, "duration:  %s\n", res.Duration.Round(time.Millisecond))
	if res.Truncated {
		fmt.Fprintln(out, "truncated: search stopped early, the list is not certified optimal")
	}
	if res.Manifest != nil {
		fmt.Fprintf(out, "saved:     %s (%d rows)\n", res.Manifest.Name, res.Manifest.Dump.Rows)
	}
	if len(res.Layers) > 0 {
		fmt.Fprintln(out)
		printLayers(out, res.Layers)
	}
}

func printLayers(out io.Writer, layers []corels.LayerStats) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "length\tretained\tcaptured_zero\tdead_prefix\tinferior\tdead_start\tstunted\tdeferred\t")
	for _, l := range layers {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
			l.Length, l.Retained, l.CapturedZero, l.DeadPrefix, l.Inferior,
			l.DeadPrefixStart, l.Stunted, l.Deferred)
	}
	_ = tw.Flush()
}
