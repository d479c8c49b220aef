package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/alexzheng587/corels"
	"github.com/alexzheng587/corels/persistence"
)

// runConfig holds every setting of a search. It is filled from defaults,
// then the YAML file given by --config, then explicitly set flags.
type runConfig struct {
	Labels          string    `yaml:"labels"`
	Rules           string    `yaml:"rules"`
	MaxPrefixLength int       `yaml:"maxPrefixLength"`
	MaxAccuracy     float64   `yaml:"maxAccuracy"`
	BestPrefix      []int     `yaml:"bestPrefix"`
	GarbageCollect  gcSetting `yaml:"garbageCollect"`
	Workers         int       `yaml:"workers"`
	MaxNodes        int       `yaml:"maxNodes"`
	MemoryLimit     int64     `yaml:"memoryLimit"`
	IOLimit         int64     `yaml:"ioLimit"`
	Seed            int64     `yaml:"seed"`
	Sample          float64   `yaml:"sample"`
	WarmStart       bool      `yaml:"warmStart"`
	Quiet           bool      `yaml:"quiet"`
	LogFormat       string    `yaml:"logFormat"`
	LogLevel        string    `yaml:"logLevel"`
	Out             string    `yaml:"out"`
	Name            string    `yaml:"name"`
	Compression     string    `yaml:"compression"`
	Resume          string    `yaml:"resume"`
	LedgerTable     string    `yaml:"ledgerTable"`
	LedgerKey       string    `yaml:"ledgerKey"`
	MetricsAddr     string    `yaml:"metricsAddr"`
}

// gcSetting accepts "off", "ruleset", "captured" and the booleans true/false.
type gcSetting string

func (g *gcSetting) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: garbageCollect must be a scalar", n.Line)
	}
	*g = gcSetting(n.Value)
	return nil
}

func defaultConfig() runConfig {
	return runConfig{
		MaxPrefixLength: 3,
		GarbageCollect:  "ruleset",
		Workers:         1,
		LogFormat:       "text",
		LogLevel:        "info",
		Compression:     "none",
	}
}

// loadConfigFile decodes path over cfg. Unknown keys are rejected.
func loadConfigFile(path string, cfg *runConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func bindSearchFlags(fs *pflag.FlagSet, c *runConfig) {
	fs.StringVar(&c.Labels, "labels", c.Labels, "label file")
	fs.StringVar(&c.Rules, "rules", c.Rules, "rule file")
	fs.IntVar(&c.MaxPrefixLength, "max-length", c.MaxPrefixLength, "maximum number of rules in a list")
	fs.Float64Var(&c.MaxAccuracy, "max-accuracy", c.MaxAccuracy, "initial incumbent accuracy")
	fs.IntSliceVar(&c.BestPrefix, "best-prefix", c.BestPrefix, "known good prefix seeding the incumbent, e.g. 1,2")
	fs.StringVar((*string)(&c.GarbageCollect), "gc", string(c.GarbageCollect), "garbage collection: off, ruleset or captured")
	fs.IntVar(&c.Workers, "workers", c.Workers, "parallel expansion workers")
	fs.IntVar(&c.MaxNodes, "max-nodes", c.MaxNodes, "stop expanding once the cache holds this many prefixes (0 = unlimited)")
	fs.Int64Var(&c.MemoryLimit, "memory-limit", c.MemoryLimit, "advisory cache memory limit in bytes (0 = unlimited)")
	fs.Int64Var(&c.IOLimit, "io-limit", c.IOLimit, "dump upload rate limit in bytes per second (0 = unlimited)")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "subsampling seed")
	fs.Float64Var(&c.Sample, "sample", c.Sample, "fraction of rows to keep (0 = all)")
	fs.BoolVar(&c.WarmStart, "warm-start", c.WarmStart, "seed the incumbent with a greedy list")
	fs.BoolVar(&c.Quiet, "quiet", c.Quiet, "disable logging")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&c.Out, "out", c.Out, "run store URL: path, file:///dir, s3://bucket/prefix or minio://host/bucket/prefix")
	fs.StringVar(&c.Name, "name", c.Name, "name of the saved run")
	fs.StringVar(&c.Compression, "compression", c.Compression, "dump compression: none, zstd or lz4")
	fs.StringVar(&c.Resume, "resume", c.Resume, "resume from the saved run with this name")
	fs.StringVar(&c.LedgerTable, "ledger-table", c.LedgerTable, "DynamoDB table of best known lists")
	fs.StringVar(&c.LedgerKey, "ledger-key", c.LedgerKey, "ledger key (default: dataset fingerprint)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve Prometheus metrics on this address")
}

// overrideFlags copies every flag the user set from flags into dst.
func overrideFlags(fs *pflag.FlagSet, dst, flags *runConfig) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "labels":
			dst.Labels = flags.Labels
		case "rules":
			dst.Rules = flags.Rules
		case "max-length":
			dst.MaxPrefixLength = flags.MaxPrefixLength
		case "max-accuracy":
			dst.MaxAccuracy = flags.MaxAccuracy
		case "best-prefix":
			dst.BestPrefix = flags.BestPrefix
		case "gc":
			dst.GarbageCollect = flags.GarbageCollect
		case "workers":
			dst.Workers = flags.Workers
		case "max-nodes":
			dst.MaxNodes = flags.MaxNodes
		case "memory-limit":
			dst.MemoryLimit = flags.MemoryLimit
		case "io-limit":
			dst.IOLimit = flags.IOLimit
		case "seed":
			dst.Seed = flags.Seed
		case "sample":
			dst.Sample = flags.Sample
		case "warm-start":
			dst.WarmStart = flags.WarmStart
		case "quiet":
			dst.Quiet = flags.Quiet
		case "log-format":
			dst.LogFormat = flags.LogFormat
		case "log-level":
			dst.LogLevel = flags.LogLevel
		case "out":
			dst.Out = flags.Out
		case "name":
			dst.Name = flags.Name
		case "compression":
			dst.Compression = flags.Compression
		case "resume":
			dst.Resume = flags.Resume
		case "ledger-table":
			dst.LedgerTable = flags.LedgerTable
		case "ledger-key":
			dst.LedgerKey = flags.LedgerKey
		case "metrics-addr":
			dst.MetricsAddr = flags.MetricsAddr
		}
	})
}

// options translates the settings that map directly onto corels options.
// Store, ledger and metrics are wired by the caller.
func (c runConfig) options() ([]corels.Option, error) {
	if c.Labels == "" || c.Rules == "" {
		return nil, errors.New("both --labels and --rules are required")
	}
	gc, err := corels.ParseGCMode(string(c.GarbageCollect))
	if err != nil {
		return nil, err
	}
	comp, err := persistence.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}

	opts := []corels.Option{
		corels.WithMaxPrefixLength(c.MaxPrefixLength),
		corels.WithMaxAccuracy(c.MaxAccuracy),
		corels.WithGarbageCollection(gc),
		corels.WithWorkers(c.Workers),
		corels.WithMaxNodes(c.MaxNodes),
		corels.WithMemoryLimit(c.MemoryLimit),
		corels.WithIOLimit(c.IOLimit),
		corels.WithCompression(comp),
	}
	if len(c.BestPrefix) > 0 {
		opts = append(opts, corels.WithBestPrefix(c.BestPrefix...))
	}
	if c.Sample > 0 {
		opts = append(opts, corels.WithSample(c.Seed, c.Sample))
	}
	if c.WarmStart {
		opts = append(opts, corels.WithWarmStart())
	}

	if c.Quiet {
		opts = append(opts, corels.WithQuiet())
	} else {
		logger, err := c.logger()
		if err != nil {
			return nil, err
		}
		opts = append(opts, corels.WithLogger(logger))
	}
	return opts, nil
}

func (c runConfig) logger() (*corels.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return corels.NewTextLogger(level), nil
	case "json":
		return corels.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.LogFormat)
	}
}
