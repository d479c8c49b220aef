package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	labelText = "{label=0} 0 0 1 1 0 1\n{label=1} 1 1 0 0 1 0\n"
	ruleText  = "{a} 1 1 0 0 0 0\n{b} 0 0 1 1 0 0\n{c} 0 0 0 0 1 0\n"
)

func writeInputs(t *testing.T) (labels, rules string) {
	t.Helper()
	dir := t.TempDir()
	labels = filepath.Join(dir, "tdata_R.label")
	rules = filepath.Join(dir, "tdata_R.out")
	require.NoError(t, os.WriteFile(labels, []byte(labelText), 0o644))
	require.NoError(t, os.WriteFile(rules, []byte(ruleText), 0o644))
	return labels, rules
}

func TestParseStoreURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    storeURL
		wantErr bool
	}{
		{raw: "runs", want: storeURL{Scheme: "file", Path: "runs"}},
		{raw: "file:///var/corels", want: storeURL{Scheme: "file", Path: "/var/corels"}},
		{raw: "s3://bucket", want: storeURL{Scheme: "s3", Bucket: "bucket"}},
		{raw: "s3://bucket/runs/compas/", want: storeURL{Scheme: "s3", Bucket: "bucket", Prefix: "runs/compas"}},
		{raw: "minio://localhost:9000/bucket/runs", want: storeURL{Scheme: "minio", Host: "localhost:9000", Bucket: "bucket", Prefix: "runs"}},
		{raw: "minio://play.min.io/bucket?secure=true", want: storeURL{Scheme: "minio", Host: "play.min.io", Bucket: "bucket", Secure: true}},
		{raw: "", wantErr: true},
		{raw: "file://", wantErr: true},
		{raw: "s3:///runs", wantErr: true},
		{raw: "minio://localhost:9000", wantErr: true},
		{raw: "gs://bucket", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseStoreURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
labels: data.label
rules: data.out
maxPrefixLength: 4
garbageCollect: false
bestPrefix: [1, 2]
workers: 2
`), 0o644))

	fs := pflag.NewFlagSet("search", pflag.ContinueOnError)
	flags := defaultConfig()
	bindSearchFlags(fs, &flags)
	require.NoError(t, fs.Parse([]string{"--workers", "8", "--gc", "captured"}))

	cfg := defaultConfig()
	require.NoError(t, loadConfigFile(path, &cfg))
	assert.Equal(t, gcSetting("false"), cfg.GarbageCollect)

	overrideFlags(fs, &cfg, &flags)
	assert.Equal(t, "data.label", cfg.Labels)
	assert.Equal(t, 4, cfg.MaxPrefixLength)
	assert.Equal(t, []int{1, 2}, cfg.BestPrefix)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, gcSetting("captured"), cfg.GarbageCollect)
	assert.Equal(t, "none", cfg.Compression)
}

func TestConfigFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxLength: 3\n"), 0o644))

	cfg := defaultConfig()
	assert.Error(t, loadConfigFile(path, &cfg))
}

func TestConfigFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg := defaultConfig()
	require.NoError(t, loadConfigFile(path, &cfg))
	assert.Equal(t, defaultConfig(), cfg)
}

func TestRunConfigOptions(t *testing.T) {
	cfg := defaultConfig()
	_, err := cfg.options()
	assert.Error(t, err)

	cfg.Labels, cfg.Rules = "l", "r"
	opts, err := cfg.options()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	bad := cfg
	bad.GarbageCollect = "sometimes"
	_, err = bad.options()
	assert.Error(t, err)

	bad = cfg
	bad.Compression = "brotli"
	_, err = bad.options()
	assert.Error(t, err)

	bad = cfg
	bad.LogFormat = "xml"
	_, err = bad.options()
	assert.Error(t, err)

	bad = cfg
	bad.LogLevel = "loud"
	_, err = bad.options()
	assert.Error(t, err)
}

func TestSearchAndInspect(t *testing.T) {
	ctx := context.Background()
	labels, rules := writeInputs(t)
	runs := t.TempDir()

	cfg := defaultConfig()
	cfg.Labels, cfg.Rules = labels, rules
	cfg.MaxPrefixLength = 2
	cfg.Quiet = true
	cfg.Out = runs
	cfg.Compression = "lz4"

	var out bytes.Buffer
	require.NoError(t, runSearch(ctx, &out, cfg))
	assert.Contains(t, out.String(), "accuracy:  1.000000")
	assert.Contains(t, out.String(), "then (1)")
	assert.Contains(t, out.String(), "saved:     tdata_R")

	out.Reset()
	require.NoError(t, runInspect(ctx, &out, runs, "", ""))
	assert.Equal(t, "tdata_R\n", out.String())

	out.Reset()
	require.NoError(t, runInspect(ctx, &out, runs, "tdata_R", rules))
	assert.Contains(t, out.String(), "run:       tdata_R")
	assert.Contains(t, out.String(), "accuracy 1.000000")
	assert.Contains(t, out.String(), "else (0)")

	resumed := cfg
	resumed.MaxPrefixLength = 3
	resumed.Name = "deeper"
	resumed.Resume = "tdata_R"
	out.Reset()
	require.NoError(t, runSearch(ctx, &out, resumed))
	assert.Contains(t, out.String(), "accuracy:  1.000000")

	err := runInspect(ctx, &out, runs, "missing", "")
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"search", "--help"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "--max-length")
	assert.Contains(t, out.String(), "--config")
}

func TestSearch_ResumeNeedsStore(t *testing.T) {
	labels, rules := writeInputs(t)
	cfg := defaultConfig()
	cfg.Labels, cfg.Rules = labels, rules
	cfg.Quiet = true
	cfg.Resume = "x"

	var out bytes.Buffer
	assert.Error(t, runSearch(context.Background(), &out, cfg))
}
