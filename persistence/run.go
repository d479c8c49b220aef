package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/alexzheng587/corels/blobstore"
	"github.com/alexzheng587/corels/codec"
	"github.com/alexzheng587/corels/internal/resource"
)

// RunStore saves and loads runs in a blob store.
type RunStore struct {
	store       blobstore.BlobStore
	codec       codec.Codec
	rc          *resource.Controller
	compression Compression
	now         func() time.Time
}

// RunStoreOption configures a RunStore.
type RunStoreOption func(*RunStore)

// WithCodec sets the manifest codec. Default: codec.Default.
func WithCodec(c codec.Codec) RunStoreOption {
	return func(s *RunStore) { s.codec = c }
}

// WithResourceController throttles dump uploads through rc's IO limiter.
func WithResourceController(rc *resource.Controller) RunStoreOption {
	return func(s *RunStore) { s.rc = rc }
}

// WithCompression sets the dump compression. Default: CompressionNone.
func WithCompression(c Compression) RunStoreOption {
	return func(s *RunStore) { s.compression = c }
}

// NewRunStore creates a RunStore on top of store.
func NewRunStore(store blobstore.BlobStore, opts ...RunStoreOption) *RunStore {
	s := &RunStore{
		store: store,
		codec: codec.Default,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save streams the dump produced by write and then stores m next to it.
// m.Name must be set; FormatVersion, CreatedAt and Dump are filled in.
// The manifest is written last, so a run without a manifest is incomplete.
func (s *RunStore) Save(ctx context.Context, m *Manifest, write func(*DumpWriter) error) error {
	if m.Name == "" {
		return errors.New("persistence: run name is required")
	}

	blobName := path.Join(m.Name, DumpBlob+s.compression.Ext())
	w, err := s.store.Create(ctx, blobName)
	if err != nil {
		return fmt.Errorf("create %s: %w", blobName, err)
	}

	cw := NewChecksumWriter(resource.NewRateLimitedWriter(ctx, w, s.rc))
	zw, err := NewCompressWriter(cw, s.compression)
	if err != nil {
		_ = w.Close()
		return err
	}
	dw := NewDumpWriter(zw)

	if err := write(dw); err != nil {
		_ = w.Close()
		return fmt.Errorf("write dump: %w", err)
	}
	if err := dw.Flush(); err != nil {
		_ = w.Close()
		return fmt.Errorf("flush dump: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = w.Close()
		return fmt.Errorf("close compressor: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", blobName, err)
	}

	m.FormatVersion = FormatVersion
	m.CreatedAt = s.now().UTC()
	m.Dump = DumpInfo{
		Blob:        blobName,
		Compression: s.compression.String(),
		Rows:        dw.Rows(),
		Size:        cw.Size(),
		Checksum:    cw.Sum(),
	}

	data, err := s.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return s.store.Put(ctx, path.Join(m.Name, ManifestBlob), data)
}

// LoadManifest reads and validates the manifest of run name.
func (s *RunStore) LoadManifest(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, s.store, path.Join(name, ManifestBlob))
	if err != nil {
		return nil, fmt.Errorf("read manifest of %q: %w", name, err)
	}
	var m Manifest
	if err := s.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", ErrCorruptRun, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads run name, verifies the dump checksum and parses all rows.
func (s *RunStore) Load(ctx context.Context, name string) (*Manifest, []Row, error) {
	m, err := s.LoadManifest(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	data, err := blobstore.ReadAll(ctx, s.store, m.Dump.Blob)
	if err != nil {
		return nil, nil, fmt.Errorf("read dump of %q: %w", name, err)
	}
	if int64(len(data)) != m.Dump.Size {
		return nil, nil, fmt.Errorf("%w: dump is %d bytes, manifest says %d", ErrCorruptRun, len(data), m.Dump.Size)
	}
	if err := VerifyChecksum(data, m.Dump.Checksum); err != nil {
		return nil, nil, err
	}

	r, _, err := NewDecompressReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptRun, err)
	}
	defer func() { _ = r.Close() }()

	rows, err := ReadDump(r)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) != m.Dump.Rows {
		return nil, nil, fmt.Errorf("%w: dump has %d rows, manifest says %d", ErrCorruptRun, len(rows), m.Dump.Rows)
	}
	return m, rows, nil
}

// List returns the names of all runs with a manifest.
func (s *RunStore) List(ctx context.Context) ([]string, error) {
	names, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, n := range names {
		if path.Base(n) == ManifestBlob && path.Dir(n) != "." {
			runs = append(runs, path.Dir(n))
		}
	}
	return runs, nil
}
