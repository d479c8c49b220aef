package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexzheng587/corels/blobstore"
	"github.com/alexzheng587/corels/codec"
	"github.com/alexzheng587/corels/internal/resource"
)

func writeSample(dw *DumpWriter) error {
	for _, r := range sampleRows() {
		if err := dw.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}

func newManifest(name string) *Manifest {
	return &Manifest{
		Name:      name,
		Dataset:   DatasetInfo{NData: 4, NRules: 3, NumPositive: 2, Fingerprint: 0xdeadbeef},
		Config:    RunConfig{MaxPrefixLength: 2, GarbageCollect: "ruleset", Workers: 1},
		Incumbent: IncumbentRecord{Accuracy: 0.5, Prefix: []int{0}, Known: true},
		Layers: []LayerRecord{
			{Length: 1, Retained: 1, CapturedZero: 0, DeadPrefix: 2},
			{Length: 2, Retained: 1, Inferior: 1},
		},
	}
}

func TestRunStore_SaveLoad(t *testing.T) {
	ctx := context.Background()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			rs := NewRunStore(store,
				WithCompression(c),
				WithCodec(codec.JSON{}),
				WithResourceController(resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})),
			)
			rs.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

			m := newManifest("tdata")
			require.NoError(t, rs.Save(ctx, m, writeSample))
			assert.Equal(t, "tdata/cache.tsv"+c.Ext(), m.Dump.Blob)
			assert.Equal(t, 3, m.Dump.Rows)
			assert.Equal(t, c.String(), m.Dump.Compression)

			// Default codec reads what the std codec wrote.
			got, rows, err := NewRunStore(store).Load(ctx, "tdata")
			require.NoError(t, err)
			assert.Equal(t, m.Layers, got.Layers)
			assert.Equal(t, m.Incumbent, got.Incumbent)
			assert.Equal(t, m.Dataset, got.Dataset)
			assert.Equal(t, 2, got.CompletedLength())
			assert.True(t, got.CreatedAt.Equal(m.CreatedAt))
			assert.Equal(t, sampleRows(), rows)
		})
	}
}

func TestRunStore_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	rs := NewRunStore(store)

	m := newManifest("r")
	require.NoError(t, rs.Save(ctx, m, writeSample))

	data, err := blobstore.ReadAll(ctx, store, m.Dump.Blob)
	require.NoError(t, err)
	data[len(data)-2] ^= 0x01
	require.NoError(t, store.Put(ctx, m.Dump.Blob, data))

	_, _, err = rs.Load(ctx, "r")
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	require.NoError(t, store.Put(ctx, m.Dump.Blob, data[:len(data)-5]))
	_, _, err = rs.Load(ctx, "r")
	assert.ErrorIs(t, err, ErrCorruptRun)
}

func TestRunStore_Missing(t *testing.T) {
	_, _, err := NewRunStore(blobstore.NewMemoryStore()).Load(context.Background(), "nope")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestRunStore_List(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	rs := NewRunStore(store)

	require.NoError(t, rs.Save(ctx, newManifest("a"), writeSample))
	require.NoError(t, rs.Save(ctx, newManifest("b"), writeSample))
	require.NoError(t, store.Put(ctx, "c/cache.tsv", []byte("orphan")))

	runs, err := rs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, runs)
}

func TestManifest_Validate(t *testing.T) {
	m := newManifest("x")
	m.FormatVersion = FormatVersion
	m.Dump = DumpInfo{Blob: "x/cache.tsv", Compression: "none"}
	require.NoError(t, m.Validate())

	bad := *m
	bad.FormatVersion = 99
	assert.ErrorIs(t, bad.Validate(), ErrInvalidVersion)

	bad = *m
	bad.Dump.Blob = "y/cache.tsv"
	assert.ErrorIs(t, bad.Validate(), ErrCorruptRun)

	bad = *m
	bad.Layers = []LayerRecord{{Length: 2}}
	assert.ErrorIs(t, bad.Validate(), ErrCorruptRun)

	assert.Equal(t, 0, (&Manifest{}).CompletedLength())
}
