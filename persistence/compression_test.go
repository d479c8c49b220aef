package persistence

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompression_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("1,4,7\t3\t1\t1,0,1\t0\t0.8125\t0.875\t120\t97\n"), 500)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewCompressWriter(&buf, c)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if c != CompressionNone {
				assert.Less(t, buf.Len(), len(payload))
			}

			r, detected, err := NewDecompressReader(&buf)
			require.NoError(t, err)
			assert.Equal(t, c, detected)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, got)
		})
	}
}

func TestDecompressReader_Empty(t *testing.T) {
	r, c, err := NewDecompressReader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseCompression(t *testing.T) {
	tests := map[string]Compression{
		"":     CompressionNone,
		"none": CompressionNone,
		"LZ4":  CompressionLZ4,
		"zstd": CompressionZSTD,
		"zst":  CompressionZSTD,
	}
	for in, want := range tests {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)

	assert.Equal(t, ".zst", CompressionZSTD.Ext())
	assert.Equal(t, ".lz4", CompressionLZ4.Ext())
	assert.Equal(t, "", CompressionNone.Ext())
}

func TestChecksumWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	_, err := cw.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = cw.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, int64(11), cw.Size())
	require.NoError(t, VerifyChecksum(buf.Bytes(), cw.Sum()))
	assert.ErrorIs(t, VerifyChecksum([]byte("hello worle"), cw.Sum()), ErrChecksumMismatch)
}
