package persistence

import (
	"fmt"
	"path"
	"time"
)

// DatasetInfo describes the dataset a run was computed on.
type DatasetInfo struct {
	NData       int    `json:"ndata"`
	NRules      int    `json:"nrules"`
	NumPositive int    `json:"num_positive"`
	Fingerprint uint32 `json:"fingerprint"`
}

// RunConfig is the search configuration a run was started with.
type RunConfig struct {
	MaxPrefixLength int     `json:"max_prefix_length"`
	MaxAccuracy     float64 `json:"max_accuracy"`
	BestPrefix      []int   `json:"best_prefix,omitempty"`
	GarbageCollect  string  `json:"garbage_collect"`
	Workers         int     `json:"workers"`
	MaxNodes        int     `json:"max_nodes,omitempty"`
	MemoryLimit     int64   `json:"memory_limit,omitempty"`
	Seed            int64   `json:"seed,omitempty"`
	Sample          float64 `json:"sample,omitempty"`
	WarmStart       bool    `json:"warm_start,omitempty"`
}

// LayerRecord holds the per-layer counters of a finished layer.
type LayerRecord struct {
	Length          int `json:"length"`
	Retained        int `json:"retained"`
	CapturedZero    int `json:"captured_zero"`
	DeadPrefix      int `json:"dead_prefix"`
	Inferior        int `json:"inferior"`
	DeadPrefixStart int `json:"dead_prefix_start"`
	Stunted         int `json:"stunted"`
	Deferred        int `json:"deferred"`
}

// IncumbentRecord is the best list found by the run.
type IncumbentRecord struct {
	Accuracy float64 `json:"accuracy"`
	Prefix   []int   `json:"prefix"`
	Known    bool    `json:"known"`
}

// DumpInfo describes the stored dump blob.
type DumpInfo struct {
	Blob        string `json:"blob"`
	Compression string `json:"compression"`
	Rows        int    `json:"rows"`
	Size        int64  `json:"size"`
	Checksum    uint32 `json:"checksum"`
}

// Manifest is the metadata blob of a persisted run.
type Manifest struct {
	FormatVersion int             `json:"format_version"`
	Name          string          `json:"name"`
	CreatedAt     time.Time       `json:"created_at"`
	Dataset       DatasetInfo     `json:"dataset"`
	Config        RunConfig       `json:"config"`
	Incumbent     IncumbentRecord `json:"incumbent"`
	Layers        []LayerRecord   `json:"layers"`
	Truncated     bool            `json:"truncated"`
	Dump          DumpInfo        `json:"dump"`
}

// CompletedLength returns the deepest layer the run finished.
func (m *Manifest) CompletedLength() int {
	if len(m.Layers) == 0 {
		return 0
	}
	return m.Layers[len(m.Layers)-1].Length
}

// Validate checks the manifest for internal consistency.
func (m *Manifest) Validate() error {
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, m.FormatVersion)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: empty run name", ErrCorruptRun)
	}
	if m.Dump.Blob == "" || path.Dir(m.Dump.Blob) != m.Name {
		return fmt.Errorf("%w: dump blob %q outside run %q", ErrCorruptRun, m.Dump.Blob, m.Name)
	}
	if _, err := ParseCompression(m.Dump.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRun, err)
	}
	for i, l := range m.Layers {
		if l.Length != i+1 {
			return fmt.Errorf("%w: layer %d recorded as length %d", ErrCorruptRun, i+1, l.Length)
		}
	}
	return nil
}
