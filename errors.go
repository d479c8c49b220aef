package corels

import (
	"github.com/alexzheng587/corels/blobstore"
	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/internal/search"
	"github.com/alexzheng587/corels/persistence"
)

var (
	// ErrInputFormat is matched by errors from malformed label or rule files.
	ErrInputFormat = dataset.ErrFormat

	// ErrConfiguration is matched by settings rejected before the search.
	ErrConfiguration = search.ErrConfiguration

	// ErrInvariantViolation is matched by errors that abort a search whose
	// internal state became inconsistent.
	ErrInvariantViolation = search.ErrInvariantViolation

	// ErrRunNotFound is returned when a named run does not exist in the store.
	ErrRunNotFound = blobstore.ErrNotFound

	// ErrCorruptRun is returned when a stored run fails its integrity checks.
	ErrCorruptRun = persistence.ErrCorruptRun
)

// FormatError reports a malformed input file with its line.
type FormatError = dataset.FormatError

// ConfigurationError reports an invalid setting.
type ConfigurationError = search.ConfigurationError

// InvariantViolation reports inconsistent search state, naming the offending
// prefix and both conflicting entries when there are two.
type InvariantViolation = search.InvariantViolation
