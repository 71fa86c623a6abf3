package dedupe

import "errors"

// ErrNilIndex is returned by NewStore when no index is supplied.
var ErrNilIndex = errors.New("dedupe: index is required")
