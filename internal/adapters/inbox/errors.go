package inbox

import "errors"

// ErrInvalidLimit is returned by Top for a non-positive limit.
var ErrInvalidLimit = errors.New("invalid limit")
