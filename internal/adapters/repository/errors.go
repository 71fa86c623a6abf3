package repository

import (
	"errors"
	"fmt"

	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/metrics"
)

// ErrUnknownBackend is returned by Open for an unsupported storage name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// unavailable records a storage failure and wraps err so callers can match
// model.ErrStorageUnavailable.
func unavailable(backend, op string, err error) error {
	metrics.RecordStorageError(backend, op)
	return fmt.Errorf("%s %s: %w: %w", backend, op, model.ErrStorageUnavailable, err)
}
