package preference

import (
	"errors"
	"fmt"

	"github.com/okian/scout/internal/domain/model"
)

var (
	// ErrNilJournal is returned by NewModel when no journal is supplied.
	ErrNilJournal = errors.New("preference: journal is required")
	// ErrInvalidParameter marks an out-of-range tuning parameter.
	ErrInvalidParameter = errors.New("preference: invalid parameter")
)

func wrapStorage(err error) error {
	if errors.Is(err, model.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
}
