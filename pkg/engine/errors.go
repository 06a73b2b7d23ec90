package engine

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/replay/pkg/datasource"
)

var (
	ErrNoTradingDays = errors.New("no trading days in range")
	ErrNoSecurities  = errors.New("no securities subscribed")
)

// DataIntegrityError aborts a run when a series is empty, malformed or out of
// order.
type DataIntegrityError struct {
	Security string
	Err      error
}

func newDataIntegrityError(security string, err error) *DataIntegrityError {
	if !errors.Is(err, datasource.ErrDataIntegrity) {
		err = fmt.Errorf("%w: %w", datasource.ErrDataIntegrity, err)
	}
	return &DataIntegrityError{Security: security, Err: err}
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity of %s: %v", e.Security, e.Err)
}

func (e *DataIntegrityError) Unwrap() error {
	return e.Err
}
