package port

import "errors"

var (
	// ErrStoreUnavailable covers connection loss, timeouts and rejected commands.
	// A mutation that failed this way may or may not have been applied.
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrCorruptValue means the stored payload is not an integer.
	ErrCorruptValue = errors.New("stored stock value is not an integer")

	// ErrWriteConflict means the watched key changed before EXEC.
	ErrWriteConflict = errors.New("concurrent write conflict")
)
