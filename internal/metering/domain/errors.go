package metering

import (
	"errors"
	"fmt"
	"time"
)

// MaxQueryRange is the longest range a caller may query.
const MaxQueryRange = 365 * 24 * time.Hour

var (
	// ErrValidation marks malformed caller input. Callers match it with errors.Is.
	ErrValidation = errors.New("metering: validation failed")
	// ErrEmptyDeviceID is returned when the device id is empty.
	ErrEmptyDeviceID = fmt.Errorf("%w: deviceId must be a non-empty string", ErrValidation)
	// ErrInvertedRange is returned when start is after end.
	ErrInvertedRange = fmt.Errorf("%w: startDate must be before endDate", ErrValidation)
	// ErrRangeTooLong is returned when the range exceeds MaxQueryRange.
	ErrRangeTooLong = fmt.Errorf("%w: date range cannot exceed 1 year", ErrValidation)
	// ErrInvalidTimestamp is returned when a timestamp is missing or not an integer.
	ErrInvalidTimestamp = fmt.Errorf("%w: timestamps must be integers", ErrValidation)
	// ErrInvalidDayStart is returned when a summary day start is not set.
	ErrInvalidDayStart = errors.New("metering: invalid day start")
	// ErrInvalidCalendar is returned for out-of-range tariff hours.
	ErrInvalidCalendar = errors.New("metering: invalid tariff calendar")
)

// ValidateDeviceID checks the device id.
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}
	return nil
}

// ValidateRange checks a [start, end] query in unix seconds.
func ValidateRange(deviceID string, start, end int64) error {
	if err := ValidateDeviceID(deviceID); err != nil {
		return err
	}
	if start > end {
		return ErrInvertedRange
	}
	if end-start > int64(MaxQueryRange/time.Second) {
		return ErrRangeTooLong
	}
	return nil
}

// DataAccessError wraps a storage failure with the operation context.
type DataAccessError struct {
	Op       string
	DeviceID string
	Start    int64
	End      int64
	Err      error
}

// NewDataAccessError wraps err, returning nil when err is nil.
func NewDataAccessError(op, deviceID string, start, end int64, err error) error {
	if err == nil {
		return nil
	}
	return &DataAccessError{Op: op, DeviceID: deviceID, Start: start, End: end, Err: err}
}

func (e *DataAccessError) Error() string {
	if e.DeviceID == "" {
		return fmt.Sprintf("metering: %s: %v", e.Op, e.Err)
	}
	if e.Start == 0 && e.End == 0 {
		return fmt.Sprintf("metering: %s device=%s: %v", e.Op, e.DeviceID, e.Err)
	}
	return fmt.Sprintf("metering: %s device=%s range=[%d,%d]: %v", e.Op, e.DeviceID, e.Start, e.End, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}
