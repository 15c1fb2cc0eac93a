package journal

import (
	"errors"
	"fmt"

	"github.com/downfa11-org/go-journal/pkg/types"
)

var (
	ErrClosed         = errors.New("journal closed")
	ErrBatchCommitted = errors.New("batch already committed")
	ErrReplayAborted  = errors.New("replay aborted")
	ErrConfiguration  = errors.New("invalid journal configuration")
)

// ConfigError describes a configuration problem found before a journal opens.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("journal config: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
func (e *ConfigError) Unwrap() error        { return e.Err }

// SynchronousJournalError wraps a write failure surfaced to a synchronous caller.
type SynchronousJournalError struct {
	Op  string
	Err error
}

func (e *SynchronousJournalError) Error() string {
	return fmt.Sprintf("journal %s: %v", e.Op, e.Err)
}

func (e *SynchronousJournalError) Unwrap() error { return e.Err }

// ReplayAbortedError reports which replay phase a listener stopped and why.
type ReplayAbortedError struct {
	Phase    string
	RecordID uint64
	Cause    error
}

func (e *ReplayAbortedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("replay aborted during %s at record %d: %v", e.Phase, e.RecordID, e.Cause)
	}
	return fmt.Sprintf("replay aborted during %s at record %d", e.Phase, e.RecordID)
}

func (e *ReplayAbortedError) Is(target error) bool { return target == ErrReplayAborted }
func (e *ReplayAbortedError) Unwrap() error        { return e.Cause }

// callbackPanic is the cause recorded when a replay callback panics.
type callbackPanic struct {
	value interface{}
}

func (p callbackPanic) Error() string {
	return fmt.Sprintf("listener panicked: %v", p.value)
}

// safeReplayCall runs a replay callback, turning a panic into an error.
func safeReplayCall(fn func() types.ReplayResult) (res types.ReplayResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = types.Except, callbackPanic{value: r}
		}
	}()
	return fn(), nil
}
