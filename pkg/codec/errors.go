package codec

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by [Codec.Generate] and [Codec.Parse].
//
// The returned error is always an [*Error]; use [errors.Is] against these
// sentinels to classify it:
//
//	if errors.Is(err, codec.ErrContentMismatch) {
//	    // file does not conform to the template
//	}
var (
	// ErrStreamExhausted indicates the decision stream ran out, or a write
	// went past an already established final file size.
	ErrStreamExhausted = errors.New("codec: stream exhausted")

	// ErrCapacityExceeded indicates the file grew past [Config.FileCapacity]
	// or an input is larger than the configured capacities.
	ErrCapacityExceeded = errors.New("codec: capacity exceeded")

	// ErrContentMismatch indicates that in parse mode a written byte differs
	// from the input byte at the same offset, or the template reads past
	// the end of the input.
	ErrContentMismatch = errors.New("codec: content mismatch")

	// ErrEvilDisabled indicates the input can only be parsed with an evil
	// decision while evil decisions are disabled.
	ErrEvilDisabled = errors.New("codec: evil decision required but disabled")

	// ErrInvalidWidth indicates an integer size outside 1..8 bytes or a bit
	// width outside 1..64 or wider than its storage.
	//
	// This is a programming error in the template.
	ErrInvalidWidth = errors.New("codec: invalid width")

	// ErrInternal indicates a broken template contract, such as an
	// unbalanced [Codec.Exit], or a panic raised by template code.
	ErrInternal = errors.New("codec: internal error")

	// ErrInvalidConfig indicates a [Config] failed validation.
	ErrInvalidConfig = errors.New("codec: invalid config")
)

// Error describes why a pass was aborted.
type Error struct {
	// Kind is one of the sentinel errors of this package.
	Kind error
	// Mode is the mode of the aborted pass.
	Mode Mode
	// FilePos and DecisionPos are the cursors at the time of the abort.
	FilePos     int
	DecisionPos int
	// Msg gives detail about the failed check.
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s (%s, file offset %d, decision %d)", e.Kind, e.Msg, e.Mode, e.FilePos, e.DecisionPos)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Status classifies the outcome of a pass.
type Status uint8

const (
	StatusOK Status = iota
	StatusParseMismatch
	StatusCapacityExceeded
	StatusEvilDisabled
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusParseMismatch:
		return "parse-mismatch"
	case StatusCapacityExceeded:
		return "capacity-exceeded"
	case StatusEvilDisabled:
		return "evil-disabled"
	default:
		return "internal-error"
	}
}

// StatusOf maps an error returned by a pass to its [Status].
// A nil error is [StatusOK].
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrContentMismatch):
		return StatusParseMismatch
	case errors.Is(err, ErrStreamExhausted), errors.Is(err, ErrCapacityExceeded):
		return StatusCapacityExceeded
	case errors.Is(err, ErrEvilDisabled):
		return StatusEvilDisabled
	default:
		return StatusInternal
	}
}

// abort is the panic value carrying a pass failure up to the driving
// function. A nil err stops the pass successfully.
type abort struct {
	err error
}

func (c *Codec) fail(kind error, format string, args ...any) {
	panic(abort{err: &Error{
		Kind:        kind,
		Mode:        c.mode,
		FilePos:     c.filePos,
		DecisionPos: c.pos,
		Msg:         fmt.Sprintf(format, args...),
	}})
}

func (c *Codec) check(cond bool, kind error, format string, args ...any) {
	if !cond {
		c.fail(kind, format, args...)
	}
}
