package tickpack

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tickpack/fixedpoint"
	"github.com/hupe1980/tickpack/internal/bitstream"
	"github.com/hupe1980/tickpack/internal/changemap"
	"github.com/hupe1980/tickpack/internal/checksum"
	"github.com/hupe1980/tickpack/internal/delta"
	"github.com/hupe1980/tickpack/internal/frame"
)

var (
	// ErrInvalidInput is returned when Encode preconditions are not met.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPrecisionOverflow is returned when a price cannot be represented at the configured scale.
	ErrPrecisionOverflow = fixedpoint.ErrPrecisionOverflow

	// ErrMalformedHeader is returned when structural header fields are out of range.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrTruncatedStream is returned when the archive ends before an expected field.
	ErrTruncatedStream = bitstream.ErrTruncatedStream

	// ErrChecksumMismatch is returned when any checksum layer fails.
	ErrChecksumMismatch = checksum.ErrMismatch

	// ErrDeltaRangeViolation signals an internal consistency failure in the delta payload.
	ErrDeltaRangeViolation = delta.ErrDeltaRangeViolation
)

// ChecksumLayer identifies the region a checksum covers.
type ChecksumLayer = checksum.Layer

// Checksum layers in verification order.
const (
	LayerReferenceFrame = checksum.LayerReferenceFrame
	LayerPayload        = checksum.LayerPayload
	LayerStructure      = checksum.LayerStructure
)

// ChecksumMismatchError reports which layer failed and the stored and computed values.
type ChecksumMismatchError = checksum.MismatchError

// ErrorKind classifies codec failures.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindPrecisionOverflow
	KindMalformedHeader
	KindTruncatedStream
	KindChecksumMismatch
	KindDeltaRangeViolation
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidInput:
		return "invalid-input"
	case KindPrecisionOverflow:
		return "precision-overflow"
	case KindMalformedHeader:
		return "malformed-header"
	case KindTruncatedStream:
		return "truncated-stream"
	case KindChecksumMismatch:
		return "checksum-mismatch"
	case KindDeltaRangeViolation:
		return "delta-range-violation"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// KindOf classifies err. It returns KindNone for nil.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrChecksumMismatch):
		return KindChecksumMismatch
	case errors.Is(err, ErrDeltaRangeViolation):
		return KindDeltaRangeViolation
	case errors.Is(err, ErrTruncatedStream):
		return KindTruncatedStream
	case errors.Is(err, ErrMalformedHeader):
		return KindMalformedHeader
	case errors.Is(err, ErrPrecisionOverflow):
		return KindPrecisionOverflow
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

// DecodeError locates a decode failure within the archive.
//
// The underlying error can be accessed via errors.Unwrap.
type DecodeError struct {
	Kind   ErrorKind
	Offset int // byte offset, -1 if unknown
	Tick   int // tick index, -1 if not inside a tick record
	cause  error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Tick >= 0:
		return fmt.Sprintf("decode %s at byte %d (tick %d): %v", e.Kind, e.Offset, e.Tick, e.cause)
	case e.Offset >= 0:
		return fmt.Sprintf("decode %s at byte %d: %v", e.Kind, e.Offset, e.cause)
	default:
		return fmt.Sprintf("decode %s: %v", e.Kind, e.cause)
	}
}

func (e *DecodeError) Unwrap() error { return e.cause }

func newDecodeError(err error, offset, tick int) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	err = translateError(err)
	return &DecodeError{Kind: KindOf(err), Offset: offset, Tick: tick, cause: err}
}

// translateError folds internal errors into the public taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, changemap.ErrPaddingBits) {
		return fmt.Errorf("%w: %w", ErrDeltaRangeViolation, err)
	}
	if errors.Is(err, frame.ErrValueRange) {
		return fmt.Errorf("%w: %w", ErrPrecisionOverflow, err)
	}
	if errors.Is(err, delta.ErrInvalidThresholds) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return err
}
