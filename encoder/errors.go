package encoder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize marks a target size (or the bitrate derived from it) that
	// is not a strictly positive, finite number
	ErrInvalidSize = errors.New("invalid target size")
	// ErrInvalidDuration marks a media duration that cannot be divided by
	ErrInvalidDuration = errors.New("invalid media duration")
	// ErrSameFile is returned when the output path would overwrite the input
	ErrSameFile = errors.New("output path is the input file")
)

// Kind classifies where a compression failed
type Kind int

const (
	KindUnknown Kind = iota
	KindProbe        // ffprobe could not read a usable duration
	KindPlan         // size/duration/preset rejected before encoding
	KindEncode       // ffmpeg reported an error
)

func (k Kind) String() string {
	switch k {
	case KindProbe:
		return "probe"
	case KindPlan:
		return "plan"
	case KindEncode:
		return "encode"
	default:
		return "unknown"
	}
}

// Error is the tagged error returned by the prober, planner and encoder
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
