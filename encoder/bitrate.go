package encoder

import (
	"fmt"
	"math"
)

// kilobitsPerMegabyte converts megabytes to kilobits (MB * 1024 KB * 8 bit)
const kilobitsPerMegabyte = 1024 * 8

// PlanBitrateKbps returns the video bitrate that makes a stream of
// durationSeconds come out at desiredSizeMB:
//
//	floor(desiredSizeMB * 1024 * 8 / durationSeconds)
//
// The whole budget goes to video. Audio, container overhead and rate
// control variance are not accounted for, so real outputs land near the
// target rather than on it.
func PlanBitrateKbps(desiredSizeMB, durationSeconds float64) (int, error) {
	return PlanVideoBitrateKbps(desiredSizeMB, durationSeconds, 0)
}

// PlanVideoBitrateKbps is PlanBitrateKbps with audioReserveKbps taken off
// the budget for the audio stream. A reserve of 0 gives the same result as
// PlanBitrateKbps.
func PlanVideoBitrateKbps(desiredSizeMB, durationSeconds float64, audioReserveKbps int) (int, error) {
	if math.IsNaN(desiredSizeMB) || math.IsInf(desiredSizeMB, 0) || desiredSizeMB <= 0 {
		return 0, &Error{Kind: KindPlan, Err: fmt.Errorf("%w: %v MB", ErrInvalidSize, desiredSizeMB)}
	}
	if math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) || durationSeconds <= 0 {
		return 0, &Error{Kind: KindPlan, Err: fmt.Errorf("%w: %v seconds", ErrInvalidDuration, durationSeconds)}
	}
	if audioReserveKbps < 0 {
		return 0, &Error{Kind: KindPlan, Err: fmt.Errorf("negative audio reserve %d kbit/s", audioReserveKbps)}
	}

	total := math.Floor(desiredSizeMB * kilobitsPerMegabyte / durationSeconds)
	if math.IsInf(total, 0) || total > math.MaxInt32 {
		return 0, &Error{Kind: KindPlan, Err: fmt.Errorf("%w: %v MB over %v seconds exceeds any usable bitrate", ErrInvalidSize, desiredSizeMB, durationSeconds)}
	}

	video := int(total) - audioReserveKbps
	if video < 1 {
		if audioReserveKbps > 0 {
			return 0, &Error{Kind: KindPlan, Err: fmt.Errorf("%w: %v MB leaves no video bitrate after the %d kbit/s audio reserve", ErrInvalidSize, desiredSizeMB, audioReserveKbps)}
		}
		return 0, &Error{Kind: KindPlan, Err: fmt.Errorf("%w: %v MB over %v seconds is below 1 kbit/s", ErrInvalidSize, desiredSizeMB, durationSeconds)}
	}
	return video, nil
}
