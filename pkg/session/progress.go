package session

import (
	"math"

	"github.com/rangeworks/drover/pkg/log"
)

// NormalizeProgress maps a sub-operation's percent-complete onto the
// job-overall [start, end] range.
//
// Invalid inputs (start >= end, or any argument negative) return
// abs(start) and log an error rather than failing: callers must treat
// that value as "unknown progress", not a measurement. A segment value
// above 100 extrapolates past end, which is accepted.
func NormalizeProgress(start, end, segment float64) float64 {
	if start >= end || start < 0 || end < 0 || segment < 0 {
		log.Logger.Error().
			Float64("start", start).
			Float64("end", end).
			Float64("segment", segment).
			Msg("invalid progress range, reporting unknown progress")
		return math.Abs(start)
	}
	return segment/100*(end-start) + start
}
