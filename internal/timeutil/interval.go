package timeutil

import "time"

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// BufferedOverlaps expands interval A by bufferMinutes on both sides before
// testing for overlap. The expansion is applied to the absolute instants, so
// a buffer may spill across the calendar-day boundary.
func BufferedOverlaps(aStart, aEnd, bStart, bEnd time.Time, bufferMinutes int) bool {
	if bufferMinutes > 0 {
		buffer := time.Duration(bufferMinutes) * time.Minute
		aStart = aStart.Add(-buffer)
		aEnd = aEnd.Add(buffer)
	}
	return Overlaps(aStart, aEnd, bStart, bEnd)
}

// CrossesMidnight reports whether a session's end wall-clock falls on the
// following calendar date.
func CrossesMidnight(startMin, endMin int) bool {
	return startMin > endMin
}

// SpanMinutes returns the total duration in minutes between two wall-clock
// values, adding a full day when the interval crosses midnight.
func SpanMinutes(startMin, endMin int) int {
	if CrossesMidnight(startMin, endMin) {
		return endMin + MinutesPerDay - startMin
	}
	return endMin - startMin
}

// Window is a wall-clock interval within a single calendar day, expressed in
// minutes since midnight, half-open.
type Window struct {
	Start int
	End   int
}

// ClockOverlaps reports whether two same-day wall-clock windows overlap.
func ClockOverlaps(a, b Window) bool {
	return a.Start < b.End && b.Start < a.End
}

// SubtractWindows removes every block interval from each window, returning the
// remaining free windows in order.
func SubtractWindows(windows, blocks []Window) []Window {
	free := make([]Window, 0, len(windows))
	free = append(free, windows...)

	for _, block := range blocks {
		next := make([]Window, 0, len(free))
		for _, w := range free {
			if !ClockOverlaps(w, block) {
				next = append(next, w)
				continue
			}
			if w.Start < block.Start {
				next = append(next, Window{Start: w.Start, End: block.Start})
			}
			if block.End < w.End {
				next = append(next, Window{Start: block.End, End: w.End})
			}
		}
		free = next
	}
	return free
}
