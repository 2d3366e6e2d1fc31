package pipeline

import (
	"sort"

	"github.com/clipsift/evidence-go/model"
)

// Accumulator converts an ordered stream of detection events into ordered,
// non-overlapping evidence segments. Matching events closer together than
// the gap tolerance share a segment; emitted segments are padded by the
// margin, clamped to the video bounds and never into a neighbor (the pad is
// capped at the midpoint of the gap between two raw segments).
//
// The accumulator is pure bookkeeping over model types so it can be tested
// without any decoding or inference.
type Accumulator struct {
	pred        Predicate
	gapSec      float64
	marginSec   float64
	durationSec float64

	open      bool
	rawStart  float64
	rawEnd    float64
	padStart  float64 // left pad already resolved when the segment opened
	labels    map[string]bool
	frames    int
	peak      float32
	lastEmit  float64 // padded end of the previously emitted segment
	hasEmit   bool
	lastMatch float64
}

// NewAccumulator builds an accumulator for one run. durationSec caps the
// trailing margin; pass the probed video duration, or 0 if unknown.
func NewAccumulator(pred Predicate, gapSec, marginSec, durationSec float64) *Accumulator {
	return &Accumulator{
		pred:        pred,
		gapSec:      gapSec,
		marginSec:   marginSec,
		durationSec: durationSec,
	}
}

// Observe feeds one event. When the event's distance from the previous match
// exceeds the gap tolerance, the in-progress segment is emitted and a new one
// opens at this event. Non-matching events never split or extend a segment.
func (a *Accumulator) Observe(ev model.DetectionEvent) (model.Segment, bool) {
	if !a.pred.Match(ev) {
		return model.Segment{}, false
	}

	if !a.open {
		a.openAt(ev)
		return model.Segment{}, false
	}

	if ev.TimeSec-a.lastMatch <= a.gapSec {
		a.extend(ev)
		return model.Segment{}, false
	}

	// Gap exceeded: close the current segment, capping its trailing pad at
	// the midpoint toward this event so neighbors cannot overlap.
	midpoint := (a.rawEnd + ev.TimeSec) / 2
	seg := a.close(midpoint)
	a.openAt(ev)
	if a.padStart < seg.EndSec {
		a.padStart = seg.EndSec
	}
	return seg, true
}

// Flush emits the in-progress segment, if any. Call once after the event
// stream ends.
func (a *Accumulator) Flush() (model.Segment, bool) {
	if !a.open {
		return model.Segment{}, false
	}
	end := a.rawEnd + a.marginSec
	if a.durationSec > 0 && end > a.durationSec {
		end = a.durationSec
	}
	return a.close(end), true
}

func (a *Accumulator) openAt(ev model.DetectionEvent) {
	a.open = true
	a.rawStart = ev.TimeSec
	a.rawEnd = ev.TimeSec
	a.lastMatch = ev.TimeSec
	a.labels = map[string]bool{}
	a.frames = 0
	a.peak = 0

	a.padStart = ev.TimeSec - a.marginSec
	if a.padStart < 0 {
		a.padStart = 0
	}
	if a.hasEmit && a.padStart < a.lastEmit {
		a.padStart = a.lastEmit
	}

	a.extend(ev)
}

func (a *Accumulator) extend(ev model.DetectionEvent) {
	a.rawEnd = ev.TimeSec
	a.lastMatch = ev.TimeSec
	a.frames++
	for _, d := range ev.Detections {
		a.labels[d.Label] = true
		if d.Confidence > a.peak {
			a.peak = d.Confidence
		}
	}
}

func (a *Accumulator) close(padEndLimit float64) model.Segment {
	end := a.rawEnd + a.marginSec
	if end > padEndLimit {
		end = padEndLimit
	}
	if a.durationSec > 0 && end > a.durationSec {
		end = a.durationSec
	}
	if end < a.rawEnd {
		end = a.rawEnd
	}

	labels := make([]string, 0, len(a.labels))
	for label := range a.labels {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	seg := model.Segment{
		StartSec:       a.padStart,
		EndSec:         end,
		Labels:         labels,
		MatchingFrames: a.frames,
		PeakConfidence: a.peak,
	}

	a.open = false
	a.lastEmit = end
	a.hasEmit = true
	return seg
}
