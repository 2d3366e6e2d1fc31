package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsift/evidence-go/model"
)

func personAt(t float64, conf float32) model.DetectionEvent {
	return model.DetectionEvent{
		TimeSec: t,
		Detections: []model.Detection{
			{Label: "person", Confidence: conf},
		},
	}
}

func emptyAt(t float64) model.DetectionEvent {
	return model.DetectionEvent{TimeSec: t}
}

func collect(acc *Accumulator, events []model.DetectionEvent) []model.Segment {
	var segments []model.Segment
	for _, ev := range events {
		if seg, emitted := acc.Observe(ev); emitted {
			segments = append(segments, seg)
		}
	}
	if seg, emitted := acc.Flush(); emitted {
		segments = append(segments, seg)
	}
	return segments
}

func TestAccumulatorNoMatchesYieldsNothing(t *testing.T) {
	pred := NewLabelMatch([]string{"person"}, 0.5)
	acc := NewAccumulator(pred, 1.0, 0.5, 100)

	segments := collect(acc, []model.DetectionEvent{
		emptyAt(0.1),
		emptyAt(0.2),
		personAt(0.3, 0.2), // below the confidence floor
		emptyAt(0.4),
	})

	assert.Empty(t, segments)
}

func TestAccumulatorMergesWithinGap(t *testing.T) {
	pred := NewLabelMatch([]string{"person"}, 0.5)
	acc := NewAccumulator(pred, 1.0, 0.5, 100)

	segments := collect(acc, []model.DetectionEvent{
		personAt(1.0, 0.9),
		personAt(1.4, 0.8),
	})

	require.Len(t, segments, 1)
	assert.InDelta(t, 0.5, segments[0].StartSec, 1e-9)
	assert.InDelta(t, 1.9, segments[0].EndSec, 1e-9)
	assert.Equal(t, 2, segments[0].MatchingFrames)
	assert.Equal(t, []string{"person"}, segments[0].Labels)
	assert.Equal(t, float32(0.9), segments[0].PeakConfidence)
}

func TestAccumulatorSplitsBeyondGap(t *testing.T) {
	pred := NewLabelMatch([]string{"person"}, 0.5)
	acc := NewAccumulator(pred, 0.2, 0.5, 100)

	segments := collect(acc, []model.DetectionEvent{
		personAt(1.0, 0.9),
		personAt(1.4, 0.8),
	})

	require.Len(t, segments, 2)
	// Margins are capped at the midpoint of the gap so neighbors never
	// overlap.
	assert.InDelta(t, 0.5, segments[0].StartSec, 1e-9)
	assert.InDelta(t, 1.2, segments[0].EndSec, 1e-9)
	assert.InDelta(t, 1.2, segments[1].StartSec, 1e-9)
	assert.InDelta(t, 1.9, segments[1].EndSec, 1e-9)
}

func TestAccumulatorSingleFrameYieldsPaddedSegment(t *testing.T) {
	pred := NewLabelMatch([]string{"person"}, 0.5)
	acc := NewAccumulator(pred, 1.0, 0.5, 100)

	segments := collect(acc, []model.DetectionEvent{personAt(10.0, 0.7)})

	require.Len(t, segments, 1)
	assert.InDelta(t, 9.5, segments[0].StartSec, 1e-9)
	assert.InDelta(t, 10.5, segments[0].EndSec, 1e-9)
	assert.Equal(t, 1, segments[0].MatchingFrames)
}

func TestAccumulatorClampsToVideoBounds(t *testing.T) {
	pred := NewLabelMatch([]string{"person"}, 0.5)
	acc := NewAccumulator(pred, 1.0, 0.5, 10.2)

	segments := collect(acc, []model.DetectionEvent{
		personAt(0.1, 0.7),
		personAt(10.0, 0.7),
	})

	require.Len(t, segments, 2)
	assert.InDelta(t, 0.0, segments[0].StartSec, 1e-9)
	assert.InDelta(t, 10.2, segments[1].EndSec, 1e-9)
}

func TestAccumulatorSegmentsOrderedAndNonOverlapping(t *testing.T) {
	pred := NewLabelMatch(nil, 0.5)
	acc := NewAccumulator(pred, 0.5, 2.0, 60)

	events := []model.DetectionEvent{
		personAt(1.0, 0.9),
		personAt(1.2, 0.9),
		personAt(3.0, 0.9),
		personAt(3.1, 0.9),
		personAt(4.5, 0.9),
		personAt(20.0, 0.9),
	}
	segments := collect(acc, events)

	require.NotEmpty(t, segments)
	for i := 0; i < len(segments)-1; i++ {
		assert.Less(t, segments[i].StartSec, segments[i+1].StartSec)
		assert.LessOrEqual(t, segments[i].EndSec, segments[i+1].StartSec)
	}

	// Every matching frame falls inside exactly one segment.
	for _, ev := range events {
		inside := 0
		for _, seg := range segments {
			if ev.TimeSec >= seg.StartSec && ev.TimeSec <= seg.EndSec {
				inside++
			}
		}
		assert.Equal(t, 1, inside, "event at %.2f", ev.TimeSec)
	}
}

func TestAccumulatorNonMatchingEventsDoNotExtend(t *testing.T) {
	pred := NewLabelMatch([]string{"person"}, 0.5)
	acc := NewAccumulator(pred, 1.0, 0.0, 100)

	segments := collect(acc, []model.DetectionEvent{
		personAt(1.0, 0.9),
		emptyAt(1.5),
		emptyAt(3.0), // empties never bridge a gap
		personAt(5.0, 0.9),
	})

	require.Len(t, segments, 2)
	assert.InDelta(t, 1.0, segments[0].StartSec, 1e-9)
	assert.InDelta(t, 1.0, segments[0].EndSec, 1e-9)
	assert.InDelta(t, 5.0, segments[1].StartSec, 1e-9)
}

func TestAccumulatorUnionsLabels(t *testing.T) {
	pred := NewLabelMatch([]string{"person", "car"}, 0.5)
	acc := NewAccumulator(pred, 1.0, 0.5, 100)

	segments := collect(acc, []model.DetectionEvent{
		{TimeSec: 1.0, Detections: []model.Detection{{Label: "car", Confidence: 0.8}}},
		{TimeSec: 1.5, Detections: []model.Detection{{Label: "person", Confidence: 0.9}}},
	})

	require.Len(t, segments, 1)
	assert.Equal(t, []string{"car", "person"}, segments[0].Labels)
}
