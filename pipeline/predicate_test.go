package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipsift/evidence-go/model"
)

func TestLabelMatch(t *testing.T) {
	pred := NewLabelMatch([]string{"Person", "car"}, 0.5)

	tests := []struct {
		name  string
		event model.DetectionEvent
		want  bool
	}{
		{
			name:  "no detections",
			event: model.DetectionEvent{TimeSec: 1.0},
			want:  false,
		},
		{
			name: "matching label above floor",
			event: model.DetectionEvent{Detections: []model.Detection{
				{Label: "person", Confidence: 0.8},
			}},
			want: true,
		},
		{
			name: "matching label below floor",
			event: model.DetectionEvent{Detections: []model.Detection{
				{Label: "person", Confidence: 0.4},
			}},
			want: false,
		},
		{
			name: "label casing is ignored",
			event: model.DetectionEvent{Detections: []model.Detection{
				{Label: "CAR", Confidence: 0.9},
			}},
			want: true,
		},
		{
			name: "unlisted label",
			event: model.DetectionEvent{Detections: []model.Detection{
				{Label: "dog", Confidence: 0.9},
			}},
			want: false,
		},
		{
			name: "one qualifying among several",
			event: model.DetectionEvent{Detections: []model.Detection{
				{Label: "dog", Confidence: 0.9},
				{Label: "car", Confidence: 0.3},
				{Label: "car", Confidence: 0.7},
			}},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pred.Match(tc.event))
		})
	}
}

func TestLabelMatchEmptySetAcceptsAnyLabel(t *testing.T) {
	pred := NewLabelMatch(nil, 0.5)

	assert.True(t, pred.Match(model.DetectionEvent{Detections: []model.Detection{
		{Label: "giraffe", Confidence: 0.6},
	}}))
	assert.False(t, pred.Match(model.DetectionEvent{Detections: []model.Detection{
		{Label: "giraffe", Confidence: 0.1},
	}}))
}
