package pipeline

import (
	"strings"

	"github.com/clipsift/evidence-go/model"
)

// Predicate decides whether one frame's detections qualify as evidence.
// Implementations must be safe to call repeatedly on ordered events.
type Predicate interface {
	Match(ev model.DetectionEvent) bool
}

// LabelMatch qualifies an event when any detection carries one of the
// configured labels at or above the confidence floor. An empty label set
// accepts every label.
type LabelMatch struct {
	labels        map[string]bool
	minConfidence float32
}

func NewLabelMatch(labels []string, minConfidence float32) *LabelMatch {
	set := make(map[string]bool, len(labels))
	for _, label := range labels {
		set[strings.ToLower(label)] = true
	}
	return &LabelMatch{
		labels:        set,
		minConfidence: minConfidence,
	}
}

func (p *LabelMatch) Match(ev model.DetectionEvent) bool {
	for _, d := range ev.Detections {
		if d.Confidence < p.minConfidence {
			continue
		}
		if len(p.labels) == 0 || p.labels[strings.ToLower(d.Label)] {
			return true
		}
	}
	return false
}
