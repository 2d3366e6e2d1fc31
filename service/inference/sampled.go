package inference

type sampledService struct {
	every int
}

// NewSampled keeps one frame out of every `every` frames. An `every` of 1
// (or less) analyzes everything.
func NewSampled(every int) IService {
	if every < 1 {
		every = 1
	}
	return &sampledService{every: every}
}

func (svc *sampledService) CanSkipFrame(frameIndex int) bool {
	if svc.every == 1 {
		return false
	}
	return frameIndex%svc.every != 0
}
