package inference

// IService decides which frames are worth running through the model.
type IService interface {
	CanSkipFrame(frameIndex int) bool
}
