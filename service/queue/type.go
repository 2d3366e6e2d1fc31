package queue

import "github.com/clipsift/evidence-go/model"

// IService hands pending analysis requests to whoever is running them.
// The HTTP surface publishes; the serve-mode manager subscribes.
type IService interface {
	Publish(run model.Run) error
	Subscribe() (<-chan model.Run, error)
	Unsubscribe() error
}
