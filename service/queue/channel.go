package queue

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/service/lgr"
)

const pendingBuffer = 16

type channelService struct {
	canxCtx    context.Context
	subsCtx    context.Context
	subsCancel context.CancelFunc
	runChannel chan model.Run
}

// NewChannel is an in-process queue. Runs published while nobody is
// subscribed wait in the buffer (up to pendingBuffer).
func NewChannel(canxCtx context.Context) IService {
	return &channelService{
		canxCtx:    canxCtx,
		runChannel: make(chan model.Run, pendingBuffer),
	}
}

func (svc *channelService) Publish(run model.Run) error {
	if svc.canxCtx.Err() != nil {
		return xerrors.New("queue is shut down")
	}

	select {
	case svc.runChannel <- run:
		return nil
	default:
		return xerrors.New("queue is full")
	}
}

func (svc *channelService) Subscribe() (<-chan model.Run, error) {
	if svc.subsCtx != nil {
		lgr.Logger.Error("queue already subscribed. Unsubscribe first")
		return nil, xerrors.New("already subscribed. Unsubscribe first")
	}

	subsCtx, subsCancel := context.WithCancel(svc.canxCtx)
	svc.subsCtx = subsCtx
	svc.subsCancel = subsCancel

	return svc.runChannel, nil
}

func (svc *channelService) Unsubscribe() error {
	if svc.subsCtx == nil {
		return xerrors.New("not subscribed yet. Subscribe first")
	}

	svc.subsCancel()
	svc.subsCtx = nil
	svc.subsCancel = nil
	return nil
}
