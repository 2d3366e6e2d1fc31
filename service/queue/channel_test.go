package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsift/evidence-go/model"
)

func TestPublishBeforeSubscribeIsBuffered(t *testing.T) {
	svc := NewChannel(context.Background())

	require.NoError(t, svc.Publish(model.Run{ID: "a"}))
	require.NoError(t, svc.Publish(model.Run{ID: "b"}))

	stream, err := svc.Subscribe()
	require.NoError(t, err)

	assert.Equal(t, "a", (<-stream).ID)
	assert.Equal(t, "b", (<-stream).ID)
}

func TestDoubleSubscribeFails(t *testing.T) {
	svc := NewChannel(context.Background())

	_, err := svc.Subscribe()
	require.NoError(t, err)

	_, err = svc.Subscribe()
	assert.Error(t, err)

	require.NoError(t, svc.Unsubscribe())
	_, err = svc.Subscribe()
	assert.NoError(t, err)
}

func TestUnsubscribeWithoutSubscribeFails(t *testing.T) {
	svc := NewChannel(context.Background())
	assert.Error(t, svc.Unsubscribe())
}

func TestPublishAfterShutdownFails(t *testing.T) {
	canxCtx, canxFn := context.WithCancel(context.Background())
	svc := NewChannel(canxCtx)
	canxFn()

	assert.Error(t, svc.Publish(model.Run{ID: "a"}))
}

func TestPublishFullQueueFails(t *testing.T) {
	svc := NewChannel(context.Background())

	for i := 0; i < pendingBuffer; i++ {
		require.NoError(t, svc.Publish(model.Run{}))
	}
	assert.Error(t, svc.Publish(model.Run{}))
}
