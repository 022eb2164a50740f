package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/interfaces"
)

func TestPublishSync_DeliversToAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var count int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventJobProgress, handler))
	require.NoError(t, svc.Subscribe(interfaces.EventJobProgress, handler))
	require.NoError(t, svc.Subscribe(interfaces.EventJobCompleted, handler))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventJobProgress})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&count), "only handlers for the published type run")
}

func TestPublish_Async(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, svc.Subscribe(interfaces.EventJobCreated, func(ctx context.Context, event interfaces.Event) error {
		defer wg.Done()
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCreated}))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestPublishSync_PanickingHandlerIsContained(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var delivered int32
	require.NoError(t, svc.Subscribe(interfaces.EventJobFailed, func(ctx context.Context, event interfaces.Event) error {
		panic("bad handler")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventJobFailed, func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventJobFailed})
	assert.Error(t, err, "panic surfaces as an aggregate error")
	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered), "healthy handler still runs")
}

func TestSubscribe_NilHandlerRejected(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.Error(t, svc.Subscribe(interfaces.EventJobCreated, nil))
}

func TestClose_RejectsNewSubscriptions(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	require.NoError(t, svc.Close())

	err := svc.Subscribe(interfaces.EventJobCreated, func(ctx context.Context, event interfaces.Event) error {
		return nil
	})
	assert.Error(t, err)
}
