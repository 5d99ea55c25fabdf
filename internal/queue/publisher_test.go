package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublisher_UnreachableBrokerDoesNotBlockCallers(t *testing.T) {
	release := make(chan struct{})
	var dials atomic.Int32
	blocking := func(string) (*amqp.Connection, error) {
		dials.Add(1)
		<-release
		return nil, errors.New("connect: i/o timeout")
	}
	p := newPublisher("amqp://broker.invalid", quietLog(), blocking, 2)

	start := time.Now()
	var queued, dropped int
	for i := 0; i < 10; i++ {
		err := p.PublishImageEvent(context.Background(), ImageEvent{Kind: ImageCreated, ImageID: uint64(i + 1)})
		switch {
		case err == nil:
			queued++
		case errors.Is(err, ErrEventDropped):
			dropped++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, queued, 2)
	assert.Positive(t, dropped)

	close(release)
	closed := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	// one failed dial puts the publisher into backoff for the rest of the buffer
	assert.Equal(t, int32(1), dials.Load())
}

func TestPublisher_RejectsAfterClose(t *testing.T) {
	p := newPublisher("amqp://broker.invalid", quietLog(), func(string) (*amqp.Connection, error) {
		return nil, errors.New("refused")
	}, 4)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.PublishImageEvent(context.Background(), ImageEvent{Kind: ImageDeleted, ImageID: 1})
	assert.ErrorIs(t, err, ErrPublisherClosed)
}
