package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

func next(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok)
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
	}
	return Message{}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(2)

	msg, err := NewMessage("blob.cleanup", job{Bucket: "events", Path: "a.png"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))
	assert.Equal(t, 1, q.Len())

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	got := next(t, ch)
	assert.Equal(t, "blob.cleanup", got.Type)

	var j job
	require.NoError(t, got.Decode(&j))
	assert.Equal(t, job{Bucket: "events", Path: "a.png"}, j)
}

func TestRedisQueueFIFO(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewRedisQueue(client, "")

	for _, p := range []string{"one", "two"} {
		msg, err := NewMessage("blob.cleanup", job{Path: p})
		require.NoError(t, err)
		msg.Attempts = 2
		require.NoError(t, q.Publish(ctx, msg))
	}

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	var first, second job
	m := next(t, ch)
	require.NoError(t, m.Decode(&first))
	assert.Equal(t, 2, m.Attempts)
	require.NoError(t, next(t, ch).Decode(&second))
	assert.Equal(t, "one", first.Path)
	assert.Equal(t, "two", second.Path)
}
