package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "campushub:jobs", Key("jobs"))
	assert.Equal(t, "campushub:ratelimit:", Key("ratelimit", ""))
}

func TestRedisHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(mr.Addr())
	defer r.Close()
	assert.True(t, r.Healthy(context.Background()))

	mr.Close()
	assert.False(t, r.Healthy(context.Background()))

	var none *Redis
	assert.Error(t, none.Ping(context.Background()))
	assert.NoError(t, none.Close())
}
