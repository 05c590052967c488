package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueKeyIsNamespaced(t *testing.T) {
	r := NewRedis("localhost:6379")
	assert.Equal(t, "schoolhub:notifications", r.QueueKey("notifications"))
}

func TestHealthyHandlesNil(t *testing.T) {
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.False(t, (&Redis{}).Healthy(context.Background()))
}
