package notify

import (
	"context"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestQueueDoesNotBlock(t *testing.T) {
	// notifier whose publish loop never starts: the queue must still accept
	// a burst and then reject instead of stalling the pipeline
	n := New("tcp://127.0.0.1:1883", func(task func(context.Context) error) {}, nil)

	for i := 0; i < 100; i++ {
		assert.Ok(t, n.Publish(Event{Kind: RunReduced, RunNumber: 1000 + i}))
	}

	err := n.Publish(Event{Kind: RunReduced, RunNumber: 2000})
	assert.Assert(t, err != nil)
}

func TestTopicFor(t *testing.T) {
	assert.EqualString(t, topicFor(RunReduced), "hidra/run-reduced")
	assert.EqualString(t, topicFor(RunFailed), "hidra/run-failed")
}
