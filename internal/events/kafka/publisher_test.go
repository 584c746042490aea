package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"economy/internal/events"
)

func TestResolveTopic(t *testing.T) {
	assert.Equal(t, events.TopicTransactionRecorded, NewPublisher([]string{"localhost:9092"}, "").resolveTopic(events.TopicTransactionRecorded))
	assert.Equal(t, "ledger", NewPublisher([]string{"localhost:9092"}, "ledger").resolveTopic(events.TopicTransactionRecorded))
}

func TestPublish_RejectsUnmarshalableEvent(t *testing.T) {
	p := NewPublisher([]string{"127.0.0.1:1"}, "")
	defer p.Close()

	err := p.Publish(context.Background(), "t", make(chan int))
	require.Error(t, err)
}
