package events

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/quiz-engine/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func roundTrip(t *testing.T, bus *Bus) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan models.ScoredEvent, 1)
	subscribed := make(chan struct{})
	go func() {
		close(subscribed)
		bus.Consume(ctx, func(e models.ScoredEvent) {
			select {
			case received <- e:
			default:
			}
		})
	}()
	<-subscribed

	event := models.ScoredEvent{
		AttemptID:  "attempt-1",
		Score:      1,
		Total:      2,
		Percentage: 50,
		Questions:  2,
		ScoredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	// the subscription may not be registered yet, so publish until it is seen
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		require.NoError(t, bus.PublishAttemptScored(ctx, event))
		select {
		case got := <-received:
			assert.Equal(t, event.AttemptID, got.AttemptID)
			assert.Equal(t, 50, got.Percentage)
			assert.True(t, event.ScoredAt.Equal(got.ScoredAt))
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("scored event was not delivered")
		}
	}
}

func TestGoChannelBus(t *testing.T) {
	bus, err := NewBus(Config{Backend: "gochannel", TopicName: "quiz.attempt_scored", Logger: testLogger()})
	require.NoError(t, err)
	defer bus.Close()

	roundTrip(t, bus)
}

func TestKafkaBus(t *testing.T) {
	brokers := os.Getenv("QUIZ_TEST_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("QUIZ_TEST_KAFKA_BROKERS not set, skipping")
	}

	bus, err := NewBus(Config{
		Backend:       "kafka",
		KafkaBrokers:  strings.Split(brokers, ","),
		TopicName:     "quiz.attempt_scored.test",
		ConsumerGroup: "quiz-engine-test",
		Logger:        testLogger(),
	})
	require.NoError(t, err)
	defer bus.Close()

	roundTrip(t, bus)
}

func TestUnsupportedBackend(t *testing.T) {
	_, err := NewBus(Config{Backend: "nats"})
	assert.Error(t, err)
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	require.NoError(t, m.PublishAttemptScored(context.Background(), models.ScoredEvent{AttemptID: "x"}))
	require.Len(t, m.Events(), 1)
	assert.Equal(t, "x", m.Events()[0].AttemptID)
}
