package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/internal/dispatch"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbit spins up a RabbitMQ container and returns an open connection.
func setupRabbit(t *testing.T) *amqp.Connection {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	conn, err := dispatch.Dial("amqp://guest:guest@" + host + ":" + port.Port() + "/")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestAMQP_PublishConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	conn := setupRabbit(t)
	queue := "researchmate.test." + uuid.NewString()[:8]

	var mu sync.Mutex
	var seen []uuid.UUID
	consumer, err := dispatch.NewAMQPConsumer(conn, queue, 2, func(_ context.Context, id uuid.UUID) {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, consumer.Start(context.Background()))

	publisher, err := dispatch.NewAMQPPublisher(conn, queue)
	require.NoError(t, err)
	defer publisher.Close()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, publisher.Dispatch(context.Background(), id))
	}

	waitFor(t, 10*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == len(ids)
	})
	assert.ElementsMatch(t, ids, seen)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, consumer.Stop(ctx))
}

func TestAMQP_MalformedMessageIsDropped(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	conn := setupRabbit(t)
	queue := "researchmate.test." + uuid.NewString()[:8]

	called := make(chan uuid.UUID, 2)
	consumer, err := dispatch.NewAMQPConsumer(conn, queue, 1, func(_ context.Context, id uuid.UUID) {
		called <- id
	})
	require.NoError(t, err)
	require.NoError(t, consumer.Start(context.Background()))

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.PublishWithContext(context.Background(), "", queue, false, false,
		amqp.Publishing{Body: []byte("not-a-uuid")}))

	publisher, err := dispatch.NewAMQPPublisher(conn, queue)
	require.NoError(t, err)
	defer publisher.Close()
	good := uuid.New()
	require.NoError(t, publisher.Dispatch(context.Background(), good))

	select {
	case id := <-called:
		assert.Equal(t, good, id)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer never handled the valid message")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, consumer.Stop(ctx))
}
