//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/chorbazzar/internal/domain/order"
)

func startRabbitMQ(t *testing.T) *amqp.Connection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	conn, err := amqp.DialConfig("amqp://"+host+":"+port.Port()+"/", amqp.Config{
		Dial: amqp.DefaultDial(10 * time.Second),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPublisher_OrderPlaced(t *testing.T) {
	conn := startRabbitMQ(t)

	pub, err := NewPublisher(conn, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, OrderPlacedRoutingKey, DefaultExchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	o := &order.Order{ID: "order-42", SessionID: "s", Email: "a@b.co", Total: decimal.RequireFromString("12.5")}
	require.NoError(t, pub.PublishOrderPlaced(context.Background(), o))

	select {
	case d := <-deliveries:
		assert.Equal(t, "order-42", d.MessageId)
		assert.Equal(t, "OrderPlaced", d.Type)
		assert.Contains(t, string(d.Body), `"total":12.50`)
	case <-time.After(10 * time.Second):
		t.Fatal("no delivery")
	}
}
