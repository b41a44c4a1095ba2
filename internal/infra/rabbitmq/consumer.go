package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"exam-prep-service/internal/domain"
	"github.com/rabbitmq/amqp091-go"
)

// BankWriter stores harvested questions (postgres.QuestionBank).
type BankWriter interface {
	Insert(ctx context.Context, batch domain.HarvestBatch) (int64, error)
}

// errPoison marks messages that can never succeed and must not be requeued.
var errPoison = errors.New("poison message")

// Consumer drains the harvest queue into the question bank.
type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	writer  BankWriter
}

func NewConsumer(uri, exchange, queue string, writer BankWriter) (*Consumer, error) {
	if uri == "" {
		return nil, errors.New("amqp uri is required to consume harvest batches")
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(channel, exchange); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	q, err := channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(q.Name, RoutingKey, exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	return &Consumer{conn: conn, channel: channel, queue: q.Name, writer: writer}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	log.Printf("[harvest] consuming %s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			err := handleDelivery(ctx, c.writer, msg.Body)
			switch {
			case err == nil:
				_ = msg.Ack(false)
			case errors.Is(err, errPoison):
				log.Printf("[harvest] dropping message: %v", err)
				_ = msg.Nack(false, false)
			default:
				log.Printf("[harvest] store batch: %v", err)
				_ = msg.Nack(false, true)
			}
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		log.Printf("[harvest] close channel: %v", err)
	}
	return c.conn.Close()
}

func handleDelivery(ctx context.Context, writer BankWriter, body []byte) error {
	var batch domain.HarvestBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	if len(batch.Questions) == 0 {
		return fmt.Errorf("%w: empty batch", errPoison)
	}
	n, err := writer.Insert(ctx, batch)
	if err != nil {
		return err
	}
	log.Printf("[harvest] stored %d/%d questions (standard=%q)", n, len(batch.Questions), batch.Standard)
	return nil
}
