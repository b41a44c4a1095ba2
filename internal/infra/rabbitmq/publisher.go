package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "exam.harvest"
	DefaultQueue    = "exam-harvest-questions"
	// RoutingKey tags AI-generated question batches.
	RoutingKey = "questions.generated"

	publishTimeout = 5 * time.Second
)

// Publisher sends AI-generated batches to the harvest exchange. With an empty
// URI it is disabled and drops batches after logging them.
type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
}

func NewPublisher(uri, exchange string) (*Publisher, error) {
	if uri == "" {
		log.Println("[harvest] amqp uri is empty, harvesting via broker is disabled")
		return &Publisher{enabled: false}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
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
	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
	}, nil
}

// Enabled reports whether batches actually reach a broker.
func (p *Publisher) Enabled() bool { return p.enabled }

// Harvest implements exam.Harvester.
func (p *Publisher) Harvest(ctx context.Context, batch domain.HarvestBatch) error {
	if !p.enabled {
		log.Printf("[harvest] publishing disabled, dropping batch of %d", len(batch.Questions))
		return nil
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = p.channel.PublishWithContext(pubCtx, p.exchange, RoutingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		log.Printf("[harvest] close channel: %v", err)
	}
	return p.conn.Close()
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}
