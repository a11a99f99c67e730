// Package agentmq connects the orchestrator to build agents over AMQP.
// Dispatch and cancel messages are published to per-agent queues; agents
// push started, log and completion messages back on shared queues with
// at-least-once delivery.
package agentmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/utils"
)

// Queue names. Per-agent queues carry the agent address as suffix.
const (
	dispatchQueuePrefix = "buildci.dispatch."
	cancelQueuePrefix   = "buildci.cancel."
	StartedQueue        = "buildci.started"
	LogQueue            = "buildci.logs"
	CompletionQueue     = "buildci.completions"
)

// Publisher sends fire-and-forget messages to build agents.
type Publisher struct {
	connectionString string
}

func NewPublisher(connectionString string) *Publisher {
	return &Publisher{connectionString: connectionString}
}

// Dispatch sends a build job to an agent's dispatch queue.
func (p *Publisher) Dispatch(ctx context.Context, agentAddress string, msg *protocol.DispatchMessage) error {
	return p.publish(ctx, dispatchQueuePrefix+agentAddress, msg)
}

// Cancel asks an agent to abort a job, best effort.
func (p *Publisher) Cancel(ctx context.Context, agentAddress string, msg *protocol.CancelMessage) error {
	return p.publish(ctx, cancelQueuePrefix+agentAddress, msg)
}

func (p *Publisher) publish(ctx context.Context, queue string, msg any) error {
	conn, err := amqp091.Dial(p.connectionString)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrAgentUnreachable, err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrAgentUnreachable, err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrAgentUnreachable, err)
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(msg); err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",     // exchange
		q.Name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body.Bytes(),
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrAgentUnreachable, err)
	}

	return nil
}
