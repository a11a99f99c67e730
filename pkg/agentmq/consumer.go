package agentmq

import (
	"context"
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"

	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/utils"
)

// CompletionHandler receives build outcomes from agents.
type CompletionHandler interface {
	ReportCompletion(ctx context.Context, buildJobID string, outcome protocol.BuildOutcome) error
}

// Consumer drains the agent-to-orchestrator queues. Delivery is
// at-least-once; duplicate completions are resolved by the correlator,
// not here.
type Consumer struct {
	connectionString string

	completions CompletionHandler
	started     func(msg *protocol.StartedMessage)
	logs        func(msg *protocol.LogMessage)

	pool *utils.WorkerPool
}

func NewConsumer(connectionString string, completions CompletionHandler,
	started func(*protocol.StartedMessage), logs func(*protocol.LogMessage), concurrency int) *Consumer {
	return &Consumer{
		connectionString: connectionString,
		completions:      completions,
		started:          started,
		logs:             logs,
		pool:             utils.NewWorkerPool(concurrency),
	}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp091.Dial(c.connectionString)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, queue := range []string{StartedQueue, LogQueue, CompletionQueue} {
		_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
		if err != nil {
			return err
		}
	}

	started, err := ch.Consume(StartedQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	logs, err := ch.Consume(LogQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	completions, err := ch.Consume(CompletionQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.pool.Start()
	defer c.pool.Stop()

	log.Info("consuming agent queues")
	for {
		select {
		case <-ctx.Done():
			c.pool.Wait()
			return nil

		case delivery, ok := <-started:
			if !ok {
				return nil
			}
			c.handleStarted(delivery)

		case delivery, ok := <-logs:
			if !ok {
				return nil
			}
			c.handleLogs(delivery)

		case delivery, ok := <-completions:
			if !ok {
				return nil
			}
			c.handleCompletion(ctx, delivery)
		}
	}
}

func (c *Consumer) handleStarted(delivery amqp091.Delivery) {
	var msg protocol.StartedMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Warnf("err - agent - malformed started message: %v", err)
		delivery.Nack(false, false)
		return
	}

	c.started(&msg)
	delivery.Ack(false)
}

func (c *Consumer) handleLogs(delivery amqp091.Delivery) {
	var msg protocol.LogMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Warnf("err - agent - malformed log message: %v", err)
		delivery.Nack(false, false)
		return
	}

	c.logs(&msg)
	delivery.Ack(false)
}

func (c *Consumer) handleCompletion(ctx context.Context, delivery amqp091.Delivery) {
	var msg protocol.CompletionMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Warnf("err - agent - malformed completion message: %v", err)
		delivery.Nack(false, false)
		return
	}

	if msg.Outcome.Status == protocol.BuildStatusTimedOut {
		// Agents do not self-report timeouts. The sweep owns them.
		log.Warnf("err - agent - self-reported timeout dropped - id: %s", msg.BuildJobID)
		delivery.Ack(false)
		return
	}

	c.pool.SubmitOrRun(func() {
		// Unknown and duplicate completions are dropped by the
		// correlator, the delivery is acked regardless.
		if err := c.completions.ReportCompletion(ctx, msg.BuildJobID, msg.Outcome); err != nil {
			log.Debugf("int - agent - completion dropped - id: %s: %v", msg.BuildJobID, err)
		}
		delivery.Ack(false)
	})
}
