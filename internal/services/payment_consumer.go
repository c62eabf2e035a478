package services

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
)

// paymentRecoveredMessage is the payload the billing ledger publishes on the
// payment_recovered queue. Either execution_id or subscription_id identifies
// the target; subscription_id requires tenant_id alongside it.
type paymentRecoveredMessage struct {
	TenantID       string `json:"tenant_id"`
	ExecutionID    string `json:"execution_id"`
	SubscriptionID string `json:"subscription_id"`
	Amount         int64  `json:"amount"`
}

// PaymentEventConsumer applies recovered payments arriving over RabbitMQ to
// their executions
type PaymentEventConsumer struct {
	rabbitMQ         *RabbitMQService
	executionService *ExecutionService
	stopChan         chan bool
}

func NewPaymentEventConsumer(rabbitMQ *RabbitMQService, executionService *ExecutionService) *PaymentEventConsumer {
	return &PaymentEventConsumer{
		rabbitMQ:         rabbitMQ,
		executionService: executionService,
		stopChan:         make(chan bool),
	}
}

// Start starts consuming payment events. No-op when the broker is not
// configured.
func (c *PaymentEventConsumer) Start() error {
	if c.rabbitMQ == nil {
		logrus.Warn("Payment event consumer disabled: RabbitMQ not configured")
		return nil
	}

	deliveries, err := c.rabbitMQ.GetChannel().Consume(
		PaymentRecoveredQueue, // queue
		"",                    // consumer
		false,                 // auto-ack
		false,                 // exclusive
		false,                 // no-local
		false,                 // no-wait
		nil,                   // args
	)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case delivery, ok := <-deliveries:
				if !ok {
					logrus.Warn("Payment event channel closed")
					return
				}
				if err := c.handle(delivery.Body); err != nil {
					logrus.Errorf("Failed to process payment event: %v", err)
				}
				// Malformed or stale messages are acked too; redelivery
				// cannot fix them
				if err := delivery.Ack(false); err != nil {
					logrus.Errorf("Failed to ack payment event: %v", err)
				}
			case <-c.stopChan:
				return
			}
		}
	}()

	logrus.Info("Payment event consumer started")
	return nil
}

// Stop stops the consumer goroutine
func (c *PaymentEventConsumer) Stop() {
	if c.rabbitMQ == nil {
		return
	}
	c.stopChan <- true
	logrus.Info("Payment event consumer stopped")
}

// handle applies one payment message to its execution
func (c *PaymentEventConsumer) handle(body []byte) error {
	var msg paymentRecoveredMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}
	if msg.Amount <= 0 {
		return ErrInvalidAmount
	}

	var err error
	switch {
	case msg.ExecutionID != "":
		_, err = c.executionService.RecordPaymentByID(msg.ExecutionID, msg.Amount)
	case msg.SubscriptionID != "" && msg.TenantID != "":
		_, err = c.executionService.RecordPaymentForSubscription(msg.TenantID, msg.SubscriptionID, msg.Amount)
	default:
		return errors.New("payment event missing execution_id or tenant_id+subscription_id")
	}

	// A payment for an already-settled or unknown execution is normal; the
	// ledger does not know our state
	if errors.Is(err, ErrExecutionNotFound) || errors.Is(err, ErrExecutionTerminal) {
		logrus.Debugf("Ignoring payment event: %v", err)
		return nil
	}
	return err
}
