// Package notify hands upload summaries to a dispatcher. The AMQP notifier
// publishes them to a topic exchange where the mailer picks them up; the log
// notifier is used when no broker is configured.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// DefaultExchange is the topic exchange summaries are published to.
const DefaultExchange = "upload_summaries"

// DefaultRoutingPrefix prefixes the upload id in the routing key.
const DefaultRoutingPrefix = "upload"

// Summary is the message body sent for each processed upload.
type Summary struct {
	UploadID          string `json:"uploadId"`
	FileName          string `json:"fileName"`
	Success           bool   `json:"success"`
	TotalRecords      int    `json:"totalRecords"`
	SuccessfulRecords int    `json:"successfulRecords"`
	FailedRecords     int    `json:"failedRecords"`
	InvalidRecords    int    `json:"invalidRecords"`
	DuplicateRecords  int    `json:"duplicateRecords"`
	ErrorCount        int    `json:"errorCount"`
	DurationMs        int64  `json:"durationMs"`
	Subject           string `json:"subject"`
	Text              string `json:"text"`
}

// BuildSummary renders the message for result.
func BuildSummary(result *ingest.UploadResult, fileName string) Summary {
	s := Summary{
		UploadID:          result.UploadID,
		FileName:          fileName,
		Success:           result.Success,
		TotalRecords:      result.TotalRecords,
		SuccessfulRecords: result.SuccessfulRecords,
		FailedRecords:     result.FailedRecords,
		InvalidRecords:    result.InvalidRecords,
		DuplicateRecords:  len(result.Duplicates),
		ErrorCount:        len(result.Errors),
		DurationMs:        result.Duration.Milliseconds(),
	}

	switch {
	case result.Error != "":
		s.Subject = fmt.Sprintf("Upload of %s failed", fileName)
		s.Text = result.Error
	case result.Success:
		s.Subject = fmt.Sprintf("Upload of %s completed", fileName)
		s.Text = fmt.Sprintf("%d of %d applications created.", s.SuccessfulRecords, s.TotalRecords)
	default:
		s.Subject = fmt.Sprintf("Upload of %s completed with issues", fileName)
		s.Text = fmt.Sprintf(
			"%d of %d applications created. %d invalid rows, %d duplicates, %d rows failed to save.",
			s.SuccessfulRecords, s.TotalRecords, s.InvalidRecords, s.DuplicateRecords, s.FailedRecords,
		)
	}
	return s
}

// channel is the part of *amqp.Channel the notifier uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes summaries over a shared RabbitMQ connection.
type AMQPNotifier struct {
	conn          *amqp.Connection
	exchange      string
	routingPrefix string
	open          func() (channel, error)
}

var _ ingest.Notifier = (*AMQPNotifier)(nil)

// DialAMQP connects to url and declares the topic exchange.
func DialAMQP(url, exchange, routingPrefix string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	if routingPrefix == "" {
		routingPrefix = DefaultRoutingPrefix
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPNotifier{
		conn:          conn,
		exchange:      exchange,
		routingPrefix: routingPrefix,
		open: func() (channel, error) {
			return conn.Channel()
		},
	}, nil
}

// SendSummary publishes the summary for result. Channels are short lived;
// the connection is shared.
func (n *AMQPNotifier) SendSummary(ctx context.Context, result *ingest.UploadResult, fileName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(BuildSummary(result, fileName))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	ch, err := n.open()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	return ch.Publish(
		n.exchange,
		n.RoutingKey(result.UploadID),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    result.UploadID,
			Body:         body,
		},
	)
}

// RoutingKey returns the key a summary for uploadID is published under.
func (n *AMQPNotifier) RoutingKey(uploadID string) string {
	return n.routingPrefix + "." + uploadID
}

// Close closes the broker connection.
func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// LogNotifier writes summaries to the log.
type LogNotifier struct{}

var _ ingest.Notifier = LogNotifier{}

// SendSummary logs the summary for result.
func (LogNotifier) SendSummary(ctx context.Context, result *ingest.UploadResult, fileName string) error {
	s := BuildSummary(result, fileName)
	logging.WithFields(ctx, "upload_id", s.UploadID, "file", fileName).
		Info("upload summary", "subject", s.Subject, "text", s.Text)
	return nil
}
