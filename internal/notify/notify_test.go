package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/streadway/amqp"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
	err      error
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func newTestNotifier(ch *fakeChannel) *AMQPNotifier {
	return &AMQPNotifier{
		exchange:      DefaultExchange,
		routingPrefix: DefaultRoutingPrefix,
		open:          func() (channel, error) { return ch, nil },
	}
}

func TestBuildSummary(t *testing.T) {
	tests := []struct {
		name        string
		result      ingest.UploadResult
		wantSubject string
		wantText    string
	}{
		{
			name:        "success",
			result:      ingest.UploadResult{Success: true, TotalRecords: 2, SuccessfulRecords: 2},
			wantSubject: "Upload of s.csv completed",
			wantText:    "2 of 2 applications created.",
		},
		{
			name: "partial",
			result: ingest.UploadResult{
				TotalRecords:      4,
				SuccessfulRecords: 1,
				InvalidRecords:    1,
				FailedRecords:     1,
				Duplicates:        []ingest.StudentRecord{{Row: 5}},
				Errors:            []ingest.ValidationError{{Row: 3}, {Row: 4}},
			},
			wantSubject: "Upload of s.csv completed with issues",
			wantText:    "1 of 4 applications created. 1 invalid rows, 1 duplicates, 1 rows failed to save.",
		},
		{
			name:        "aborted",
			result:      ingest.UploadResult{Error: "parse error: invalid csv"},
			wantSubject: "Upload of s.csv failed",
			wantText:    "parse error: invalid csv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := BuildSummary(&tt.result, "s.csv")
			if s.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", s.Subject, tt.wantSubject)
			}
			if s.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", s.Text, tt.wantText)
			}
			if s.ErrorCount != len(tt.result.Errors) || s.DuplicateRecords != len(tt.result.Duplicates) {
				t.Errorf("counts = %+v", s)
			}
		})
	}
}

func TestAMQPNotifierPublishes(t *testing.T) {
	ch := &fakeChannel{}
	n := newTestNotifier(ch)

	result := &ingest.UploadResult{
		Success:           true,
		TotalRecords:      1,
		SuccessfulRecords: 1,
		UploadID:          "log-7",
		Duration:          1500 * time.Millisecond,
	}
	if err := n.SendSummary(context.Background(), result, "s.csv"); err != nil {
		t.Fatalf("SendSummary: %v", err)
	}

	if ch.exchange != DefaultExchange || ch.key != "upload.log-7" {
		t.Errorf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.ContentType != "application/json" || ch.msg.MessageId != "log-7" {
		t.Errorf("publishing = %+v", ch.msg)
	}
	if !ch.closed {
		t.Error("channel not closed after publish")
	}

	var got Summary
	if err := json.Unmarshal(ch.msg.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.UploadID != "log-7" || got.DurationMs != 1500 || !got.Success {
		t.Errorf("body = %+v", got)
	}
}

func TestAMQPNotifierErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel/connection is not open")}
	n := newTestNotifier(ch)
	result := &ingest.UploadResult{UploadID: "log-1"}

	if err := n.SendSummary(context.Background(), result, "s.csv"); err == nil || !strings.Contains(err.Error(), "not open") {
		t.Errorf("SendSummary err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.SendSummary(ctx, result, "s.csv"); !errors.Is(err, context.Canceled) {
		t.Errorf("SendSummary(cancelled) err = %v", err)
	}

	failing := &AMQPNotifier{open: func() (channel, error) { return nil, errors.New("boom") }}
	if err := failing.SendSummary(context.Background(), result, "s.csv"); err == nil {
		t.Error("expected error when channel cannot be opened")
	}
}

func TestLogNotifier(t *testing.T) {
	if err := (LogNotifier{}).SendSummary(context.Background(), &ingest.UploadResult{UploadID: "x"}, "s.csv"); err != nil {
		t.Errorf("LogNotifier.SendSummary = %v", err)
	}
}
