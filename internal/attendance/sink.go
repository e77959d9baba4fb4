package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"classportal/internal/logger"
	"classportal/internal/queue"
)

// MessageType tags join jobs on the queue.
const MessageType = "attendance.join"

// Join is a request to record attendance for a learner.
type Join struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// Sink accepts join jobs.
type Sink interface {
	Submit(ctx context.Context, j Join) error
}

// InlineSink records attendance on the caller's goroutine.
type InlineSink struct {
	Recorder *Recorder
}

func (s InlineSink) Submit(ctx context.Context, j Join) error {
	return s.Recorder.Record(ctx, j.UserID, j.SessionID, j.At).Err
}

// QueueSink publishes join jobs for a Consumer.
type QueueSink struct {
	Queue queue.Queue
}

func (s QueueSink) Submit(ctx context.Context, j Join) error {
	body, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return s.Queue.Publish(ctx, queue.Message{Type: MessageType, Body: body})
}

// Consumer drains join jobs into a Recorder.
type Consumer struct {
	Queue    queue.Queue
	Recorder *Recorder
	Log      logrus.FieldLogger
}

// Run processes messages until ctx is cancelled or the queue closes.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = logger.Logger
	}
	messages, err := c.Queue.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != MessageType {
			log.WithField("type", msg.Type).Debug("ignoring message")
			continue
		}
		var j Join
		if err := json.Unmarshal(msg.Body, &j); err != nil {
			log.WithError(err).Warn("malformed join message")
			continue
		}
		c.Recorder.Record(ctx, j.UserID, j.SessionID, j.At)
	}
	return nil
}
