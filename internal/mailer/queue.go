package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Outcome counts deliveries by result label. prometheus.CounterVec fits.
type Outcome interface {
	Inc(outcome string)
}

type queuedMessage struct {
	msg     Message
	retries int
}

// Queue delivers messages in the background at a fixed rate, retrying failed
// sends with linear backoff.
type Queue struct {
	mailer   *Mailer
	ch       chan queuedMessage
	rate     time.Duration
	maxRetry int
	backoff  time.Duration
	logger   *slog.Logger
	outcome  Outcome
}

func NewQueue(m *Mailer, logger *slog.Logger, rate time.Duration, bufferSize, maxRetry int) *Queue {
	return &Queue{
		mailer:   m,
		ch:       make(chan queuedMessage, bufferSize),
		rate:     rate,
		maxRetry: maxRetry,
		backoff:  5 * time.Second,
		logger:   logger,
		outcome:  nopOutcome{},
	}
}

// WithOutcome records every final delivery result on o.
func (q *Queue) WithOutcome(o Outcome) *Queue {
	q.outcome = o
	return q
}

// Start processes queued messages at the configured rate until ctx is cancelled.
// On shutdown it drains any remaining messages before returning.
func (q *Queue) Start(ctx context.Context) error {
	ticker := time.NewTicker(q.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.drain()
			return nil
		case <-ticker.C:
			select {
			case item := <-q.ch:
				q.attempt(ctx, item)
			default:
			}
		}
	}
}

// Enqueue adds a message without blocking.
func (q *Queue) Enqueue(msg Message) error {
	select {
	case q.ch <- queuedMessage{msg: msg}:
		return nil
	default:
		q.outcome.Inc("dropped")
		return fmt.Errorf("mailer: queue full, message not queued")
	}
}

// Send queues a single-recipient message and reports whether it was accepted.
// Delivery happens later; a false result is never fatal to the caller.
func (q *Queue) Send(to, subject, html, text string) bool {
	if to == "" {
		return false
	}
	if err := q.Enqueue(Message{To: []string{to}, Subject: subject, HTML: html, Text: text}); err != nil {
		q.logger.Warn("mailer: enqueue failed", "to", to, "subject", subject, "err", err)
		return false
	}
	return true
}

// attempt sends a message, scheduling a context-aware retry with backoff on failure.
func (q *Queue) attempt(ctx context.Context, item queuedMessage) {
	err := q.mailer.send(item.msg)
	if err == nil {
		q.outcome.Inc("sent")
		return
	}

	if item.retries >= q.maxRetry {
		q.outcome.Inc("failed")
		q.logger.Error("mailer: message dropped after max retries", "to", item.msg.To, "subject", item.msg.Subject, "err", err)
		return
	}

	item.retries++
	backoff := time.Duration(item.retries) * q.backoff
	q.logger.Warn("mailer: send failed, retrying with backoff", "to", item.msg.To, "subject", item.msg.Subject, "retry", item.retries, "backoff", backoff, "err", err)

	go func() {
		select {
		case <-time.After(backoff):
			select {
			case q.ch <- item:
			default:
				q.outcome.Inc("dropped")
				q.logger.Error("mailer: requeue failed, queue full, message dropped", "to", item.msg.To)
			}
		case <-ctx.Done():
			q.logger.Warn("mailer: retry cancelled during shutdown", "to", item.msg.To)
		}
	}()
}

// drain flushes remaining queued messages on shutdown, best-effort.
func (q *Queue) drain() {
	for {
		select {
		case item := <-q.ch:
			if err := q.mailer.send(item.msg); err != nil {
				q.outcome.Inc("failed")
				q.logger.Error("mailer: drain send failed", "to", item.msg.To, "err", err)
				continue
			}
			q.outcome.Inc("sent")
		default:
			return
		}
	}
}

type nopOutcome struct{}

func (nopOutcome) Inc(string) {}
