package transport

import (
	"context"
	"time"

	"github.com/sipeed/picobridge/internal/logger"
)

// Receiver is the long-running producer task spec §4.7 and §4.9
// describe: it polls Receive() at a configurable interval, backs off
// after consecutive errors, and emits each converted message to the
// orchestrator's input channel. It never drops a message: if the
// output channel is past its high-water mark it sleeps one poll
// interval and retries the same poll (spec §4.9 backpressure note).
type Receiver struct {
	client       *Client
	number       string
	pollInterval time.Duration
	out          chan<- IncomingMessage
	highWater    int
	queueLen     func() int
}

func NewReceiver(client *Client, number string, pollInterval time.Duration, out chan<- IncomingMessage, highWater int, queueLen func() int) *Receiver {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Receiver{
		client:       client,
		number:       number,
		pollInterval: pollInterval,
		out:          out,
		highWater:    highWater,
		queueLen:     queueLen,
	}
}

// Run blocks until ctx is cancelled. On cancellation it lets the
// in-flight poll finish (drains it) before returning.
func (r *Receiver) Run(ctx context.Context) {
	consecutiveErrors := 0
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if r.queueLen != nil && r.highWater > 0 && r.queueLen() >= r.highWater {
			continue
		}

		msgs, err := r.client.Receive(ctx, r.number)
		if err != nil {
			consecutiveErrors++
			backoff := backoffFor(consecutiveErrors, r.pollInterval)
			logger.WarnCF("transport", "receive poll failed", map[string]interface{}{
				"error":               err.Error(),
				"consecutive_errors":  consecutiveErrors,
				"backoff_ms":          backoff.Milliseconds(),
			})
			ticker.Reset(backoff)
			continue
		}
		consecutiveErrors = 0
		ticker.Reset(r.pollInterval)

		for _, m := range msgs {
			select {
			case r.out <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

// backoffFor grows linearly with consecutive failures, capped at 30x
// the base poll interval, so a stuck daemon never produces a
// tight-loop retry storm.
func backoffFor(consecutiveErrors int, base time.Duration) time.Duration {
	d := time.Duration(consecutiveErrors) * base
	cap := 30 * base
	if d > cap {
		d = cap
	}
	if d < base {
		d = base
	}
	return d
}
