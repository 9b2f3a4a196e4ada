package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/budgetwise/backend/internal/observability"
)

// Dispatcher decouples OTP issuance from mail transport: Enqueue never
// blocks on SMTP and never reports delivery errors to the caller. By the
// time a message is queued the code is already persisted, so the caller's
// "OTP sent" acknowledgment means "code stored", not "code delivered".
// Failed or dropped deliveries are logged; the user's remedy is to request
// a new code.
type Dispatcher struct {
	mailer  OTPMailer
	logger  *slog.Logger
	queue   chan OTPMessage
	timeout time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(mailer OTPMailer, logger *slog.Logger, workers, queueLen int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueLen <= 0 {
		queueLen = 16
	}
	d := &Dispatcher{
		mailer:  mailer,
		logger:  logger,
		queue:   make(chan OTPMessage, queueLen),
		timeout: 30 * time.Second,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue hands a message to the worker pool. A full or closed queue drops
// the message rather than stalling the issuing request.
func (d *Dispatcher) Enqueue(msg OTPMessage) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		observability.RecordMailDispatch(context.Background(), string(msg.Purpose), "dropped")
		d.logger.Warn("mail dispatcher closed, dropping otp mail",
			"to", msg.To, "purpose", string(msg.Purpose))
		return
	}
	select {
	case d.queue <- msg:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		observability.RecordMailDispatch(context.Background(), string(msg.Purpose), "dropped")
		d.logger.Warn("mail queue full, dropping otp mail",
			"to", msg.To, "purpose", string(msg.Purpose))
	}
}

// Close stops accepting work and waits for in-flight sends to finish.
// Enqueue calls arriving after Close drop their message.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.mailer.SendOTP(ctx, msg)
		cancel()
		if err != nil {
			observability.RecordMailDispatch(context.Background(), string(msg.Purpose), "failure")
			d.logger.Error("otp mail delivery failed",
				"to", msg.To, "purpose", string(msg.Purpose), "error", err)
			continue
		}
		observability.RecordMailDispatch(context.Background(), string(msg.Purpose), "success")
		d.logger.Info("otp mail delivered", "to", msg.To, "purpose", string(msg.Purpose))
	}
}
