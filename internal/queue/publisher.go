package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ImageEventsQueue is the durable queue image events are published to.
const ImageEventsQueue = "gallery.image.events"

const (
	// DialTimeout bounds a single TCP connect to the broker.
	DialTimeout = 5 * time.Second

	publishBuffer  = 256
	publishTimeout = 5 * time.Second
	redialBackoff  = 2 * time.Second
)

var (
	// ErrEventDropped is returned when the publish buffer is full.
	ErrEventDropped = errors.New("event buffer full, event dropped")
	// ErrPublisherClosed is returned after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)

// dial opens a broker connection whose connect step gives up after timeout.
func dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// Publisher publishes image events to RabbitMQ. PublishImageEvent only
// queues the event in a bounded buffer; a single goroutine owns the
// connection and sends, so a slow or unreachable broker never holds up the
// caller.
type Publisher struct {
	url  string
	log  *slog.Logger
	dial func(url string) (*amqp.Connection, error)

	events    chan ImageEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by run
	conn     *amqp.Connection
	ch       *amqp.Channel
	failedAt time.Time
}

// NewPublisher returns a running Publisher for url. Nothing is dialled until
// the first event arrives.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	return newPublisher(url, log, func(u string) (*amqp.Connection, error) {
		return dial(u, DialTimeout)
	}, publishBuffer)
}

func newPublisher(url string, log *slog.Logger, dialFn func(string) (*amqp.Connection, error), buffer int) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		url:    url,
		log:    log,
		dial:   dialFn,
		events: make(chan ImageEvent, buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// PublishImageEvent queues ev for delivery and returns at once. It fails
// with ErrEventDropped when the buffer is full.
func (p *Publisher) PublishImageEvent(_ context.Context, ev ImageEvent) error {
	select {
	case <-p.quit:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrEventDropped
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.events:
			p.deliver(ev)
		case <-p.quit:
			p.drain()
			p.shutdown()
			return
		}
	}
}

// drain flushes what is buffered while the channel is still open.
func (p *Publisher) drain() {
	for {
		select {
		case ev := <-p.events:
			if p.ch == nil || p.ch.IsClosed() {
				p.log.Warn("drop image event on shutdown", "kind", ev.Kind, "image_id", ev.ImageID)
				continue
			}
			p.deliver(ev)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ev ImageEvent) {
	if err := p.send(ev); err != nil {
		p.log.Warn("publish image event", "kind", ev.Kind, "image_id", ev.ImageID, "error", err)
	}
}

// channel returns an open channel with the queue declared. After a failed
// dial it refuses to redial until redialBackoff has passed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		if !p.failedAt.IsZero() && time.Since(p.failedAt) < redialBackoff {
			return nil, errors.New("broker unavailable, backing off")
		}
		conn, err := p.dial(p.url)
		if err != nil {
			p.failedAt = time.Now()
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		p.failedAt = time.Time{}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(ImageEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// send publishes ev as a persistent JSON message. A failed publish resets
// the channel so the next event reconnects.
func (p *Publisher) send(ev ImageEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, "", ImageEventsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Kind,
		Body:         body,
	})
	if err != nil {
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) shutdown() {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.log.Warn("close publisher channel", "error", err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.log.Warn("close publisher connection", "error", err)
		}
		p.conn = nil
	}
}

// Close stops accepting events, flushes the buffer if the broker is
// reachable and closes the connection. It waits for an in-flight dial to
// finish, which DialTimeout bounds.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.quit) })
	<-p.done
	return nil
}
