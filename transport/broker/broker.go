// Package broker implements the RabbitMQ-mediated transport binding. Every
// service contract gets one shared, durable-less request queue that
// competing receivers consume from (a Polling Consumer, per Enterprise
// Integration Patterns); every dispatcher owns one anonymous, exclusive
// reply queue that only it consumes, so whichever receiver picks up a
// request always has a direct line back to the original caller via the
// request's reply-to correlation.
//
// Grounded on RabbitMQServiceBusDispatcher.java, RabbitMQServiceBusReceiver.java
// and RabbitMQClient.java. amqp091-go (github.com/rabbitmq/amqp091-go) is
// the one dependency in this module with no grounding anywhere in the
// example pack — nothing else in the corpus talks to a message broker, and
// the original's own transport is RabbitMQ-specific, so there's no
// pack-native alternative to reach for instead.
package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/codec"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
	"github.com/rob-signorelli/boson/router"
	"github.com/rob-signorelli/boson/transport"
)

const reaperInterval = 5 * time.Second

// Bindings is the broker transport.Bindings factory.
type Bindings struct {
	Codec codec.Codec
	Log   *zap.SugaredLogger
}

func (b Bindings) codec() codec.Codec {
	if b.Codec != nil {
		return b.Codec
	}
	return codec.Get(codec.TypeOptimized)
}

func (b Bindings) log() *zap.SugaredLogger {
	if b.Log != nil {
		return b.Log
	}
	l, _ := zap.NewProduction()
	return l.Sugar()
}

func amqpURL(config transport.Config) string {
	if config.AuthenticationPresent() {
		return fmt.Sprintf("amqp://%s:%s@%s", config.Username, config.Password, config.URI.Host)
	}
	return fmt.Sprintf("amqp://%s", config.URI.Host)
}

func (b Bindings) Dispatcher(serviceType string, config transport.Config) (transport.Dispatcher, error) {
	conn, err := amqp.Dial(amqpURL(config))
	if err != nil {
		return nil, &bosonerr.TransportError{Cause: err}
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, &bosonerr.TransportError{Cause: err}
	}
	if _, err := channel.QueueDeclare(serviceType, false, false, false, false, nil); err != nil {
		conn.Close()
		return nil, &bosonerr.TransportError{Cause: err}
	}
	if err := channel.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, &bosonerr.TransportError{Cause: err}
	}

	replyQueue, err := channel.QueueDeclare("", false, false, true, false, nil)
	if err != nil {
		conn.Close()
		return nil, &bosonerr.TransportError{Cause: err}
	}

	deliveries, err := channel.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, &bosonerr.TransportError{Cause: err}
	}

	d := &Dispatcher{
		serviceType: serviceType,
		config:      config,
		conn:        conn,
		channel:     channel,
		replyQueue:  replyQueue.Name,
		router:      router.New(b.log()),
		codec:       b.codec(),
		log:         b.log(),
		stop:        make(chan struct{}),
		connected:   true,
	}

	go d.watchResponseQueue(deliveries)
	go d.expiredRequestReaper()

	return d, nil
}

func (b Bindings) Receiver(serviceType string, config transport.Config) (transport.Receiver, error) {
	return &Receiver{
		serviceType: serviceType,
		config:      config,
		codec:       b.codec(),
		log:         b.log(),
	}, nil
}

func (b Bindings) String() string { return "broker" }

// Dispatcher puts requests on the shared request queue for serviceType and
// routes responses that arrive on its own exclusive reply queue back to
// the right caller via router.Router, grounded on
// RabbitMQServiceBusDispatcher's apply/watchResponseQueue/expiredRequestReaper.
type Dispatcher struct {
	serviceType string
	config      transport.Config
	conn        *amqp.Connection
	channel     *amqp.Channel
	publishMu   sync.Mutex // amqp091-go's Channel is not safe for concurrent use.
	replyQueue  string
	router      *router.Router
	codec       codec.Codec
	log         *zap.SugaredLogger
	stop        chan struct{}
	connected   bool
}

func (d *Dispatcher) Dispatch(ctx context.Context, req *envelope.Request) (*future.Future, error) {
	if !d.connected {
		return nil, &bosonerr.NotConnectedError{Service: d.serviceType}
	}

	// The reply-to address is this dispatcher's own exclusive queue — this
	// is the "secret sauce" that lets any receiver in the competing-consumer
	// pool respond directly to us without knowing anything about who we are.
	req.Correlation = d.replyQueue

	// Open the response route BEFORE publishing, exactly like the original:
	// a response this fast should never race ahead of us registering that
	// we're expecting it.
	f := d.router.Open(req)

	body, err := d.codec.Encode(req)
	if err != nil {
		d.router.Cancel(req.ID)
		return nil, &bosonerr.SerializationError{Cause: err}
	}

	publishing := amqp.Publishing{
		ContentType:   "application/octet-stream",
		CorrelationId: req.ID,
		ReplyTo:       req.Correlation,
		Expiration:    strconv.FormatInt(d.config.RequestTTL.Milliseconds(), 10),
		Body:          body,
	}

	d.publishMu.Lock()
	err = d.channel.PublishWithContext(ctx, "", d.serviceType, false, false, publishing)
	d.publishMu.Unlock()
	if err != nil {
		d.router.Cancel(req.ID)
		return nil, &bosonerr.TransportError{Cause: err}
	}

	return f, nil
}

// watchResponseQueue is the daemon loop that drains this dispatcher's
// exclusive reply queue and routes each response to the Future waiting on
// it, mirroring watchResponseQueue in the original.
func (d *Dispatcher) watchResponseQueue(deliveries <-chan amqp.Delivery) {
	for delivery := range deliveries {
		var resp envelope.Response
		if err := d.codec.Decode(delivery.Body, &resp); err != nil {
			d.log.Errorw("unable to decode response", "service", d.serviceType, "error", err)
			continue
		}
		d.router.Complete(&resp)
	}
	d.log.Debugw("response queue consumer shutting down", "service", d.serviceType)
}

// expiredRequestReaper is the daemon loop that cancels requests which have
// outlived their deadline without a response, mirroring
// expiredRequestReaper in the original — including its five-second cadence.
func (d *Dispatcher) expiredRequestReaper() {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.router.ReapExpired(time.Now())
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) Close() error {
	d.connected = false
	close(d.stop)
	if err := d.channel.Close(); err != nil {
		d.conn.Close()
		return &bosonerr.TransportError{Cause: err}
	}
	return d.conn.Close()
}

// Receiver polls the shared request queue for serviceType and forks a
// goroutine per request to invoke it and write the result back to the
// caller's reply queue, mirroring incomingRequestListener/dispatchRequest/
// writeResponse in the original.
type Receiver struct {
	serviceType string
	config      transport.Config
	codec       codec.Codec
	log         *zap.SugaredLogger
	conn        *amqp.Connection
	channel     *amqp.Channel
	publishMu   sync.Mutex // amqp091-go's Channel is not safe for concurrent use; every
	// dispatchRequest goroutine writes its reply through the same channel.
}

func (r *Receiver) Listen(ctx context.Context, handle transport.HandleFunc) error {
	conn, err := amqp.Dial(amqpURL(r.config))
	if err != nil {
		return &bosonerr.TransportError{Cause: err}
	}
	r.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return &bosonerr.TransportError{Cause: err}
	}
	r.channel = channel

	if _, err := channel.QueueDeclare(r.serviceType, false, false, false, false, nil); err != nil {
		conn.Close()
		return &bosonerr.TransportError{Cause: err}
	}
	if err := channel.Qos(1, 0, false); err != nil {
		conn.Close()
		return &bosonerr.TransportError{Cause: err}
	}

	deliveries, err := channel.Consume(r.serviceType, "", true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return &bosonerr.TransportError{Cause: err}
	}

	r.log.Infow("listening for requests", "service", r.serviceType)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			go r.dispatchRequest(ctx, delivery, handle)
		}
	}
}

func (r *Receiver) dispatchRequest(ctx context.Context, delivery amqp.Delivery, handle transport.HandleFunc) {
	var req envelope.Request
	if err := r.codec.Decode(delivery.Body, &req); err != nil {
		r.log.Errorw("unable to decode incoming request", "service", r.serviceType, "error", err)
		return
	}

	resultFuture := handle(ctx, &req)
	value, err := resultFuture.Await(ctx)

	var resp *envelope.Response
	if err != nil {
		resp = envelope.NewErrorResponse(&req, bosonerr.WireKind(err), err.Error())
	} else {
		resp = envelope.NewSuccessResponse(&req, value.([]byte))
	}
	resp.ServiceInfo = r.serviceType

	r.writeResponse(req.Correlation, resp)
}

// writeResponse publishes resp to the caller's reply queue. The original
// hardcodes a 60-second expiration string here regardless of the actual
// request timeout; this module derives it from the receiver's own
// configured request TTL instead, since that mismatch is exactly the
// design flaw flagged for this Go rework.
func (r *Receiver) writeResponse(replyTo string, resp *envelope.Response) {
	body, err := r.codec.Encode(resp)
	if err != nil {
		r.log.Errorw("unable to encode response", "service", r.serviceType, "error", err)
		return
	}

	properties := amqp.Publishing{
		ContentType:   "application/octet-stream",
		CorrelationId: resp.Correlation,
		Expiration:    strconv.FormatInt(r.config.RequestTTL.Milliseconds(), 10),
		Body:          body,
	}

	r.publishMu.Lock()
	err = r.channel.PublishWithContext(context.Background(), "", replyTo, false, false, properties)
	r.publishMu.Unlock()
	if err != nil {
		r.log.Errorw("unable to write response to reply queue", "service", r.serviceType, "replyTo", replyTo, "error", err)
	}
}

func (r *Receiver) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
