// Package registry implements the per-process bookkeeping of which service
// contracts this process implements (owns a Receiver, serving requests) and
// which it consumes (owns a ClientProxy, making calls). Grounded directly on
// Services.java's implement/consume/disconnectAll — this is NOT the donor's
// etcd-backed service *discovery* registry (that implements an explicit
// Non-goal and has been removed; see DESIGN.md).
package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/codec"
	"github.com/rob-signorelli/boson/executor"
	"github.com/rob-signorelli/boson/middleware"
	"github.com/rob-signorelli/boson/proxy"
	"github.com/rob-signorelli/boson/receiver"
	"github.com/rob-signorelli/boson/transport"
)

// responsePoolSize bounds how many implemented methods' response-resolution
// goroutines (await the method's Future, encode the result) may run at once
// per Registry, replacing unbounded per-call goroutine fan-out.
const responsePoolSize = 32

// registeredReceiver bundles a running Receiver with the cancel func that
// stops its Listen loop, since Listen blocks on a caller-owned context
// instead of closing itself.
type registeredReceiver struct {
	recv   transport.Receiver
	cancel context.CancelFunc
}

// Registry owns every ClientProxy and Receiver this process has created,
// enforcing that a given service contract is never registered twice on
// either side and that teardown happens in parallel across distinct
// transports.
type Registry struct {
	mu        sync.Mutex
	proxies   map[string]*proxy.Proxy
	receivers map[string]registeredReceiver
	log       *zap.SugaredLogger
	pool      *executor.Pool
}

// New returns an empty Registry. Pass nil for log to use zap's default
// production logger.
func New(log *zap.SugaredLogger) *Registry {
	if log == nil {
		l, _ := zap.NewProduction()
		log = l.Sugar()
	}
	return &Registry{
		proxies:   make(map[string]*proxy.Proxy),
		receivers: make(map[string]registeredReceiver),
		log:       log,
		pool:      executor.New(responsePoolSize),
	}
}

// Implement binds impl as this process's implementation of serviceType: it
// builds a receiver.Core around impl, asks bindings for a Receiver over
// config, and starts serving requests in the background. Returns
// AlreadyRegisteredError if serviceType is already implemented here.
func (r *Registry) Implement(serviceType string, impl any, bindings transport.Bindings, config transport.Config, c codec.Codec) error {
	if err := r.reserveReceiverSlot(serviceType); err != nil {
		return err
	}

	core, err := receiver.New(serviceType, impl, c)
	if err != nil {
		r.releaseReceiverSlot(serviceType)
		return err
	}
	core.UsePool(r.pool)
	recv, err := bindings.Receiver(serviceType, config)
	if err != nil {
		r.releaseReceiverSlot(serviceType)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.receivers[serviceType] = registeredReceiver{recv: recv, cancel: cancel}
	r.mu.Unlock()

	// Every implemented service is served through the same onion-model
	// chain, so every transport binding gets structured request logging
	// for free without needing to know about it itself.
	handle := middleware.Chain(middleware.Logging(r.log))(core.Invoke)

	go func() {
		if err := recv.Listen(ctx, handle); err != nil && ctx.Err() == nil {
			r.log.Warnw("receiver stopped unexpectedly", "service", serviceType, "error", err)
		}
	}()
	return nil
}

// Consume binds contract as this process's client of serviceType: it asks
// bindings for a Dispatcher over config and wraps it in a ClientProxy,
// returning AlreadyRegisteredError if serviceType is already consumed here.
func (r *Registry) Consume(serviceType string, contract any, bindings transport.Bindings, config transport.Config, c codec.Codec) (*proxy.Proxy, error) {
	if err := r.reserveProxySlot(serviceType); err != nil {
		return nil, err
	}

	dispatcher, err := bindings.Dispatcher(serviceType, config)
	if err != nil {
		r.releaseProxySlot(serviceType)
		return nil, err
	}
	p, err := proxy.New(serviceType, contract, dispatcher, c, config.RequestTTL)
	if err != nil {
		dispatcher.Close()
		r.releaseProxySlot(serviceType)
		return nil, err
	}

	r.mu.Lock()
	r.proxies[serviceType] = p
	r.mu.Unlock()
	return p, nil
}

// Proxy returns the ClientProxy registered for serviceType, or
// NotConnectedError if none is registered.
func (r *Registry) Proxy(serviceType string) (*proxy.Proxy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proxies[serviceType]
	if !ok || p == nil {
		return nil, &bosonerr.NotConnectedError{Service: serviceType}
	}
	return p, nil
}

func (r *Registry) reserveReceiverSlot(serviceType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.receivers[serviceType]; exists {
		return &bosonerr.AlreadyRegisteredError{Service: serviceType}
	}
	r.receivers[serviceType] = registeredReceiver{}
	return nil
}

func (r *Registry) releaseReceiverSlot(serviceType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.receivers, serviceType)
}

func (r *Registry) reserveProxySlot(serviceType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.proxies[serviceType]; exists {
		return &bosonerr.AlreadyRegisteredError{Service: serviceType}
	}
	r.proxies[serviceType] = nil
	return nil
}

func (r *Registry) releaseProxySlot(serviceType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.proxies, serviceType)
}

// DisconnectAll stops every implemented Receiver and closes every consumed
// ClientProxy in parallel, one goroutine per proxy and per receiver,
// collecting every error rather than stopping at the first.
func (r *Registry) DisconnectAll() []error {
	r.mu.Lock()
	proxies := make([]*proxy.Proxy, 0, len(r.proxies))
	for _, p := range r.proxies {
		if p != nil {
			proxies = append(proxies, p)
		}
	}
	receivers := make([]registeredReceiver, 0, len(r.receivers))
	for _, rr := range r.receivers {
		if rr.recv != nil {
			receivers = append(receivers, rr)
		}
	}
	r.proxies = make(map[string]*proxy.Proxy)
	r.receivers = make(map[string]registeredReceiver)
	r.mu.Unlock()

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	record := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}

	for _, p := range proxies {
		wg.Add(1)
		go func(p *proxy.Proxy) {
			defer wg.Done()
			if err := p.Close(); err != nil {
				r.log.Warnw("error closing proxy", "service", p.ServiceType(), "error", err)
				record(err)
			}
		}(p)
	}
	for _, rr := range receivers {
		wg.Add(1)
		go func(rr registeredReceiver) {
			defer wg.Done()
			rr.cancel()
			if err := rr.recv.Close(); err != nil {
				r.log.Warnw("error closing receiver", "error", err)
				record(err)
			}
		}(rr)
	}

	wg.Wait()
	// Every receiver is stopped by now, so nothing will submit further
	// response-resolution work; draining here is what actually reclaims
	// the pool's worker goroutines instead of leaving them parked forever.
	r.pool.Shutdown()
	return errs
}
