// Package bus implements a small ZeroMQ XSUB/XPUB forwarder used to
// broadcast worker lifecycle events (slot state transitions) to any number
// of observers without the Control Service's dispatch loop blocking on
// them.
package bus

import (
	"context"
	"sync"

	czmq "github.com/zeromq/goczmq/v4"

	log "github.com/sirupsen/logrus"
)

// Config describes the three sockets a Bus binds.
type Config struct {
	Name     string
	Unit     string
	Backend  string // XSUB, publishers connect here
	Frontend string // XPUB, subscribers connect here
	Capture  string // optional capture socket, empty disables it
}

// Bus is a capture-and-forward device between a frontend XPUB socket and a
// backend XSUB socket.
type Bus struct {
	name     string
	unit     string
	backend  string
	frontend string
	capture  string
}

// NewBus constructs a Bus from Config; no sockets are created until Start.
func NewBus(config Config) *Bus {
	return &Bus{
		name:     config.Name,
		unit:     config.Unit,
		backend:  config.Backend,
		frontend: config.Frontend,
		capture:  config.Capture,
	}
}

func (b *Bus) fields() log.Fields {
	return log.Fields{"bus": b.name, "unit": b.unit}
}

// Start runs the forwarder until ctx is canceled, signalling completion on
// wg. It returns nil on a clean (context-driven) shutdown.
func (b *Bus) Start(ctx context.Context, wg *sync.WaitGroup) error {
	defer wg.Done()

	frontend, err := czmq.NewXPub(b.frontend)
	if err != nil {
		log.WithFields(b.fields()).WithError(err).Error("failed to bind bus frontend")
		return err
	}
	defer frontend.Destroy()

	backend, err := czmq.NewXSub(b.backend)
	if err != nil {
		log.WithFields(b.fields()).WithError(err).Error("failed to bind bus backend")
		return err
	}
	defer backend.Destroy()

	poller, err := czmq.NewPoller(frontend, backend)
	if err != nil {
		return err
	}
	defer poller.Destroy()

	log.WithFields(b.fields()).Info("bus started")

	for {
		select {
		case <-ctx.Done():
			log.WithFields(b.fields()).Info("bus stopped")
			return nil
		default:
		}

		sock, err := poller.Wait(200)
		if err != nil || sock == nil {
			continue
		}
		msg, err := sock.RecvMessage()
		if err != nil {
			continue
		}
		// Messages flow backend -> frontend; subscriptions flow back upstream.
		dst := frontend
		if sock == frontend {
			dst = backend
		}
		if err := dst.SendMessage(msg); err != nil {
			log.WithFields(b.fields()).WithError(err).Warn("failed to forward bus message")
		}
	}
}

// Run is a deprecated alias for Start with a background context, kept for
// callers that haven't migrated to context-based shutdown.
func (b *Bus) Run(done chan bool) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		_ = b.Start(ctx, &wg)
	}()
	<-done
	cancel()
	wg.Wait()
}
