package bus

import (
	"context"
	"sync"

	czmq "github.com/zeromq/goczmq/v4"

	log "github.com/sirupsen/logrus"
)

// SinkCallback receives messages delivered to a Sink.
type SinkCallback interface {
	Handle(data []byte) error
}

// SinkHandler wraps the callback a Sink delivers messages to.
type SinkHandler struct {
	Callback SinkCallback
}

// Sink subscribes to a bus under a topic filter and delivers messages to a
// handler.
type Sink struct {
	endpoint string
	filter   string
	running  bool
	handler  *SinkHandler
	mu       sync.Mutex
}

// NewSink constructs a Sink; no socket is connected until Run.
func NewSink(endpoint, filter string) *Sink {
	return &Sink{endpoint: endpoint, filter: filter}
}

func (s *Sink) defaultFields(err error) log.Fields {
	fields := log.Fields{"endpoint": s.endpoint, "filter": s.filter}
	if err != nil {
		fields["err"] = err
	}
	return fields
}

// SetHandler assigns the handler messages are delivered to.
func (s *Sink) SetHandler(handler *SinkHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Running reports whether Run is currently active.
func (s *Sink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop marks the sink as no longer running; Run observes this on its next
// poll and exits.
func (s *Sink) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Run connects to the bus frontend, subscribes under filter, and delivers
// every received message to the handler until ctx is canceled or Stop is
// called.
func (s *Sink) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	sock, err := czmq.NewSub(s.endpoint, s.filter)
	if err != nil {
		log.WithFields(s.defaultFields(err)).Error("failed to connect bus sink")
		return
	}
	defer sock.Destroy()

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	log.WithFields(s.defaultFields(nil)).Info("bus sink started")

	defer func() {
		s.Stop()
		log.WithFields(s.defaultFields(nil)).Info("bus sink stopped")
	}()

	poller, err := czmq.NewPoller(sock)
	if err != nil {
		log.WithFields(s.defaultFields(err)).Error("failed to create sink poller")
		return
	}
	defer poller.Destroy()

	for s.Running() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		polled, err := poller.Wait(200)
		if err != nil || polled == nil {
			continue
		}

		msg, err := sock.RecvMessage()
		if err != nil {
			log.WithFields(s.defaultFields(err)).Warn("failed to receive bus message")
			continue
		}

		handler := s.handler
		if handler == nil || handler.Callback == nil {
			continue
		}
		for _, frame := range msg {
			if err := handler.Callback.Handle(frame); err != nil {
				log.WithFields(s.defaultFields(err)).Warn("sink handler returned error")
			}
		}
	}
}
