package bus

import (
	"context"
	"sync"

	czmq "github.com/zeromq/goczmq/v4"

	log "github.com/sirupsen/logrus"
)

// shutdownCommand is queued to a running Source to make Run exit instead of
// relying solely on context cancellation, so a caller that only holds a
// *Source (not its context) can still ask it to stop.
var shutdownCommand = []byte{0x0D, 0x0E, 0x0A, 0x0D}

// Source publishes messages onto a bus under a fixed envelope (topic).
type Source struct {
	endpoint string
	envelope string
	running  bool
	queue    chan []byte
	mu       sync.Mutex
}

// NewSource constructs a Source; no socket is connected until Run.
func NewSource(endpoint, envelope string) *Source {
	return &Source{
		endpoint: endpoint,
		envelope: envelope,
		queue:    make(chan []byte, 64),
	}
}

func (s *Source) defaultFields(err error) log.Fields {
	fields := log.Fields{"endpoint": s.endpoint, "envelope": s.envelope}
	if err != nil {
		fields["err"] = err
	}
	return fields
}

// Running reports whether Run is currently active.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop marks the source as no longer running and closes its queue. Any
// QueueMessage call racing with or following Stop panics, same as sending
// on any other closed channel.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.queue)
	}
	s.running = false
}

// QueueMessage enqueues a payload to be published. Panics if called after
// Stop, since the underlying queue channel has been closed.
func (s *Source) QueueMessage(data []byte) {
	s.queue <- data
}

// Shutdown requests Run to exit by queuing the sentinel shutdown command,
// but only if the source is currently running.
func (s *Source) Shutdown() {
	if s.Running() {
		s.queue <- shutdownCommand
	}
}

// Run connects to the bus backend and publishes queued messages under the
// source's envelope until ctx is canceled or Shutdown is called.
func (s *Source) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	sock, err := czmq.NewPub(s.endpoint)
	if err != nil {
		log.WithFields(s.defaultFields(err)).Error("failed to connect bus source")
		return
	}
	defer sock.Destroy()

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	log.WithFields(s.defaultFields(nil)).Info("bus source started")

	defer func() {
		s.Stop()
		log.WithFields(s.defaultFields(nil)).Info("bus source stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.queue:
			if len(payload) == len(shutdownCommand) && string(payload) == string(shutdownCommand) {
				return
			}
			if err := sock.SendMessage([][]byte{[]byte(s.envelope), payload}); err != nil {
				log.WithFields(s.defaultFields(err)).Warn("failed to publish bus message")
			}
		}
	}
}
