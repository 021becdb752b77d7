package frontend

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// pollTimeout bounds how long Socket.serve blocks between checking ctx, so
// shutdown is prompt without busy-polling.
const pollTimeout = 200 * time.Millisecond

// Socket is the framed-socket Server Front-End variant: a ROUTER socket on
// the public endpoint and a second ROUTER socket on the internal (worker-
// to-worker) endpoint, both funneling into the same Dispatcher.
type Socket struct {
	Dispatcher       Dispatcher
	PublicEndpoint   string
	InternalEndpoint string
}

// Run binds and serves both endpoints concurrently until ctx is cancelled.
func (s *Socket) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- s.serve(ctx, s.PublicEndpoint)
	}()
	go func() {
		defer wg.Done()
		errs <- s.serve(ctx, s.InternalEndpoint)
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Socket) serve(ctx context.Context, endpoint string) error {
	sock, err := czmq.NewRouter(endpoint)
	if err != nil {
		return fmt.Errorf("binding %s: %w", endpoint, err)
	}
	defer sock.Destroy()

	poller, err := czmq.NewPoller()
	if err != nil {
		return fmt.Errorf("creating poller for %s: %w", endpoint, err)
	}
	defer poller.Destroy()
	if err := poller.Add(sock); err != nil {
		return fmt.Errorf("registering poller for %s: %w", endpoint, err)
	}

	log.WithFields(log.Fields{"endpoint": endpoint}).Info("front-end socket bound")

	var sendMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		socket, err := poller.Wait(int(pollTimeout / time.Millisecond))
		if err != nil {
			return fmt.Errorf("polling %s: %w", endpoint, err)
		}
		if socket == nil {
			continue
		}

		frames, err := socket.RecvMessage()
		if err != nil || len(frames) == 0 {
			continue
		}

		// ROUTER frames: client identity, empty delimiter, body.
		clientID := frames[0]
		body := frames[len(frames)-1]

		go s.handle(ctx, sock, &sendMu, clientID, string(body))
	}
}

// handle decodes the client identity frame as the address (falling back to
// hex for non-UTF-8 identities), dispatches the request, and sends the
// reply back framed identically. sendMu serializes writes to sock, which a
// ZeroMQ socket does not support from concurrent goroutines.
func (s *Socket) handle(ctx context.Context, sock *czmq.Sock, sendMu *sync.Mutex, clientID []byte, body string) {
	address := decodeAddress(clientID)

	log.WithFields(log.Fields{"address": address}).Debug("received request")

	reply, _ := safeDispatch(ctx, s.Dispatcher, address, body)

	sendMu.Lock()
	err := sock.SendMessage([][]byte{clientID, []byte(""), []byte(reply)})
	sendMu.Unlock()
	if err != nil {
		log.WithFields(log.Fields{"address": address, "err": err}).Error("failed to send reply frame")
	}
}

func decodeAddress(id []byte) string {
	if utf8.Valid(id) {
		return string(id)
	}
	return hex.EncodeToString(id)
}
