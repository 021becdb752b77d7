package control

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// dispatchPollInterval bounds how long callNoTimeout blocks per poll
// iteration while waiting on an ordinary dispatch reply, so ctx
// cancellation is still observed promptly even though no overall deadline
// is imposed on the call itself.
const dispatchPollInterval = 1 * time.Second

// workerClient is a request/reply client bound to a single worker's private
// endpoint. It never reconnects on timeout: a readiness-probe timeout is
// expected and handled by the caller's backoff, not by this client.
type workerClient struct {
	endpoint string
	sock     *czmq.Sock
	poller   *czmq.Poller
	timeout  time.Duration
	pending  bool // a request was sent by call and its reply not yet received
}

// newWorkerClient connects a REQ socket to endpoint with linger=0.
func newWorkerClient(endpoint string, timeout time.Duration) (*workerClient, error) {
	sock, err := czmq.NewReq(endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to worker at %s: %w", endpoint, err)
	}
	sock.SetLinger(0)

	poller, err := czmq.NewPoller()
	if err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("creating poller for %s: %w", endpoint, err)
	}
	if err := poller.Add(sock); err != nil {
		poller.Destroy()
		sock.Destroy()
		return nil, fmt.Errorf("registering poller for %s: %w", endpoint, err)
	}

	return &workerClient{endpoint: endpoint, sock: sock, poller: poller, timeout: timeout}, nil
}

// call sends body and waits up to c.timeout for the worker's reply, both as
// single-frame messages. Forwards bytes byte-for-byte in both directions.
// A REQ socket refuses a new send until the previous reply is read, so after
// a timeout the next call sends nothing and waits for that earlier reply.
func (c *workerClient) call(body string) (string, error) {
	if !c.pending {
		if err := c.sock.SendMessage([][]byte{[]byte(body)}); err != nil {
			return "", fmt.Errorf("sending to worker at %s: %w", c.endpoint, err)
		}
		c.pending = true
	}

	socket, err := c.poller.Wait(int(c.timeout / time.Millisecond))
	if err != nil {
		return "", fmt.Errorf("polling worker at %s: %w", c.endpoint, err)
	}
	if socket == nil {
		log.WithFields(log.Fields{
			"endpoint":     c.endpoint,
			"timeout (ms)": int(c.timeout / time.Millisecond),
		}).Warn("timed out waiting for worker reply")
		return "", fmt.Errorf("timed out waiting for reply from %s", c.endpoint)
	}

	frames, err := socket.RecvMessage()
	if err != nil {
		return "", fmt.Errorf("receiving from worker at %s: %w", c.endpoint, err)
	}
	c.pending = false
	if len(frames) == 0 {
		return "", fmt.Errorf("empty reply from worker at %s", c.endpoint)
	}
	return string(frames[0]), nil
}

// callNoTimeout sends body and blocks until a reply arrives or ctx is
// canceled, imposing no deadline of its own: spec §5 leaves the duration of
// an ordinary method call entirely up to the worker and its caller, unlike
// the bounded readiness probe that call enforces via c.timeout.
func (c *workerClient) callNoTimeout(ctx context.Context, body string) (string, error) {
	if err := c.sock.SendMessage([][]byte{[]byte(body)}); err != nil {
		return "", fmt.Errorf("sending to worker at %s: %w", c.endpoint, err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		socket, err := c.poller.Wait(int(dispatchPollInterval / time.Millisecond))
		if err != nil {
			return "", fmt.Errorf("polling worker at %s: %w", c.endpoint, err)
		}
		if socket == nil {
			continue
		}

		frames, err := socket.RecvMessage()
		if err != nil {
			return "", fmt.Errorf("receiving from worker at %s: %w", c.endpoint, err)
		}
		if len(frames) == 0 {
			return "", fmt.Errorf("empty reply from worker at %s", c.endpoint)
		}
		return string(frames[0]), nil
	}
}

func (c *workerClient) close() {
	if c.poller != nil {
		c.poller.Destroy()
		c.poller = nil
	}
	if c.sock != nil {
		c.sock.Destroy()
		c.sock = nil
	}
}
