// Package svcclient implements the Client Stub: the JSON-RPC client a
// worker (or the CLI) uses to call another package through the Server
// Front-End's internal endpoint. Addressing works by setting the
// underlying socket's identity to the destination package id, so the
// front end's ROUTER frame resolves straight to it without any routing
// information in the request body (mirrors service_client.py's
// ServiceClient, whose ZMQ_IDENTITY is the target's id, not the caller's).
package svcclient

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	czmq "github.com/zeromq/goczmq/v4"

	"github.com/npc-engine/npc-engine/core/rpc"
)

// defaultTimeout bounds how long Call waits for a reply before giving up.
const defaultTimeout = 10 * time.Second

// Stub is a JSON-RPC client permanently addressed at one destination
// package.
type Stub struct {
	target  string
	sock    *czmq.Sock
	poller  *czmq.Poller
	timeout time.Duration
	nextID  int64
}

// Create connects a Stub to endpoint (the front end's internal ROUTER
// endpoint) addressed at target, which may be a package id, a type, an
// api_name, or "control".
func Create(endpoint, target string) (*Stub, error) {
	sock, err := czmq.NewReq(endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting client stub for %s: %w", target, err)
	}
	if err := sock.SetIdentity(target); err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("setting client stub identity to %s: %w", target, err)
	}
	sock.SetLinger(0)

	poller, err := czmq.NewPoller()
	if err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("creating poller for client stub %s: %w", target, err)
	}
	if err := poller.Add(sock); err != nil {
		poller.Destroy()
		sock.Destroy()
		return nil, fmt.Errorf("registering poller for client stub %s: %w", target, err)
	}

	return &Stub{target: target, sock: sock, poller: poller, timeout: defaultTimeout}, nil
}

// SetTimeout overrides the default reply timeout.
func (s *Stub) SetTimeout(d time.Duration) { s.timeout = d }

// Call sends method with positional params and returns its raw result,
// mirroring ServiceClient.send_request's result/code branches: a JSON-RPC
// error or a bare front-end error both surface as a Go error.
func (s *Stub) Call(method string, params ...interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&s.nextID, 1)

	var rawParams interface{}
	if len(params) > 0 {
		rawParams = params
	}

	req, err := rpc.NewRequest(id, method, rawParams)
	if err != nil {
		return nil, fmt.Errorf("building request for %s.%s: %w", s.target, method, err)
	}
	body, err := rpc.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request for %s.%s: %w", s.target, method, err)
	}

	if err := s.sock.SendMessage([][]byte{[]byte(body)}); err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", s.target, err)
	}

	socket, err := s.poller.Wait(int(s.timeout / time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("polling reply from %s: %w", s.target, err)
	}
	if socket == nil {
		return nil, fmt.Errorf("timed out waiting for reply from %s", s.target)
	}

	frames, err := socket.RecvMessage()
	if err != nil {
		return nil, fmt.Errorf("receiving reply from %s: %w", s.target, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("empty reply from %s", s.target)
	}

	return decodeReply(frames[len(frames)-1])
}

// decodeReply handles both shapes a reply can take: a JSON-RPC Response
// (result/error) from a successful dispatch, or the bare {code, message,
// data} object the front end sends when handle_request itself failed.
func decodeReply(body []byte) (json.RawMessage, error) {
	var probe struct {
		Result  json.RawMessage `json:"result"`
		Error   *rpc.Error      `json:"error"`
		Code    int             `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	if probe.Error != nil {
		return nil, probe.Error
	}
	if probe.Result != nil {
		return probe.Result, nil
	}
	if probe.Message != "" {
		return nil, fmt.Errorf("code: %d. %s", probe.Code, probe.Message)
	}
	return probe.Result, nil
}

// Close destroys the underlying socket.
func (s *Stub) Close() {
	if s.poller != nil {
		s.poller.Destroy()
		s.poller = nil
	}
	if s.sock != nil {
		s.sock.Destroy()
		s.sock = nil
	}
}
