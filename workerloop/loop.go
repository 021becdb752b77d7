package workerloop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
	"gopkg.in/yaml.v2"

	"github.com/npc-engine/npc-engine/core/rpc"
)

type manifest struct {
	ModelType string `yaml:"model_type"`
	Type      string `yaml:"type"`
}

func (m manifest) resolvedType() string {
	if m.ModelType != "" {
		return m.ModelType
	}
	return m.Type
}

// readiness is the worker's own answer to the synthetic "status" method.
// Run sets it to "running" once the factory returns. Neither Run nor the
// Handler interface ever calls set, so status does not report "starting".
type readiness struct {
	mu    sync.RWMutex
	value string
}

func (r *readiness) set(v string) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
}

func (r *readiness) get() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Run implements the Worker Loop contract (spec §4.A). It reads the
// manifest at path, instantiates the implementation registered for its
// type, binds a reply socket at uri with linger=0, and serves requests
// single-threaded: one request received, one reply sent, then the next.
// Returns nil on a clean socket close, non-nil on bind/manifest failure.
func Run(path, uri, id string) error {
	data, err := os.ReadFile(filepath.Join(path, "config.yml"))
	if err != nil {
		return fmt.Errorf("reading manifest at %s: %w", path, err)
	}
	var mf manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("parsing manifest at %s: %w", path, err)
	}
	typeName := mf.resolvedType()

	factory, ok := lookup(typeName)
	if !ok {
		return fmt.Errorf("no implementation registered for type %q", typeName)
	}
	impl, err := factory(path)
	if err != nil {
		return fmt.Errorf("constructing %s for %s: %w", typeName, id, err)
	}

	ready := &readiness{value: "running"}

	methods := impl.Methods()
	methods["status"] = func(json.RawMessage) (interface{}, error) {
		return ready.get(), nil
	}

	sock, err := czmq.NewRep(uri)
	if err != nil {
		return fmt.Errorf("binding %s: %w", uri, err)
	}
	sock.SetLinger(0)
	defer sock.Destroy()

	log.WithFields(log.Fields{"id": id, "uri": uri, "type": typeName}).Info("worker loop serving")

	for {
		frames, err := sock.RecvMessage()
		if err != nil {
			log.WithFields(log.Fields{"id": id, "err": err}).Info("worker socket closed, exiting")
			return nil
		}
		if len(frames) == 0 {
			continue
		}

		reply := handle(id, methods, string(frames[0]))
		if err := sock.SendMessage([][]byte{[]byte(reply)}); err != nil {
			log.WithFields(log.Fields{"id": id, "err": err}).Error("failed to send reply")
			return err
		}
	}
}

// handle dispatches one JSON-RPC request against methods, recovering from
// any handler panic into a {code:-32000, message, data:stacktrace} error
// response (spec §4.A step 5) so the loop keeps running.
func handle(id string, methods map[string]MethodFunc, body string) (reply string) {
	req, err := rpc.DecodeRequest(body)
	if err != nil {
		resp := rpc.NewError(nil, rpc.ErrInternal, fmt.Sprintf("Internal error: %v", err), nil)
		out, _ := rpc.Encode(resp)
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"id": id, "method": req.Method, "panic": r}).Error("handler panicked")
			resp := rpc.NewError(req.ID, rpc.ErrInternal, fmt.Sprintf("Internal error: %v", r), string(debug.Stack()))
			out, _ := rpc.Encode(resp)
			reply = out
		}
	}()

	fn, ok := methods[req.Method]
	if !ok {
		resp := rpc.NewError(req.ID, rpc.ErrInternal, fmt.Sprintf("Internal error: unknown method %q", req.Method), nil)
		out, _ := rpc.Encode(resp)
		return out
	}

	result, err := fn(req.Params)

	var resp *rpc.Response
	if err != nil {
		resp = rpc.NewError(req.ID, rpc.ErrInternal, fmt.Sprintf("Internal error: %v", err), nil)
	} else {
		resp, err = rpc.NewResult(req.ID, result)
		if err != nil {
			resp = rpc.NewError(req.ID, rpc.ErrInternal, err.Error(), nil)
		}
	}

	out, _ := rpc.Encode(resp)
	return out
}
