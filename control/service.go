package control

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/npc-engine/npc-engine/core/bus"
	"github.com/npc-engine/npc-engine/core/rpc"
	"github.com/npc-engine/npc-engine/core/svcerr"
	"github.com/npc-engine/npc-engine/metadata"
)

// defaultProbeTimeout is the receive timeout on a worker's client socket
// while it is still starting up (spec: "10 s is the established value"),
// used when NewService is given a zero probeTimeout.
const defaultProbeTimeout = 10 * time.Second

// defaultProbeInterval is the delay between readiness probe attempts, used
// when NewService is given a zero probeInterval.
const defaultProbeInterval = 1 * time.Second

// Service owns the worker slot table: it spawns, probes, routes to, stops
// and restarts worker subprocesses, and exposes its own admin methods on
// the pseudo-id "control".
type Service struct {
	mu    sync.Mutex
	slots map[string]*Slot
	wg    sync.WaitGroup

	meta          *metadata.Manager
	workerBin     string
	workerEnv     []string // extra environment appended for every spawned worker; nil in production
	probeTimeout  time.Duration
	probeInterval time.Duration
	admin         *adminDispatcher
	health        healthState
	events        *bus.Source // nil when no event bus is configured
}

// SetEvents attaches the event bus every slot state transition is published
// to, under the fixed envelope "slot" with a JSON {"id","state"} payload. Set
// before any package is started; nil disables publishing.
func (s *Service) SetEvents(events *bus.Source) {
	s.events = events
}

func (s *Service) publishTransition(id string, state State) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}{ID: id, State: state.String()})
	if err != nil {
		return
	}
	s.events.QueueMessage(payload)
}

// NewService builds a Control Service with one STOPPED slot per package
// known to meta. workerBin is the executable spawned for every package
// (a single generic worker binary that resolves its concrete type from the
// package manifest, mirroring service_process/BaseService.create).
// probeTimeout bounds each readiness-probe receive (config.BrokerConfig's
// ProbeTimeout); probeInterval is the backoff between attempts (its
// ProbeInterval). A zero value for either falls back to the spec default.
func NewService(meta *metadata.Manager, workerBin string, probeTimeout, probeInterval time.Duration) *Service {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	if probeInterval <= 0 {
		probeInterval = defaultProbeInterval
	}
	s := &Service{
		meta:          meta,
		slots:         make(map[string]*Slot),
		workerBin:     workerBin,
		probeTimeout:  probeTimeout,
		probeInterval: probeInterval,
	}
	for _, d := range meta.All() {
		s.slots[d.ID] = &Slot{ID: d.ID, State: StateStopped}
	}
	s.admin = newAdminDispatcher(s)
	s.health.setStatus("ok")
	return s
}

// checkLiveness forces sl to ERROR when its process has died while a
// non-terminal state was believed (spec §7's "process died mid-flight" row).
// Caller must hold s.mu.
func (s *Service) checkLiveness(id string, sl *Slot) error {
	if sl.State != StateStarting && sl.State != StateRunning && sl.State != StateAwaiting {
		return nil
	}
	if sl.alive() {
		return nil
	}
	err := svcerr.ErrProcessNotAlive(id)
	sl.State = StateError
	sl.lastErr = err
	s.publishTransition(id, StateError)
	return err
}

// getServiceStatus resolves address and returns its slot's current state,
// running the liveness check first so an externally-killed process is
// observed as ERROR (spec §8 boundary behavior).
func (s *Service) getServiceStatus(address string) (State, error) {
	id, err := s.meta.Resolve(address, "")
	if err != nil {
		return 0, err
	}
	if id == "control" {
		return StateRunning, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return 0, svcerr.ErrServiceNotFound(id)
	}
	_ = s.checkLiveness(id, sl)
	return sl.State, nil
}

// startService implements spec §4.C's start_service protocol.
func (s *Service) startService(id string) error {
	resolved, err := s.meta.Resolve(id, "")
	if err != nil {
		return err
	}
	if resolved == "control" {
		return svcerr.ErrAlreadyRunning(resolved)
	}

	s.mu.Lock()
	sl, ok := s.slots[resolved]
	if !ok {
		s.mu.Unlock()
		return svcerr.ErrServiceNotFound(resolved)
	}
	if sl.State != StateStopped && sl.State != StateError {
		s.mu.Unlock()
		return svcerr.ErrAlreadyRunning(resolved)
	}
	desc, ok := s.meta.Get(resolved)
	s.mu.Unlock()
	if !ok {
		return svcerr.ErrServiceNotFound(resolved)
	}

	cmd := exec.Command(s.workerBin, desc.Path, desc.URI, resolved)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(s.workerEnv) > 0 {
		cmd.Env = append(os.Environ(), s.workerEnv...)
	}
	if err := cmd.Start(); err != nil {
		return svcerr.ErrInternal(fmt.Errorf("starting worker for %s: %w", resolved, err))
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	client, err := newWorkerClient(desc.URI, s.probeTimeout)
	if err != nil {
		_ = cmd.Process.Kill()
		return svcerr.ErrInternal(err)
	}

	slotCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	sl.cmd = cmd
	sl.done = done
	sl.client = client
	sl.inQueue = make(chan dispatchRequest, 32)
	sl.cancel = cancel
	sl.lastErr = nil
	sl.State = StateStarting
	s.mu.Unlock()
	s.publishTransition(resolved, StateStarting)

	s.wg.Add(1)
	go s.probeReadiness(slotCtx, resolved)

	log.WithFields(log.Fields{"service": resolved, "uri": desc.URI}).Info("worker starting")
	return nil
}

// probeReadiness repeatedly calls the synthetic status method until the
// worker reports RUNNING, reports something else (ERROR), or dies (ERROR).
func (s *Service) probeReadiness(ctx context.Context, id string) {
	defer s.wg.Done()

	req, err := rpc.NewRequest(1, "status", nil)
	if err != nil {
		log.WithError(err).Error("failed to build status probe request")
		return
	}
	body, err := rpc.Encode(req)
	if err != nil {
		log.WithError(err).Error("failed to encode status probe request")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		sl, ok := s.slots[id]
		if !ok || sl.State == StateStopped {
			s.mu.Unlock()
			return
		}
		if !sl.alive() {
			sl.State = StateError
			sl.lastErr = svcerr.ErrProcessNotAlive(id)
			s.mu.Unlock()
			s.publishTransition(id, StateError)
			return
		}
		client := sl.client
		s.mu.Unlock()

		resp, err := client.call(body)
		if err != nil {
			log.WithFields(log.Fields{"service": id, "err": err}).Debug("status probe timed out, retrying")
			time.Sleep(s.probeInterval)
			continue
		}

		decoded, err := rpc.DecodeResponse(resp)
		if err != nil || decoded.Error != nil {
			s.mu.Lock()
			if sl, ok := s.slots[id]; ok {
				sl.State = StateError
			}
			s.mu.Unlock()
			s.publishTransition(id, StateError)
			log.WithFields(log.Fields{"service": id}).Warn("status probe returned a malformed or error response")
			return
		}

		var state string
		_ = json.Unmarshal(decoded.Result, &state)

		switch state {
		case StateRunning.String():
			s.mu.Lock()
			sl, ok := s.slots[id]
			if ok {
				sl.State = StateRunning
			}
			s.mu.Unlock()
			if ok {
				s.publishTransition(id, StateRunning)
				s.wg.Add(1)
				go s.runDispatcher(ctx, id)
			}
			log.WithFields(log.Fields{"service": id}).Info("worker is running")
			return
		case StateStarting.String():
			time.Sleep(s.probeInterval)
			continue
		default:
			s.mu.Lock()
			if sl, ok := s.slots[id]; ok {
				sl.State = StateError
			}
			s.mu.Unlock()
			s.publishTransition(id, StateError)
			log.WithFields(log.Fields{"service": id, "state": state}).Warn("worker reported an unrecognized state")
			return
		}
	}
}

// runDispatcher forwards in_queue items to the worker's client socket and
// places the replies on out_queue (the reply channel attached to each
// request). Cancellation-safe: it does not mutate slot state on socket
// error, per spec §4.C.
func (s *Service) runDispatcher(ctx context.Context, id string) {
	defer s.wg.Done()

	s.mu.Lock()
	sl, ok := s.slots[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	inQueue := sl.inQueue
	client := sl.client
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-inQueue:
			resp, err := client.callNoTimeout(ctx, req.body)
			if err != nil {
				log.WithFields(log.Fields{"service": id, "err": err}).Error("dispatch to worker failed")
				resp = ""
			}
			select {
			case req.reply <- resp:
			case <-ctx.Done():
			}
		}
	}
}

// HandleRequest implements spec §4.C's handle_request algorithm: resolve,
// liveness-check, dispatch locally for "control", otherwise forward to the
// worker's in_queue and await its out_queue reply.
func (s *Service) HandleRequest(ctx context.Context, address, body string) (string, error) {
	var method string
	if req, err := rpc.DecodeRequest(body); err == nil {
		method = req.Method
	}

	id, err := s.meta.Resolve(address, method)
	if err != nil {
		return "", err
	}

	if id == "control" {
		return s.admin.dispatch(body), nil
	}

	s.mu.Lock()
	sl, ok := s.slots[id]
	if !ok {
		s.mu.Unlock()
		return "", svcerr.ErrServiceNotFound(id)
	}
	if err := s.checkLiveness(id, sl); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if sl.State == StateError && sl.lastErr != nil {
		s.mu.Unlock()
		return "", sl.lastErr
	}
	if sl.State != StateRunning {
		s.mu.Unlock()
		return "", svcerr.ErrServiceNotRunning(id)
	}
	inQueue := sl.inQueue
	s.mu.Unlock()

	reply := make(chan string, 1)
	select {
	case inQueue <- dispatchRequest{body: body, reply: reply}:
	case <-ctx.Done():
		return "", nil
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return "", nil
	}
}

// stopService implements spec §4.C's stop_service: requires RUNNING, tears
// down the client socket, terminates the process, cancels the dispatcher.
func (s *Service) stopService(id string) error {
	resolved, err := s.meta.Resolve(id, "")
	if err != nil {
		return err
	}
	if resolved == "control" {
		return svcerr.ErrServiceNotRunning(resolved)
	}

	s.mu.Lock()
	sl, ok := s.slots[resolved]
	if !ok {
		s.mu.Unlock()
		return svcerr.ErrServiceNotFound(resolved)
	}
	if sl.State != StateRunning {
		s.mu.Unlock()
		return svcerr.ErrServiceNotRunning(resolved)
	}
	cancel := sl.cancel
	client := sl.client
	cmd := sl.cmd
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}

	s.mu.Lock()
	sl.cmd = nil
	sl.done = nil
	sl.client = nil
	sl.inQueue = nil
	sl.cancel = nil
	sl.State = StateStopped
	s.mu.Unlock()
	s.publishTransition(resolved, StateStopped)

	log.WithFields(log.Fields{"service": resolved}).Info("worker stopped")
	return nil
}

// StartAll starts every discovered package, best-effort, for daemons
// configured to bring services up immediately instead of on first request.
func (s *Service) StartAll() {
	for _, d := range s.meta.All() {
		if err := s.startService(d.ID); err != nil {
			log.WithFields(log.Fields{"service": d.ID, "err": err}).Warn("failed to start service at launch")
		}
	}
}

// restartService stops then starts the resolved service.
func (s *Service) restartService(id string) error {
	if err := s.stopService(id); err != nil {
		return err
	}
	return s.startService(id)
}

// Shutdown stops every non-STOPPED slot best-effort, swallowing errors, the
// way the broker's own teardown must (spec §4.C Shutdown).
func (s *Service) Shutdown() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.slots))
	for id, sl := range s.slots {
		if sl.State != StateStopped {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.stopService(id); err != nil {
			log.WithFields(log.Fields{"service": id, "err": err}).Warn("error stopping worker during shutdown")
			// stopService only tears down RUNNING slots; for any other state
			// end the readiness probe and kill the process directly.
			s.mu.Lock()
			sl := s.slots[id]
			if sl.cancel != nil {
				sl.cancel()
			}
			if sl.cmd != nil && sl.cmd.Process != nil {
				_ = sl.cmd.Process.Kill()
			}
			s.mu.Unlock()
		}
	}
	s.wg.Wait()
}
