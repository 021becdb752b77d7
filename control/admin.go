package control

import (
	"encoding/json"
	"fmt"

	"github.com/npc-engine/npc-engine/core/rpc"
	"github.com/npc-engine/npc-engine/metadata"
)

// adminDispatcher is the in-process JSON-RPC endpoint exposed on the
// pseudo-id "control", covering spec §4.C's administrative methods.
type adminDispatcher struct {
	svc *Service
}

func newAdminDispatcher(s *Service) *adminDispatcher {
	return &adminDispatcher{svc: s}
}

// dispatch decodes body, runs the named method against svc, and returns the
// encoded JSON-RPC response. It never returns an error itself: decode and
// method failures are folded into a JSON-RPC error response, matching how
// the Server Front-End expects every C.HandleRequest call to behave.
func (a *adminDispatcher) dispatch(body string) string {
	req, err := rpc.DecodeRequest(body)
	if err != nil {
		resp := rpc.NewError(nil, rpc.ErrInternal, fmt.Sprintf("Internal error: %v", err), nil)
		out, _ := rpc.Encode(resp)
		return out
	}

	result, callErr := a.call(req)

	var resp *rpc.Response
	if callErr != nil {
		resp = rpc.NewError(req.ID, rpc.ErrInternal, callErr.Error(), nil)
	} else {
		resp, err = rpc.NewResult(req.ID, result)
		if err != nil {
			resp = rpc.NewError(req.ID, rpc.ErrInternal, err.Error(), nil)
		}
	}

	out, _ := rpc.Encode(resp)
	return out
}

// call decodes positional params and routes to the named admin method.
func (a *adminDispatcher) call(req *rpc.Request) (interface{}, error) {
	var params []json.RawMessage
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid params for %s: %w", req.Method, err)
		}
	}

	stringArg := func(i int) string {
		if i >= len(params) {
			return ""
		}
		var s string
		_ = json.Unmarshal(params[i], &s)
		return s
	}

	switch req.Method {
	case "get_services_metadata":
		return a.getServicesMetadata()
	case "get_service_metadata":
		return a.svc.meta.GetMetadata(stringArg(0))
	case "get_service_status":
		state, err := a.svc.getServiceStatus(stringArg(0))
		if err != nil {
			return nil, err
		}
		return state.String(), nil
	case "start_service":
		return nil, a.svc.startService(stringArg(0))
	case "stop_service":
		return nil, a.svc.stopService(stringArg(0))
	case "restart_service":
		return nil, a.svc.restartService(stringArg(0))
	case "check_dependency":
		return nil, a.svc.meta.AddDependency(stringArg(0), stringArg(1))
	default:
		return nil, fmt.Errorf("unknown control method %q", req.Method)
	}
}

// getServicesMetadata mirrors service_manager.py's get_services_metadata:
// one metadata object per discovered package, in discovery order.
func (a *adminDispatcher) getServicesMetadata() ([]metadata.Metadata, error) {
	all := a.svc.meta.All()
	out := make([]metadata.Metadata, 0, len(all))
	for _, d := range all {
		md, err := a.svc.meta.GetMetadata(d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, nil
}
