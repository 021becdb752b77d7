// Package frontend implements the Server Front-End: it accepts JSON-RPC
// requests from external clients and from workers calling their peers, and
// hands each one off to the Control Service. Two transports exist, both
// satisfying the same FrontEnd interface (spec §9's "Multiple transports"
// design note): a framed ZeroMQ socket variant and an HTTP variant.
package frontend

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/npc-engine/npc-engine/core/rpc"
)

// Dispatcher is the Control Service surface a front-end hands requests to.
type Dispatcher interface {
	HandleRequest(ctx context.Context, address, body string) (string, error)
}

// FrontEnd is implemented by both transport variants.
type FrontEnd interface {
	Run(ctx context.Context) error
}

// safeDispatch calls d.HandleRequest, recovering from any panic so a bug in
// a transport handler can never take the whole broker down, then renders a
// failure as the front-end's bare {code, message, data} error object.
func safeDispatch(ctx context.Context, d Dispatcher, address, body string) (reply string, isError bool) {
	var stack string
	result, err := func() (result string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
				stack = string(debug.Stack())
			}
		}()
		return d.HandleRequest(ctx, address, body)
	}()

	if err != nil {
		return frontEndErrorReply(err, stack), true
	}
	return result, false
}

func frontEndErrorReply(err error, stack string) string {
	fe := rpc.FrontEndError{
		Code:    rpc.ErrInternal,
		Message: fmt.Sprintf("Internal error: %T %v", err, err),
	}
	if stack != "" {
		fe.Data = stack
	}
	out, encErr := rpc.Encode(fe)
	if encErr != nil {
		return `{"code":-32000,"message":"internal error"}`
	}
	return out
}
