// Package rpc implements the JSON-RPC 2.0 request/response envelope used by
// every transport and every worker: the framed socket frontend, the HTTP
// frontend, the client stub and the worker loop all marshal/unmarshal
// through these types so the wire format is defined in exactly one place.
package rpc

import "encoding/json"

// ErrInternal is the JSON-RPC error code reserved for uncaught handler
// panics and control-service-level failures (spec §6).
const ErrInternal = -32000

// Request is a JSON-RPC 2.0 request object. ID may be any JSON scalar;
// notifications (no reply expected) are not used by this system, so ID is
// always present on the wire.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result/Error is
// set, matching the wire contract.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// FrontEndError is the bare {code, message, data} object the Server
// Front-End replies with when handle_request itself fails (spec §4.D step
// 4). Unlike Response/Error it is not nested under "error" and carries no
// jsonrpc/id fields — it mirrors server.py's handle_reply exception branch,
// which serializes a plain dict rather than a full JSON-RPC envelope.
type FrontEndError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRequest builds a Request, marshaling params with encoding/json.
func NewRequest(id interface{}, method string, params interface{}) (*Request, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Request{JSONRPC: "2.0", Method: method, Params: raw, ID: id}, nil
}

// NewResult builds a successful Response.
func NewResult(id interface{}, result interface{}) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: "2.0", Result: b, ID: id}, nil
}

// NewError builds an error Response.
func NewError(id interface{}, code int, message string, data interface{}) *Response {
	return &Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message, Data: data}, ID: id}
}

// Encode marshals a Request or Response to its wire form.
func Encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeRequest parses a wire-format request.
func DecodeRequest(body string) (*Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeResponse parses a wire-format response.
func DecodeResponse(body string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
