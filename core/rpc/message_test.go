package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req, err := NewRequest(float64(1), "generate", []interface{}{"hello"})
	require.NoError(t, err)

	wire, err := Encode(req)
	require.NoError(t, err)

	decoded, err := DecodeRequest(wire)
	require.NoError(t, err)

	assert.Equal(t, "2.0", decoded.JSONRPC)
	assert.Equal(t, "generate", decoded.Method)

	var params []string
	require.NoError(t, json.Unmarshal(decoded.Params, &params))
	assert.Equal(t, []string{"hello"}, params)
}

func TestResultRoundTrip(t *testing.T) {
	resp, err := NewResult("req-1", map[string]string{"text": "hi"})
	require.NoError(t, err)

	wire, err := Encode(resp)
	require.NoError(t, err)

	decoded, err := DecodeResponse(wire)
	require.NoError(t, err)

	assert.Nil(t, decoded.Error)
	var result map[string]string
	require.NoError(t, json.Unmarshal(decoded.Result, &result))
	assert.Equal(t, "hi", result["text"])
}

func TestErrorResponse(t *testing.T) {
	resp := NewError("req-2", ErrInternal, "Service X not found", nil)

	wire, err := Encode(resp)
	require.NoError(t, err)

	decoded, err := DecodeResponse(wire)
	require.NoError(t, err)

	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrInternal, decoded.Error.Code)
	assert.Equal(t, "Service X not found", decoded.Error.Message)
	assert.Equal(t, "Service X not found", decoded.Error.Error())
}
