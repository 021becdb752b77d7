package workerloop

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npc-engine/npc-engine/core/rpc"
)

func encodeRequest(t *testing.T, id interface{}, method string, params interface{}) string {
	t.Helper()
	req, err := rpc.NewRequest(id, method, params)
	require.NoError(t, err)
	body, err := rpc.Encode(req)
	require.NoError(t, err)
	return body
}

func TestHandleDispatchesRegisteredMethod(t *testing.T) {
	methods := map[string]MethodFunc{
		"echo": func(params json.RawMessage) (interface{}, error) {
			var args []string
			_ = json.Unmarshal(params, &args)
			return args[0], nil
		},
	}

	body := encodeRequest(t, float64(1), "echo", []string{"hi"})
	reply := handle("svc-a", methods, body)

	resp, err := rpc.DecodeResponse(reply)
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	var result string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "hi", result)
}

func TestHandleUnknownMethod(t *testing.T) {
	body := encodeRequest(t, float64(1), "nope", nil)
	reply := handle("svc-a", map[string]MethodFunc{}, body)

	resp, err := rpc.DecodeResponse(reply)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.ErrInternal, resp.Error.Code)
}

func TestHandleRecoversFromPanic(t *testing.T) {
	methods := map[string]MethodFunc{
		"boom": func(json.RawMessage) (interface{}, error) {
			panic("kaboom")
		},
	}

	body := encodeRequest(t, float64(1), "boom", nil)
	reply := handle("svc-a", methods, body)

	resp, err := rpc.DecodeResponse(reply)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "kaboom")
	assert.NotEmpty(t, resp.Error.Data)
}

func TestHandleMalformedBody(t *testing.T) {
	reply := handle("svc-a", map[string]MethodFunc{}, "{not json")

	resp, err := rpc.DecodeResponse(reply)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
}

func TestReadinessSetAndGet(t *testing.T) {
	r := &readiness{value: "running"}
	assert.Equal(t, "running", r.get())
	r.set("starting")
	assert.Equal(t, "starting", r.get())
}

func TestManifestResolvedType(t *testing.T) {
	assert.Equal(t, "echo", manifest{ModelType: "echo", Type: "ignored"}.resolvedType())
	assert.Equal(t, "echo", manifest{Type: "echo"}.resolvedType())
}
