package control

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/npc-engine/npc-engine/core/rpc"
	"github.com/npc-engine/npc-engine/metadata"
)

// TestMain re-executes this test binary as a fake worker process when the
// helper environment variable is set, the same technique os/exec's own
// tests use to get a real, killable OS process without shipping a second
// binary.
func TestMain(m *testing.M) {
	if os.Getenv("NPC_ENGINE_TEST_HELPER") == "1" {
		runHelperWorker()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runHelperWorker plays the Worker Loop contract: bind the REP endpoint
// passed as argv[2], answer "status" with the requested state and "echo"
// with its single argument, until the socket errors (e.g. the test killed
// it) or it's told to exit.
func runHelperWorker() {
	args := os.Args
	uri := args[len(args)-2]
	state := os.Getenv("NPC_ENGINE_TEST_STATE")
	if state == "" {
		state = "running"
	}

	sock, err := czmq.NewRep(uri)
	if err != nil {
		os.Exit(1)
	}
	defer sock.Destroy()

	for {
		frames, err := sock.RecvMessage()
		if err != nil {
			return
		}
		req, err := rpc.DecodeRequest(string(frames[0]))
		if err != nil {
			continue
		}

		var resp *rpc.Response
		switch req.Method {
		case "status":
			resp, _ = rpc.NewResult(req.ID, state)
		case "echo":
			var params []string
			_ = json.Unmarshal(req.Params, &params)
			var arg string
			if len(params) > 0 {
				arg = params[0]
			}
			resp, _ = rpc.NewResult(req.ID, arg)
		default:
			resp = rpc.NewError(req.ID, rpc.ErrInternal, "unknown method", nil)
		}

		body, _ := rpc.Encode(resp)
		_ = sock.SendMessage([][]byte{[]byte(body)})
	}
}

func writeTestPackage(t *testing.T, root, id string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := "model_type: echo\napi_name: EchoAPI\napi_methods:\n  - echo\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(manifest), 0o644))
}

// newTestService scans a single fake package and wires the Control Service
// to re-exec this test binary as that package's worker.
func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	cacheDir := t.TempDir()
	require.NoError(t, os.Setenv("NPC_ENGINE_CACHE_DIR", cacheDir))
	t.Cleanup(func() { _ = os.Unsetenv("NPC_ENGINE_CACHE_DIR") })

	modelsRoot := t.TempDir()
	writeTestPackage(t, modelsRoot, "svc-a")

	m, err := metadata.Scan(modelsRoot)
	require.NoError(t, err)

	self, err := os.Executable()
	require.NoError(t, err)

	svc := NewService(m, self, 10*time.Second, 1*time.Second)
	svc.workerEnv = []string{"NPC_ENGINE_TEST_HELPER=1"}

	return svc, "svc-a"
}

func waitForState(t *testing.T, svc *Service, id string, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := svc.getServiceStatus(id)
		require.NoError(t, err)
		if got == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("service %s did not reach state %s", id, want)
}

func TestStartServiceHappyPath(t *testing.T) {
	svc, id := newTestService(t)
	require.NoError(t, svc.startService(id))
	waitForState(t, svc, id, StateRunning)

	req, err := rpc.NewRequest(1, "echo", []string{"hi"})
	require.NoError(t, err)
	body, err := rpc.Encode(req)
	require.NoError(t, err)

	resp, err := svc.HandleRequest(context.Background(), "svc-a", body)
	require.NoError(t, err)

	decoded, err := rpc.DecodeResponse(resp)
	require.NoError(t, err)
	var result string
	require.NoError(t, json.Unmarshal(decoded.Result, &result))
	assert.Equal(t, "hi", result)

	require.NoError(t, svc.stopService(id))
	waitForState(t, svc, id, StateStopped)
}

func TestStartServiceResolvesByAPIName(t *testing.T) {
	svc, id := newTestService(t)
	require.NoError(t, svc.startService(id))
	waitForState(t, svc, id, StateRunning)
	defer svc.stopService(id) //nolint:errcheck

	req, err := rpc.NewRequest(1, "echo", []string{"hi"})
	require.NoError(t, err)
	body, err := rpc.Encode(req)
	require.NoError(t, err)

	resp, err := svc.HandleRequest(context.Background(), "EchoAPI", body)
	require.NoError(t, err)

	decoded, err := rpc.DecodeResponse(resp)
	require.NoError(t, err)
	var result string
	require.NoError(t, json.Unmarshal(decoded.Result, &result))
	assert.Equal(t, "hi", result)
}

func TestHandleRequestNotRunning(t *testing.T) {
	svc, id := newTestService(t)

	req, err := rpc.NewRequest(1, "echo", []string{"hi"})
	require.NoError(t, err)
	body, err := rpc.Encode(req)
	require.NoError(t, err)

	_, err = svc.HandleRequest(context.Background(), id, body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not running")
}

func TestStartServiceTwiceFails(t *testing.T) {
	svc, id := newTestService(t)
	require.NoError(t, svc.startService(id))
	waitForState(t, svc, id, StateRunning)
	defer svc.stopService(id) //nolint:errcheck

	err := svc.startService(id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestWorkerCrashObservedAsError(t *testing.T) {
	svc, id := newTestService(t)
	require.NoError(t, svc.startService(id))
	waitForState(t, svc, id, StateRunning)

	svc.mu.Lock()
	sl := svc.slots[id]
	proc := sl.cmd.Process
	svc.mu.Unlock()
	require.NoError(t, proc.Kill())

	waitForState(t, svc, id, StateError)

	_, err := svc.HandleRequest(context.Background(), id, "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Process is not alive")
}

func TestCheckDependencyCycleViaAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	cacheDir := t.TempDir()
	require.NoError(t, os.Setenv("NPC_ENGINE_CACHE_DIR", cacheDir))
	defer os.Unsetenv("NPC_ENGINE_CACHE_DIR") //nolint:errcheck

	modelsRoot := t.TempDir()
	writeTestPackage(t, modelsRoot, "a")
	writeTestPackage(t, modelsRoot, "b")
	m, err := metadata.Scan(modelsRoot)
	require.NoError(t, err)
	svc = NewService(m, svc.workerBin, 10*time.Second, 1*time.Second)

	req1, _ := rpc.NewRequest(1, "check_dependency", []string{"a", "b"})
	body1, _ := rpc.Encode(req1)
	resp1, err := svc.HandleRequest(context.Background(), "control", body1)
	require.NoError(t, err)
	decoded1, err := rpc.DecodeResponse(resp1)
	require.NoError(t, err)
	assert.Nil(t, decoded1.Error)

	req2, _ := rpc.NewRequest(2, "check_dependency", []string{"b", "a"})
	body2, _ := rpc.Encode(req2)
	resp2, err := svc.HandleRequest(context.Background(), "control", body2)
	require.NoError(t, err)
	decoded2, err := rpc.DecodeResponse(resp2)
	require.NoError(t, err)
	require.NotNil(t, decoded2.Error)
	assert.Contains(t, decoded2.Error.Message, "a -> b -> a")
}
