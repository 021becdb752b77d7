package svcclient

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/npc-engine/npc-engine/core/rpc"
)

// runFakeControl answers get_service_status with a fixed state regardless of
// which id was asked for, enough to exercise ControlClient's decoding.
func runFakeControl(t *testing.T, endpoint, state string) func() {
	t.Helper()
	sock, err := czmq.NewRouter(endpoint)
	require.NoError(t, err)

	poller, err := czmq.NewPoller()
	require.NoError(t, err)
	require.NoError(t, poller.Add(sock))

	stop := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		defer poller.Destroy()
		defer sock.Destroy()

		for {
			select {
			case <-stop:
				return
			default:
			}

			socket, err := poller.Wait(50)
			if err != nil || socket == nil {
				continue
			}
			frames, err := socket.RecvMessage()
			if err != nil || len(frames) == 0 {
				continue
			}

			id := frames[0]
			req, _ := rpc.DecodeRequest(string(frames[len(frames)-1]))

			var reply string
			if req != nil && req.Method == "get_service_status" {
				resp, _ := rpc.NewResult(req.ID, state)
				out, _ := rpc.Encode(resp)
				reply = out
			} else {
				resp := rpc.NewError(req.ID, rpc.ErrInternal, "Internal error: unknown method", nil)
				out, _ := rpc.Encode(resp)
				reply = out
			}
			_ = socket.SendMessage([][]byte{id, []byte(""), []byte(reply)})
		}
	}()

	return func() {
		close(stop)
		<-stopped
	}
}

func TestControlClientGetServiceStatus(t *testing.T) {
	endpoint := "ipc://" + filepath.Join(t.TempDir(), "front-end")
	stop := runFakeControl(t, endpoint, "running")
	defer stop()

	client, err := NewControlClient(endpoint)
	require.NoError(t, err)
	defer client.Close()
	client.SetTimeout(2 * time.Second)

	status, err := client.GetServiceStatus("svc-a")
	require.NoError(t, err)
	assert.Equal(t, "running", status)
}
