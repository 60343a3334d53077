package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"type":"ping"}`)))
	require.NoError(t, WriteFrame(&buf, nil))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ping"}`, string(got))
	got, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameTooLarge(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := ReadFrame(buf)
	assert.Error(t, err)
}

func startServer(t *testing.T, setup func(*Server)) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(nil)
	setup(srv)
	socket := filepath.Join(t.TempDir(), "ipc.sock")
	require.NoError(t, srv.Start(ctx, socket))
	t.Cleanup(func() {
		cancel()
		srv.Stop()
	})
	return socket
}

func TestServerCall(t *testing.T) {
	socket := startServer(t, func(s *Server) {
		s.Register("echo", func(_ context.Context, params json.RawMessage) (any, *Error) {
			var p struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, Errorf(CodeInvalidRequest, "invalid params", nil)
			}
			return map[string]string{"text": p.Text}, nil
		})
	})

	client, err := Dial(socket, time.Second)
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Call("echo", map[string]string{"text": "call me Ishmael"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.TraceID)
	assert.JSONEq(t, `{"text":"call me Ishmael"}`, string(resp.Result))

	_, err = client.Call("echo", "not an object")
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeInvalidRequest, rpcErr.Code)

	_, err = client.Call("missing", nil)
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "unknown method", rpcErr.Message)
	assert.Equal(t, "missing", rpcErr.Details["method"])
}

func TestServerRejectsInvalidJSON(t *testing.T) {
	socket := startServer(t, func(*Server) {})
	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, WriteFrame(conn, []byte("{")))
	frame, err := ReadFrame(conn)
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(frame, &resp))
	assert.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestServerStream(t *testing.T) {
	released := make(chan struct{})
	socket := startServer(t, func(s *Server) {
		s.RegisterStream("count", func(ctx context.Context, _ json.RawMessage) (<-chan json.RawMessage, *Error) {
			out := make(chan json.RawMessage)
			go func() {
				defer close(out)
				for _, n := range []string{"1", "2", "3"} {
					select {
					case out <- json.RawMessage(n):
					case <-ctx.Done():
						return
					}
				}
			}()
			return out, nil
		})
		s.RegisterStream("forever", func(ctx context.Context, _ json.RawMessage) (<-chan json.RawMessage, *Error) {
			out := make(chan json.RawMessage, 1)
			out <- json.RawMessage(`"first"`)
			go func() {
				<-ctx.Done()
				close(released)
			}()
			return out, nil
		})
		s.RegisterStream("refused", func(context.Context, json.RawMessage) (<-chan json.RawMessage, *Error) {
			return nil, Errorf(CodeInternal, "no events", nil)
		})
	})

	client, err := Dial(socket, time.Second)
	require.NoError(t, err)
	var got []string
	err = client.Stream("count", nil, func(raw json.RawMessage) error {
		got = append(got, string(raw))
		return nil
	})
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"1", "2", "3"}, got)
	client.Close()

	client, err = Dial(socket, time.Second)
	require.NoError(t, err)
	err = client.Stream("refused", nil, func(json.RawMessage) error { return nil })
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeInternal, rpcErr.Code)
	client.Close()

	client, err = Dial(socket, time.Second)
	require.NoError(t, err)
	stop := errors.New("stop")
	err = client.Stream("forever", nil, func(raw json.RawMessage) error {
		assert.Equal(t, `"first"`, string(raw))
		return stop
	})
	assert.ErrorIs(t, err, stop)
	client.Close()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("stream context not cancelled after client hung up")
	}
}
