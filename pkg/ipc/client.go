package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rexliu/folio/pkg/core"
)

// Client speaks the framed protocol over one connection. Calls are
// serialized.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the daemon socket.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and waits for its response. A daemon error is
// returned as *Error.
func (c *Client) Call(method string, params any) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(method, params); err != nil {
		return nil, err
	}
	resp, err := c.receive()
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return resp, resp.Error
	}
	return resp, nil
}

// Stream sends a streaming request and hands every result to fn until the
// daemon ends the stream, the connection fails, or fn returns an error.
func (c *Client) Stream(method string, params any, fn func(json.RawMessage) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(method, params); err != nil {
		return err
	}
	for {
		resp, err := c.receive()
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return resp.Error
		}
		if err := fn(resp.Result); err != nil {
			return err
		}
	}
}

func (c *Client) send(method string, params any) error {
	req := Request{ID: "cli-" + core.NewTraceID(), Type: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = raw
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return WriteFrame(c.conn, payload)
}

func (c *Client) receive() (*Response, error) {
	frame, err := ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
