// Package client is a blocking bunquery client. One Client owns one TCP
// connection and issues one request at a time.
package client

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/wire"
)

var (
	ErrConnectionFailed = errors.New("failed to connect to server")
	ErrInvalidResponse  = errors.New("invalid response from server")
)

// ServerError is an {"error": message} reply.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

type Client struct {
	addr        string
	dialTimeout time.Duration
	conn        net.Conn
	mu          sync.Mutex
}

func New(addr string) *Client {
	return &Client{
		addr:        addr,
		dialTimeout: 5 * time.Second,
	}
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return errors.Join(ErrConnectionFailed, err)
	}

	c.conn = conn
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Run sends t and returns the decoded result. An error reply is returned as
// a *ServerError.
func (c *Client) Run(t Term) (ast.Datum, error) {
	return c.RunRaw(wire.Encode(t.Wire()))
}

// RunRaw sends an already encoded payload.
func (c *Client) RunRaw(payload []byte) (ast.Datum, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	if err := wire.WriteFrame(c.conn, payload); err != nil {
		c.dropLocked()
		return nil, err
	}

	data, err := wire.ReadFrame(c.conn, 0)
	if err != nil {
		c.dropLocked()
		return nil, err
	}

	result, err := wire.Decode(data)
	if err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}

	if msg, ok := errorReply(result); ok {
		return nil, &ServerError{Message: msg}
	}
	return result, nil
}

// dropLocked discards a connection whose stream position is unknown.
func (c *Client) dropLocked() {
	c.conn.Close()
	c.conn = nil
}

func errorReply(d ast.Datum) (string, bool) {
	obj, ok := d.(ast.Object)
	if !ok || len(obj) != 1 || obj[0].Key != "error" {
		return "", false
	}
	msg, ok := obj[0].Value.(ast.String)
	return string(msg), ok
}
