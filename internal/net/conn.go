package net

import (
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds one frame write so a stuck peer cannot hold the
// writer forever.
const writeTimeout = 10 * time.Second

// FrameConn moves whole frames. Implementations must allow one concurrent
// reader and one concurrent writer.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() string
}

// TCPConn frames a stream connection with the 2-byte length header.
type TCPConn struct {
	conn net.Conn
}

func NewTCPConn(conn net.Conn) *TCPConn { return &TCPConn{conn: conn} }

func (c *TCPConn) ReadFrame() ([]byte, error) { return ReadFrame(c.conn) }

func (c *TCPConn) WriteFrame(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return WriteFrame(c.conn, data)
}

func (c *TCPConn) Close() error       { return c.conn.Close() }
func (c *TCPConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// WSConn sends one frame per binary WebSocket message. Text messages are
// skipped.
type WSConn struct {
	conn *websocket.Conn
}

func NewWSConn(conn *websocket.Conn) *WSConn { return &WSConn{conn: conn} }

func (c *WSConn) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage && len(data) > 0 {
			return data, nil
		}
	}
}

func (c *WSConn) WriteFrame(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *WSConn) Close() error       { return c.conn.Close() }
func (c *WSConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
