package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClosed         = errors.New("websocket closed")
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// Conn is one live socket. It is never reused after it closes.
type Conn struct {
	conn     *websocket.Conn
	info     ConnInfo
	handlers Handlers
	send     chan []byte
	done     chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
}

func newConn(conn *websocket.Conn, info ConnInfo, handlers Handlers) *Conn {
	return &Conn{
		conn:     conn,
		info:     info,
		handlers: handlers,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Conn) Info() ConnInfo {
	return c.info
}

// Start launches the read and write pumps.
func (c *Conn) Start() {
	c.startOnce.Do(func() {
		go c.writePump()
		go c.readPump()
	})
}

// Send JSON-encodes v and queues it for the writer.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close closes the socket and fires OnClose once.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		close(c.done)
		if err == nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		}
		_ = c.conn.Close()
		if c.handlers.OnClose != nil {
			c.handlers.OnClose(err)
		}
	})
}

func (c *Conn) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// closed locally
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.handlers.OnError != nil {
				c.handlers.OnError(err)
			}
			c.shutdown(err)
			return
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(message)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if c.handlers.OnError != nil {
					c.handlers.OnError(err)
				}
				c.shutdown(err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}

		case <-c.done:
			return
		}
	}
}
