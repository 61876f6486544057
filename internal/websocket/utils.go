package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// Writer serialises writes to one connection. Session timers and the read
// loop write concurrently; gorilla/websocket allows a single writer only.
type Writer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWriter(conn *websocket.Conn) *Writer {
	return &Writer{conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (w *Writer) WriteTyped(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriteTyped(w.conn, v)
}

// WriteError sends an ErrorResponse for code with its default message.
func (w *Writer) WriteError(code response.ErrCode, fields map[string]string) error {
	return w.WriteTyped(ErrorResponse{
		Event:  EventError,
		Code:   code,
		Error:  response.GetMessage(code),
		Fields: fields,
	})
}

// WriteTyped sends v with a write deadline. Not safe for concurrent use; see Writer.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadMessage reads one text frame, refreshing the read deadline.
func ReadMessage(conn *websocket.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := conn.ReadMessage()
	return data, err
}
