package server

import (
	"encoding/binary"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/cardiowave/cardio"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     checkStreamOrigin,
}

// checkStreamOrigin allows the configured CORS domains, or any origin if none are set.
func checkStreamOrigin(r *http.Request) bool {
	domains := CorsDomains()
	if len(domains) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, d := range domains {
		if d == "*" || d == origin {
			return true
		}
	}
	return false
}

// encodeStreamFrame prefixes an RGBA frame with its step as a little-endian uint64.
func encodeStreamFrame(step uint64, frame []byte) []byte {
	msg := make([]byte, 8+len(frame))
	binary.LittleEndian.PutUint64(msg, step)
	copy(msg[8:], frame)
	return msg
}

// streamHandler upgrades to a websocket and pushes a binary message for the current
// frame and then for every new frame: an 8-byte little-endian step followed by 4 RGBA
// bytes per compact index.  Incoming messages are ignored.
func (s *Service) streamHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	ramp := r.URL.Query().Get("ramp")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cardio.Errorf("websocket upgrade error: %v\n", err)
		return
	}
	defer conn.Close()

	frames, cancel := s.loop.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		frame, step, err := s.Frame(ramp)
		if err != nil {
			cardio.Errorf("unable to render frame for stream: %v\n", err)
			return false
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, encodeStreamFrame(step, frame)); err != nil {
			cardio.Debugf("websocket write error: %v\n", err)
			return false
		}
		return true
	}

	cardio.Debugf("Streaming frames to %s\n", r.RemoteAddr)
	if !send() {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-frames:
			if !send() {
				return
			}
		}
	}
}
