package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/jh9098/gtoapp/internal/crawl"
)

// wsEvent is the wire form of an outbound event frame.
type wsEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// wsObserver adapts a websocket connection to the session.Observer
// interface. Writes are serialized because the relay loop and the
// keep-alive loop both send frames.
type wsObserver struct {
	conn net.Conn
	mu   sync.Mutex
}

// Send marshals the event and writes it as a text frame.
func (o *wsObserver) Send(evt crawl.Event) error {
	payload, err := json.Marshal(wsEvent{Event: string(evt.Kind), Data: evt.Data()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return o.writeText(payload)
}

// Ping writes the bare keep-alive frame.
func (o *wsObserver) Ping() error {
	return o.writeText([]byte("ping"))
}

func (o *wsObserver) writeText(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := wsutil.WriteServerMessage(o.conn, ws.OpText, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// handleCrawlSocket upgrades the connection, reads the initial crawl
// request, attaches the connection as a session observer, and then idles on
// the socket: after idlePing of inbound silence a keep-alive frame is sent
// rather than treating the timeout as an error. Disconnect detaches the
// observer, which cancels the run if it was the last one.
func (s *Server) handleCrawlSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	go func() {
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				s.logger.Debug("websocket close failed", zap.Error(cerr))
			}
		}()

		if err := conn.SetReadDeadline(time.Now().Add(s.idlePing)); err != nil {
			s.logger.Warn("set read deadline failed", zap.Error(err))
			return
		}
		first, err := wsutil.ReadClientText(conn)
		if err != nil {
			s.logger.Warn("crawl request read failed", zap.Error(err))
			return
		}
		req := parseCrawlRequest(first)

		obs := &wsObserver{conn: conn}
		s.registry.Attach(req.Identity, req.Params, obs)
		defer s.registry.Detach(req.Identity, obs)

		for {
			if err := conn.SetReadDeadline(time.Now().Add(s.idlePing)); err != nil {
				return
			}
			// Inbound traffic is ignored; the read only detects idle or
			// closed connections.
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					if perr := obs.Ping(); perr != nil {
						s.logger.Debug("keep-alive send failed", zap.Error(perr))
						return
					}
					continue
				}
				return
			}
		}
	}()
}
