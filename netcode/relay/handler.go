package relay

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"driftnet/netcode"
)

type AcceptHandler struct {
	server *Server
}

func NewAcceptHandler(server *Server) *AcceptHandler {
	return &AcceptHandler{server: server}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}

	peer := netcode.NewPeer()
	transport := netcode.NewTransportFrom(conn)
	endpoint := NewEndpoint(ctx, peer, transport, h.server)
	slog.DebugContext(ctx, "accepted new connection", "peer", peer.ID)
	if err := endpoint.Run(); err != nil {
		slog.DebugContext(ctx, "endpoint finished", "peer", peer.ID, "err", err)
	}
}

func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}
