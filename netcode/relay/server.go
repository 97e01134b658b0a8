package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// ErrRoomNotFound は存在しないルームへの参加要求です。
var ErrRoomNotFound = errors.New("room not found")

// Server はルーム一覧を保持するリレーサーバーです。
type Server struct {
	HTTP *http.Server

	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

func NewServer(addr string) *Server {
	s := &Server{
		rooms: make(map[uuid.UUID]*Room),
	}
	s.HTTP = &http.Server{
		Addr:    addr,
		Handler: s.route(),
	}
	return s
}

func (s *Server) route() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", NewAcceptHandler(s))
	mux.Handle("/healthz", NewHealthHandler())
	return mux
}

func (s *Server) Serve() error                       { return s.HTTP.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.HTTP.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.HTTP.Close() }
func (s *Server) Addr() string                       { return s.HTTP.Addr }

// CreateRoom はホストを据えた新しいルームを作ります。
func (s *Server) CreateRoom(host *Endpoint) *Room {
	room := NewRoom(host)
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()
	return room
}

// LookupRoom はIDでルームを引きます。
func (s *Server) LookupRoom(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	return room, ok
}

// RemoveRoom は空になったルームを破棄します。
func (s *Server) RemoveRoom(id uuid.UUID) {
	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()
}

// NumRooms は現在のルーム数を返します。
func (s *Server) NumRooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
