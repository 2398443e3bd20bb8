package server

import (
	"github.com/Antonite/deepq/storage"
)

// Server exposes run metadata and checkpoints over HTTP.
type Server struct {
	store *storage.Store
}

func New(store *storage.Store) *Server {
	return &Server{store: store}
}

func (s *Server) Close() {
	s.store.Close()
}
