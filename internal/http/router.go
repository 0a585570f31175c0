package http

import (
	"net/http"
)

func SetupRouter(s *Inspector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.Health)
	mux.HandleFunc("GET /api/v1/stats", s.Stats)
	mux.HandleFunc("GET /api/v1/check", s.Check)
	mux.HandleFunc("GET /", s.Browse)

	return LoggingMiddleware(mux)
}
