package core

import (
	"encoding/json"
	"net/http"

	"github.com/automoto/blockshot/logger"
)

func ListRooms(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		rooms := reg.List()
		if err := json.NewEncoder(w).Encode(rooms); err != nil {
			logger.Component("http").WithError(err).Warn("list encode error")
		}
	}
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// NewMux routes the status API.
func NewMux(reg *Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms", ListRooms(reg))
	mux.HandleFunc("GET /health", Health())
	return mux
}
