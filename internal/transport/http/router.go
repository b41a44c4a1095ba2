package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// RouterConfig carries what NewRouter needs besides the handlers.
type RouterConfig struct {
	JWTSecret   string
	CORSOrigins []string
}

// NewRouter mounts the REST API under /api/v1, the battle websocket, health
// and metrics, behind CORS and the bearer token middleware.
func NewRouter(cfg RouterConfig, exams *ExamHandler, battles *BattleHandler, ws *WSHandler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	auth := NewAuthenticator(cfg.JWTSecret)
	r.Use(auth.Middleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	exams.Register(api)
	battles.Register(api)
	r.HandleFunc("/ws/battles", ws.ServeWS).Methods("GET")

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
