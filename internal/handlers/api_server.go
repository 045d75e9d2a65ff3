// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/arcade/internal/auth"
	"github.com/jason-s-yu/arcade/internal/middleware"
	"github.com/jason-s-yu/arcade/internal/scoring"
	"github.com/jason-s-yu/arcade/internal/ttt"
	"github.com/jason-s-yu/arcade/internal/users"
	"github.com/sirupsen/logrus"
)

// APIServer holds the collaborators shared by every HTTP handler.
type APIServer struct {
	Logger     *logrus.Logger
	Users      *users.UserService
	Scores     *scoring.Service
	Sessions   *auth.Sessions
	Matchmaker *ttt.Matchmaker
	// Origins is used for CORS and for WebSocket origin checks.
	Origins []string
}

// Routes returns the full handler, wrapped in the standard middleware.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/current_user", s.CurrentUserHandler())
	mux.HandleFunc("POST /api/signup", s.SignupHandler())
	mux.HandleFunc("POST /api/login", s.LoginHandler())
	mux.HandleFunc("POST /api/logout", s.LogoutHandler())
	mux.HandleFunc("GET /api/users", s.ListUsersHandler())

	mux.HandleFunc("POST /api/guessnumber_score", s.GuestScoreHandler())
	mux.HandleFunc("POST /api/update_guessnumber_score", s.GuessAttemptsHandler())
	mux.HandleFunc("GET /api/leaderboards", s.LeaderboardHandler())
	mux.HandleFunc("POST /api/get_maxscore", s.MaxScoreHandler())
	mux.HandleFunc("POST /api/update_score", s.UpdateScoreHandler())

	mux.HandleFunc("GET /api/ttt/ws", TTTWSHandler(s.Logger, s.Matchmaker, s.Origins))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return middleware.Chain(mux,
		middleware.Recover(s.Logger),
		middleware.LogMiddleware(s.Logger),
		middleware.CORS(s.Origins),
		middleware.Session(s.Sessions, s.Logger),
	)
}
