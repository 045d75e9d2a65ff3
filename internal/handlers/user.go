package handlers

import (
	"net/http"

	"github.com/jason-s-yu/arcade/internal/auth"
	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/jason-s-yu/arcade/internal/users"
)

// CurrentUserHandler reports the session identity, or null. It never fails.
func (s *APIServer) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.IdentityFrom(r.Context()); ok {
			writeJSON(w, http.StatusOK, map[string]any{"user": id})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
	}
}

// SignupHandler creates an account and logs it in.
func (s *APIServer) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.SignupRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, s.Logger, err)
			return
		}

		u, err := s.Users.Signup(r.Context(), req)
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}

		id := models.Identity{ID: u.ID, Username: u.Username}
		if err := s.Sessions.Login(w, id); err != nil {
			// The account exists; the client can still log in explicitly.
			s.Logger.WithError(err).Warn("signup: failed to issue session")
		}
		s.Logger.WithField("username", u.Username).Info("user signed up")
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Signup successful",
			"user":    u,
		})
	}
}

func (s *APIServer) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.LoginRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, s.Logger, err)
			return
		}

		u, err := s.Users.Login(r.Context(), req)
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		if err := s.Sessions.Login(w, models.Identity{ID: u.ID, Username: u.Username}); err != nil {
			writeError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "Login successful",
			"username": u.Username,
		})
	}
}

func (s *APIServer) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Sessions.Logout(w)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

// ListUsersHandler returns every account and the session username (or null).
func (s *APIServer) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.Users.List(r.Context())
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		var name any
		if id, ok := auth.IdentityFrom(r.Context()); ok {
			name = id.Username
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": list, "name": name})
	}
}
