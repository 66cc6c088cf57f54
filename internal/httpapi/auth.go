package httpapi

import (
	"encoding/json"
	"net/http"
)

type signUpRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token       string `json:"token,omitempty"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// handleSignUp handles POST /api/v1/auth/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, err := s.auth.SignUp(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:       token,
		UserID:      profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
	})
}

// handleSignIn handles POST /api/v1/auth/signin.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:       token,
		UserID:      profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
	})
}

// handleSession handles GET /api/v1/session: it returns the profile
// behind the presented token.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	profile, err := s.db.GetProfile(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if profile == nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:      profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
	})
}
