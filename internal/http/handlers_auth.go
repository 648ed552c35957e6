package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/media"
)

const multipartMemory = 1 << 20

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.accounts.Signup(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "User created successfully", map[string]string{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, sess, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Login successful", map[string]any{
		"token":     token,
		"expiresAt": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrNoToken)
		return
	}
	if err := s.accounts.Logout(r.Context(), sess); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Logged out", nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrNoToken)
		return
	}
	p, err := s.accounts.Profile(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", p)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrNoToken)
		return
	}
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.accounts.UpdateSettings(r.Context(), sess.UserID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Settings updated successfully", p)
}

func (s *Server) handleUploadProfilePic(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrNoToken)
		return
	}

	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, media.ErrFileTooLarge)
			return
		}
		writeError(w, r, fmt.Errorf("%w: expected multipart form", core.ErrUploadRejected))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("profilePic")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, r, media.ErrEmptyFile)
			return
		}
		writeError(w, r, fmt.Errorf("%w: %v", core.ErrUploadRejected, err))
		return
	}
	defer file.Close()

	ref, err := s.accounts.UploadProfilePicture(r.Context(), sess.UserID, media.Upload{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Profile picture updated", map[string]string{"profilePic": ref})
}
