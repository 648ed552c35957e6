package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/media"
	"fintrack/internal/storage"
)

type SignupInput struct {
	Username string
	Email    string
	Password string
}

// SettingsInput changes exactly one of username, email or password.
type SettingsInput struct {
	Username        string
	Email           string
	Password        string
	NewPassword     string
	ConfirmPassword string
}

type Profile struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// PictureStore persists uploaded profile pictures.
type PictureStore interface {
	Save(ctx context.Context, userID string, up media.Upload) (string, error)
}

// AccountService manages users, sessions and profile settings.
type AccountService struct {
	users    storage.UserStore
	issuer   *auth.Issuer
	deny     auth.Denylist
	pictures PictureStore
	now      func() time.Time
}

func NewAccountService(users storage.UserStore, issuer *auth.Issuer, deny auth.Denylist, pictures PictureStore) *AccountService {
	return &AccountService{
		users:    users,
		issuer:   issuer,
		deny:     deny,
		pictures: pictures,
		now:      time.Now,
	}
}

// Signup creates a user together with an empty ledger.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (core.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return core.User{}, core.Missing("username")
	}
	if err := core.ValidateEmail(in.Email); err != nil {
		return core.User{}, err
	}
	if err := core.ValidatePassword(in.Password); err != nil {
		return core.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		ID:           core.NewAccountID(),
		Username:     username,
		Email:        core.NormalizeEmail(in.Email),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u, core.NewAccount(u.ID)); err != nil {
		return core.User{}, err
	}
	slog.InfoContext(ctx, "User signed up", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, auth.Session, error) {
	if strings.TrimSpace(email) == "" {
		return "", auth.Session{}, core.Missing("email")
	}
	if password == "" {
		return "", auth.Session{}, core.Missing("password")
	}
	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", auth.Session{}, core.ErrInvalidCredentials
		}
		return "", auth.Session{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return "", auth.Session{}, err
	}
	token, sess, err := s.issuer.Issue(u.ID)
	if err != nil {
		return "", auth.Session{}, err
	}
	slog.InfoContext(ctx, "User logged in", "user_id", u.ID, "token_id", sess.TokenID)
	return token, sess, nil
}

// Logout revokes the session's token until it would have expired.
func (s *AccountService) Logout(ctx context.Context, sess auth.Session) error {
	if s.deny == nil {
		return nil
	}
	if err := s.deny.Revoke(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User logged out", "user_id", sess.UserID, "token_id", sess.TokenID)
	return nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Username: u.Username, Email: u.Email, ProfilePic: u.ProfilePic}, nil
}

// UpdateSettings applies the first non-empty change among username, email
// and password, in that order.
func (s *AccountService) UpdateSettings(ctx context.Context, userID string, in SettingsInput) (Profile, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	var changed string
	switch {
	case strings.TrimSpace(in.Username) != "":
		u.Username = strings.TrimSpace(in.Username)
		changed = "username"
	case strings.TrimSpace(in.Email) != "":
		if err := core.ValidateEmail(in.Email); err != nil {
			return Profile{}, err
		}
		u.Email = core.NormalizeEmail(in.Email)
		changed = "email"
	case in.NewPassword != "" || in.Password != "":
		if in.Password == "" {
			return Profile{}, core.Missing("password")
		}
		if err := core.ValidatePassword(in.NewPassword); err != nil {
			return Profile{}, &core.FieldError{Field: "newPassword", Err: err}
		}
		if in.NewPassword != in.ConfirmPassword {
			return Profile{}, core.ErrPasswordMismatch
		}
		if err := auth.CheckPassword(u.PasswordHash, in.Password); err != nil {
			return Profile{}, err
		}
		if u.PasswordHash, err = auth.HashPassword(in.NewPassword); err != nil {
			return Profile{}, err
		}
		changed = "password"
	default:
		return Profile{}, &core.FieldError{Field: "settings", Err: core.ErrMissingField}
	}

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return Profile{}, err
	}
	slog.InfoContext(ctx, "Account settings updated", "user_id", userID, "field", changed)
	return Profile{Username: u.Username, Email: u.Email, ProfilePic: u.ProfilePic}, nil
}

// UploadProfilePicture stores the picture and records its reference.
func (s *AccountService) UploadProfilePicture(ctx context.Context, userID string, up media.Upload) (string, error) {
	if s.pictures == nil {
		return "", fmt.Errorf("%w: uploads disabled", core.ErrUploadRejected)
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	ref, err := s.pictures.Save(ctx, userID, up)
	if err != nil {
		return "", err
	}
	u.ProfilePic = ref
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return "", err
	}
	return ref, nil
}
