package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eyescreen/screening/internal/platform/apiclient"
	"github.com/eyescreen/screening/internal/platform/session"
)

var ErrMissingCredentials = errors.New("email and password are required")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the data of a successful login.
type LoginResult struct {
	Token string        `json:"token"`
	User  *session.User `json:"user"`
}

// Service signs the operator in and out and keeps the session in step.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Login(ctx context.Context, creds Credentials) (*session.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}
	var env apiclient.Envelope[LoginResult]
	if err := s.client.Post(ctx, "/auth/login", creds, &env); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if env.Data.Token == "" {
		return nil, fmt.Errorf("login: response carried no token")
	}
	if err := s.client.Session().SetAuth(env.Data.Token, env.Data.User); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return env.Data.User, nil
}

// Logout tells the server and clears the local session even when the call fails.
func (s *Service) Logout(ctx context.Context) error {
	sess := s.client.Session()
	if sess.Token() == "" {
		return nil
	}
	callErr := s.client.Post(ctx, "/auth/logout", nil, nil)
	if err := sess.ClearAuth(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if callErr != nil && !errors.Is(callErr, apiclient.ErrUnauthorized) {
		return fmt.Errorf("logout: %w", callErr)
	}
	return nil
}

// Me fetches the signed-in operator.
func (s *Service) Me(ctx context.Context) (*session.User, error) {
	if !s.client.Session().Authenticated() {
		return nil, session.ErrNotAuthenticated
	}
	var env apiclient.Envelope[*session.User]
	if err := s.client.Get(ctx, "/auth/me", nil, &env); err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return env.Data, nil
}
