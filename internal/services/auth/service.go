package auth

import (
	"context"
	"errors"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/logger"
	"onboard/internal/models"
	"onboard/internal/repositories"
	"onboard/internal/utils"
	"onboard/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// TokenPair is returned on every successful sign-in or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Service interface {
	SignUp(ctx context.Context, email, password string) (*models.User, *TokenPair, error)
	SignIn(ctx context.Context, email, password string) (*models.User, *TokenPair, error)
	SignOut(ctx context.Context, sess *Session) error
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	CurrentUser(ctx context.Context, accessToken string) (*Session, error)
	OAuthURL(ctx context.Context) (string, error)
	OAuthSignIn(ctx context.Context, state, code string) (*models.User, *TokenPair, error)
	Subscribe(fn func(SessionEvent)) (unsubscribe func())
}

type service struct {
	userRepo repositories.UserRepository
	tokens   *utils.TokenIssuer
	oauth    OAuthProvider
	states   StateStore
	events   *broadcaster
	log      logger.Logger
	now      func() time.Time
}

// NewService wires the identity service. oauth and states may be nil when
// OAuth sign-in is disabled.
func NewService(
	userRepo repositories.UserRepository,
	tokens *utils.TokenIssuer,
	oauth OAuthProvider,
	states StateStore,
	log logger.Logger,
) Service {
	return &service{
		userRepo: userRepo,
		tokens:   tokens,
		oauth:    oauth,
		states:   states,
		events:   newBroadcaster(),
		log:      log,
		now:      time.Now,
	}
}

func (s *service) SignUp(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	v := validation.New()
	v.Email("email", email)
	v.Password("password", password)
	if !v.Valid() {
		return nil, nil, apperr.Validation(v.Errors)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInternal, "failed to hash password", err)
	}
	hashed := string(hash)

	user := &models.User{
		Email:    email,
		Password: &hashed,
		Provider: models.ProviderPassword,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return nil, nil, apperr.ErrEmailTaken
		}
		return nil, nil, apperr.Wrap(apperr.CodeInternal, "failed to create user", err)
	}

	s.log.Info("user signed up", map[string]interface{}{"user_id": user.ID})
	return s.startSession(ctx, user)
}

func (s *service) SignIn(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			s.log.WithError(err).Error("sign in lookup failed", nil)
		}
		return nil, nil, apperr.ErrInvalidCredentials
	}

	if user.Password == nil {
		return nil, nil, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)); err != nil {
		s.log.Warn("sign in rejected", map[string]interface{}{"user_id": user.ID})
		return nil, nil, apperr.ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

func (s *service) startSession(ctx context.Context, user *models.User) (*models.User, *TokenPair, error) {
	pair, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if err := s.userRepo.TouchLogin(ctx, user.ID, now); err != nil {
		s.log.WithError(err).Warn("failed to record last login", map[string]interface{}{"user_id": user.ID})
	}

	s.events.publish(SessionEvent{
		Type:    EventSignedIn,
		Session: Session{UserID: user.ID, Email: user.Email, TokenVersion: user.TokenVersion},
		At:      now,
	})
	return user, pair, nil
}

func (s *service) issue(user *models.User) (*TokenPair, error) {
	access, refresh, expiresAt, err := s.tokens.GenerateTokens(user)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "error generating tokens", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

// SignOut revokes every token of the user by bumping the token version.
func (s *service) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return apperr.ErrNotAuthenticated
	}
	if err := s.userRepo.IncrementTokenVersion(ctx, sess.UserID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "failed to sign out", err)
	}

	s.events.publish(SessionEvent{Type: EventSignedOut, Session: *sess, At: s.now()})
	return nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotAuthenticated, "invalid refresh token", err)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotAuthenticated, "user not found", err)
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, apperr.New(apperr.CodeNotAuthenticated, "session expired")
	}
	return s.issue(user)
}

// CurrentUser resolves an access token into a live session.
func (s *service) CurrentUser(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotAuthenticated, "invalid token", err)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotAuthenticated, "invalid token", err)
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, apperr.New(apperr.CodeNotAuthenticated, "session expired")
	}

	return &Session{UserID: user.ID, Email: user.Email, TokenVersion: user.TokenVersion}, nil
}

func (s *service) OAuthURL(ctx context.Context) (string, error) {
	if s.oauth == nil || s.states == nil {
		return "", apperr.New(apperr.CodeNotFound, "oauth sign-in is not enabled")
	}

	state, err := utils.RandomToken(24)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "failed to create state", err)
	}
	if err := s.states.SetWithTTL(ctx, stateKey(state), s.oauth.Name(), oauthStateTTL); err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "failed to store state", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

func (s *service) OAuthSignIn(ctx context.Context, state, code string) (*models.User, *TokenPair, error) {
	if s.oauth == nil || s.states == nil {
		return nil, nil, apperr.New(apperr.CodeNotFound, "oauth sign-in is not enabled")
	}

	var provider string
	found, err := s.states.Take(ctx, stateKey(state), &provider)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInternal, "failed to read state", err)
	}
	if !found || provider != s.oauth.Name() {
		return nil, nil, apperr.New(apperr.CodeNotAuthenticated, "invalid or expired oauth state")
	}

	identity, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeNotAuthenticated, "oauth exchange failed", err)
	}
	if identity.Email == "" || !identity.EmailVerified {
		return nil, nil, apperr.New(apperr.CodeNotAuthenticated, "provider did not return a verified email")
	}

	user, err := s.userRepo.GetByEmail(ctx, identity.Email)
	if errors.Is(err, repositories.ErrUserNotFound) {
		user = &models.User{Email: identity.Email, Provider: s.oauth.Name()}
		err = s.userRepo.Create(ctx, user)
		if err == nil {
			s.log.Info("user signed up via oauth", map[string]interface{}{
				"user_id":  user.ID,
				"provider": user.Provider,
			})
		}
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInternal, "failed to resolve oauth user", err)
	}

	return s.startSession(ctx, user)
}

func (s *service) Subscribe(fn func(SessionEvent)) func() {
	return s.events.subscribe(fn)
}

func stateKey(state string) string {
	return oauthStateEntry + ":state:" + state
}
