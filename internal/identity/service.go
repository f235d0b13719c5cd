package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/scmtp/user-service/internal/events"
	"github.com/scmtp/user-service/internal/token"
)

const publishTimeout = 5 * time.Second

// Service owns the authentication and identity lifecycle: credential
// verification, token issuance and profile reconciliation.
type Service struct {
	repo      Repository
	hasher    Hasher
	tokens    *token.Codec
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService wires the service with its collaborators. publisher may be
// nil, in which case no events are emitted.
func NewService(repo Repository, hasher Hasher, tokens *token.Codec, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens, publisher: publisher, logger: logger}
}

// RegisterInput carries the registration request. Name and Phone are
// optional; nil means not provided.
type RegisterInput struct {
	Email    string
	Password string
	Name     *string
	Phone    *string
}

// AuthResult is returned by Register and Login: a signed bearer token plus
// the public account summary. It never carries the credential hash.
type AuthResult struct {
	Token string  `json:"token"`
	User  Summary `json:"user"`
}

// Register creates an account with role USER and its profile, then issues
// a token. Concurrent registrations with the same email are resolved by
// the store's uniqueness guarantee, not by the lookup here.
func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return AuthResult{}, ErrInvalidInput
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, err
	}
	if existing != nil {
		return AuthResult{}, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.repo.Create(ctx, email, hash, RoleUser)
	if err != nil {
		return AuthResult{}, err
	}

	if _, err := s.repo.UpsertProfile(ctx, user.ID, in.Name, in.Phone, nil); err != nil {
		return AuthResult{}, err
	}

	signed, err := s.tokens.Sign(user.ID, user.Email, string(user.Role))
	if err != nil {
		return AuthResult{}, err
	}

	s.emit(events.TypeUserRegistered, user.ID, user.Email, in.Name, in.Phone)

	return AuthResult{Token: signed, User: user.Summary()}, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password yield the same error value so responses cannot be used to probe
// which emails have accounts.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return AuthResult{}, err
	}
	if user == nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	signed, err := s.tokens.Sign(user.ID, user.Email, string(user.Role))
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{Token: signed, User: user.Summary()}, nil
}

// ProfileUpdate carries the mutable profile fields. Each field is
// tri-state: omitted keeps the stored value, explicit null clears it, a
// value replaces it.
type ProfileUpdate struct {
	Name        Optional[string]         `json:"name"`
	Phone       Optional[string]         `json:"phone"`
	Preferences Optional[map[string]any] `json:"preferences"`
}

// UpdateProfile merges the update over the stored profile and upserts the
// result. Concurrent updates race last-writer-wins per field set.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidInput
	}

	existing, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		name  *string
		phone *string
		prefs map[string]any
	)
	if existing != nil {
		name = existing.Name
		phone = existing.Phone
		prefs = existing.Preferences
	}
	if upd.Name.Set {
		name = upd.Name.Ptr()
	}
	if upd.Phone.Set {
		phone = upd.Phone.Ptr()
	}
	if upd.Preferences.Set {
		prefs = nil
		if upd.Preferences.Valid {
			prefs = upd.Preferences.Value
		}
	}

	profile, err := s.repo.UpsertProfile(ctx, userID, name, phone, prefs)
	if err != nil {
		return nil, err
	}

	s.emit(events.TypeUserUpdated, user.ID, user.Email, profile.Name, profile.Phone)

	return profile, nil
}

// GetProfile is a read-through to the store. A nil profile with a nil
// error means the account has no profile data yet.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// emit publishes an event without blocking the caller. The publish runs on
// its own deadline detached from the request context; failures are logged
// and dropped, never surfaced.
func (s *Service) emit(eventType, userID, email string, name, phone *string) {
	if s.publisher == nil {
		return
	}

	envelope := events.NewEnvelope(eventType, map[string]any{
		"userId": userID,
		"email":  email,
		"name":   name,
		"phone":  phone,
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, userID, envelope); err != nil {
			s.logger.Error("publish user event",
				"type", eventType,
				"user_id", userID,
				"error", err,
			)
		}
	}()
}
