package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.Mutex
	byEmail  map[string]*User
	profiles map[string]*Profile
}

// NewMemoryRepository builds an in-memory store for testing. The email map
// is mutated under one lock, so concurrent Create calls with the same email
// resolve the same way the database unique constraint does: one winner,
// everyone else gets ErrEmailTaken.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byEmail:  make(map[string]*User),
		profiles: make(map[string]*Profile),
	}
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byEmail {
		if user.ID == id {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) Create(_ context.Context, email, passwordHash string, role Role) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}
	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byEmail[email] = user
	cp := *user
	return &cp, nil
}

func (r *memoryRepository) UpsertProfile(_ context.Context, userID string, name, phone *string, preferences map[string]any) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	created := now
	if existing, ok := r.profiles[userID]; ok {
		created = existing.CreatedAt
	}
	profile := &Profile{
		UserID:      userID,
		Name:        copyPtr(name),
		Phone:       copyPtr(phone),
		Preferences: copyPrefs(preferences),
		CreatedAt:   created,
		UpdatedAt:   now,
	}
	r.profiles[userID] = profile
	cp := *profile
	return &cp, nil
}

func (r *memoryRepository) GetProfile(_ context.Context, userID string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *profile
	cp.Name = copyPtr(profile.Name)
	cp.Phone = copyPtr(profile.Phone)
	cp.Preferences = copyPrefs(profile.Preferences)
	return &cp, nil
}

func copyPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyPrefs(prefs map[string]any) map[string]any {
	if prefs == nil {
		return nil
	}
	out := make(map[string]any, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out
}
