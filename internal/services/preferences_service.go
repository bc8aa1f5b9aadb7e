package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetwise/internal/cache"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// PreferencesService reads and writes the per-user preferences singleton
// through a cache.
type PreferencesService struct {
	store  storage.PreferencesStore
	cache  cache.Cache[core.UserPreferences]
	inv    Invalidator
	logger *log.Logger
	now    func() time.Time
}

func NewPreferencesService(store storage.PreferencesStore, c cache.Cache[core.UserPreferences], logger *log.Logger) *PreferencesService {
	if c == nil {
		c = cache.NewLRUCache[core.UserPreferences]("preferences", 1000, 5*time.Minute)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &PreferencesService{
		store:  store,
		cache:  c,
		logger: logger.WithComponent(log.ComponentPreferences),
		now:    time.Now,
	}
}

// WithInvalidator registers inv to be told whenever preferences change.
func (s *PreferencesService) WithInvalidator(inv Invalidator) *PreferencesService {
	s.inv = inv
	return s
}

// Get returns the user's preferences, creating the defaults on first access.
func (s *PreferencesService) Get(ctx context.Context, userID string) (core.UserPreferences, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p.Clone(), nil
	}

	p, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		p, err = s.store.SavePreferences(ctx, core.DefaultPreferences(userID))
		if err == nil {
			s.logger.InfoContext(ctx, "Created default preferences", log.FieldUserID, userID)
		}
	}
	if err != nil {
		return core.UserPreferences{}, fmt.Errorf("load preferences: %w", err)
	}

	s.cache.Set(userID, p.Clone())
	return p.Clone(), nil
}

// Update merges patch into the stored preferences.
func (s *PreferencesService) Update(ctx context.Context, userID string, patch core.PreferencesPatch) Result[core.UserPreferences] {
	prev, err := s.Get(ctx, userID)
	if err != nil {
		return Result[core.UserPreferences]{Err: err}
	}
	if err := patch.Validate(); err != nil {
		return rollback(prev, fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	return s.save(ctx, prev, patch.Apply(prev))
}

// SetAvatar replaces the profile image. A nil avatar removes it.
func (s *PreferencesService) SetAvatar(ctx context.Context, userID string, avatar *core.Avatar) Result[core.UserPreferences] {
	prev, err := s.Get(ctx, userID)
	if err != nil {
		return Result[core.UserPreferences]{Err: err}
	}
	next := prev.Clone()
	next.Avatar = nil
	if avatar != nil {
		if err := avatar.Validate(); err != nil {
			return rollback(prev, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		}
		next = core.PreferencesPatch{Avatar: avatar}.Apply(next)
	}
	return s.save(ctx, prev, next)
}

func (s *PreferencesService) save(ctx context.Context, prev, next core.UserPreferences) Result[core.UserPreferences] {
	next.UpdatedAt = s.now().UTC()
	saved, err := s.store.SavePreferences(ctx, next)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save preferences", log.FieldUserID, prev.UserID, log.FieldError, err)
		return rollback(prev, fmt.Errorf("save preferences: %w", err))
	}

	s.cache.Set(saved.UserID, saved.Clone())
	if s.inv != nil {
		s.inv.Invalidate(saved.UserID)
	}
	s.logger.InfoContext(ctx, "Preferences updated", log.FieldUserID, saved.UserID)
	return Result[core.UserPreferences]{Value: saved, Previous: prev}
}

func rollback(prev core.UserPreferences, err error) Result[core.UserPreferences] {
	return Result[core.UserPreferences]{Value: prev, Previous: prev.Clone(), Err: err}
}
