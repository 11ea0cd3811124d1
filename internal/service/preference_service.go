package service

import (
	"context"
	"strings"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/models"
)

const maxThemeLength = 32

// PreferenceStore persists per-address preferences
type PreferenceStore interface {
	Get(ctx context.Context, address string) (*models.Preference, error)
	Upsert(ctx context.Context, address string, prefs map[string]interface{}, theme string) (*models.Preference, error)
}

// PreferenceService stores simple per-address settings
type PreferenceService struct {
	store PreferenceStore
}

// NewPreferenceService creates a new preference service
func NewPreferenceService(store PreferenceStore) *PreferenceService {
	return &PreferenceService{store: store}
}

// Get returns the stored preferences, empty when none were saved
func (s *PreferenceService) Get(ctx context.Context, address string) (*models.Preference, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, addr)
}

// Update merges prefs into the stored preferences and sets theme when given
func (s *PreferenceService) Update(ctx context.Context, address string, prefs map[string]interface{}, theme string) (*models.Preference, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	// Keys become document paths, so dots and leading dollars are not allowed.
	for key := range prefs {
		if key == "" || strings.Contains(key, ".") || strings.HasPrefix(key, "$") {
			return nil, apperrors.NewValidationError("preferences", "invalid key "+key)
		}
	}

	theme = strings.TrimSpace(theme)
	if len(theme) > maxThemeLength {
		return nil, apperrors.NewValidationError("theme", "too long")
	}

	return s.store.Upsert(ctx, addr, prefs, theme)
}
