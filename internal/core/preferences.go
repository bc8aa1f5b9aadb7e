package core

import (
	"errors"
	"strings"
	"time"
)

// MaxAvatarBytes caps the stored avatar image payload.
const MaxAvatarBytes = 100 * 1024

var allowedAvatarTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

var (
	ErrInvalidBudget   = errors.New("budget must not be negative")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrAvatarTooLarge  = errors.New("avatar exceeds 100KB")
	ErrAvatarType      = errors.New("avatar must be png, jpeg or gif")
	ErrDisplayName     = errors.New("display name too long (max 100 characters)")
)

type (
	// Avatar is the profile image payload.
	Avatar struct {
		ContentType string `json:"contentType"`
		Data        []byte `json:"data"`
	}

	// UserPreferences is the per-user settings singleton.
	UserPreferences struct {
		UserID      string           `json:"userId"`
		Currency    string           `json:"currency"`
		Budgets     map[string]Money `json:"budgets"`
		DisplayName string           `json:"displayName,omitempty"`
		Avatar      *Avatar          `json:"avatar,omitempty"`
		UpdatedAt   time.Time        `json:"updatedAt"`
	}

	// PreferencesPatch is a partial update. Nil fields are left unchanged and
	// budgets merge per category; a zero budget removes the entry.
	PreferencesPatch struct {
		Currency    *string          `json:"currency,omitempty"`
		Budgets     map[string]Money `json:"budgets,omitempty"`
		DisplayName *string          `json:"displayName,omitempty"`
		Avatar      *Avatar          `json:"avatar,omitempty"`
	}
)

// DefaultPreferences returns the settings a user starts with on first login.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{
		UserID:   userID,
		Currency: DefaultCurrency,
		Budgets:  map[string]Money{},
	}
}

func (a Avatar) Validate() error {
	if !allowedAvatarTypes[strings.ToLower(a.ContentType)] {
		return ErrAvatarType
	}
	if len(a.Data) == 0 || len(a.Data) > MaxAvatarBytes {
		return ErrAvatarTooLarge
	}
	return nil
}

func (p PreferencesPatch) Validate() error {
	if p.Currency != nil && !IsSupportedCurrency(*p.Currency) {
		return ErrInvalidCurrency
	}
	for _, b := range p.Budgets {
		if b.Cents < 0 {
			return ErrInvalidBudget
		}
	}
	if p.DisplayName != nil && len([]rune(strings.TrimSpace(*p.DisplayName))) > 100 {
		return ErrDisplayName
	}
	if p.Avatar != nil {
		if err := p.Avatar.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply merges the patch into a copy of prefs. The receiver is not modified.
func (p PreferencesPatch) Apply(prefs UserPreferences) UserPreferences {
	out := prefs.Clone()
	if p.Currency != nil {
		out.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	for cat, b := range p.Budgets {
		if b.Cents == 0 {
			delete(out.Budgets, cat)
			continue
		}
		out.Budgets[cat] = b
	}
	if p.DisplayName != nil {
		out.DisplayName = strings.TrimSpace(*p.DisplayName)
	}
	if p.Avatar != nil {
		a := *p.Avatar
		a.Data = append([]byte(nil), a.Data...)
		out.Avatar = &a
	}
	return out
}

// Clone returns a deep copy so cached values never share maps or slices.
func (prefs UserPreferences) Clone() UserPreferences {
	out := prefs
	out.Budgets = make(map[string]Money, len(prefs.Budgets))
	for k, v := range prefs.Budgets {
		out.Budgets[k] = v
	}
	if prefs.Avatar != nil {
		a := *prefs.Avatar
		a.Data = append([]byte(nil), prefs.Avatar.Data...)
		out.Avatar = &a
	}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	return out
}

// BudgetFor returns the cap for a category and whether one is set (> 0).
func (prefs UserPreferences) BudgetFor(category string) (Money, bool) {
	b, ok := prefs.Budgets[category]
	if !ok || b.Cents <= 0 {
		return Money{}, false
	}
	return b, true
}
