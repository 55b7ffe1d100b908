// Package preferences stores the user's theme and language choices.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bryan-buckman/headlines/internal/database"
	"github.com/bryan-buckman/headlines/internal/model"
)

// ErrInvalid is returned when a value is outside its enum.
var ErrInvalid = errors.New("invalid preference value")

// Theme selects the color scheme.
type Theme int

const (
	ThemeFollowSystem Theme = iota
	ThemeLight
	ThemeDark
	ThemeMaterialYou
)

var themeNames = map[Theme]string{
	ThemeFollowSystem: "follow_system",
	ThemeLight:        "light",
	ThemeDark:         "dark",
	ThemeMaterialYou:  "material_you",
}

func (t Theme) String() string {
	if name, ok := themeNames[t]; ok {
		return name
	}
	return "theme(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	_, ok := themeNames[t]
	return ok
}

// Language selects the UI locale.
type Language int

const (
	LanguageFollowSystem Language = iota
	LanguageEnglish
	LanguageSwahili
)

var languageCodes = map[Language]string{
	LanguageFollowSystem: "",
	LanguageEnglish:      "en",
	LanguageSwahili:      "sw",
}

// Code returns the locale tag, or "" when following the system.
func (l Language) Code() string { return languageCodes[l] }

// Valid reports whether l is a known language.
func (l Language) Valid() bool {
	_, ok := languageCodes[l]
	return ok
}

// LanguageFromCode maps a locale tag back to its Language.
func LanguageFromCode(code string) Language {
	for l, c := range languageCodes {
		if c != "" && c == code {
			return l
		}
	}
	return LanguageFollowSystem
}

// Service reads and writes preferences through the settings table.
type Service struct {
	store database.Store
}

// New creates a preference service backed by store.
func New(store database.Store) *Service {
	return &Service{store: store}
}

// Theme returns the stored theme, ThemeFollowSystem if unset or unreadable.
func (s *Service) Theme(ctx context.Context) (Theme, error) {
	v, err := s.get(ctx, model.SettingTheme)
	if err != nil {
		return ThemeFollowSystem, err
	}
	t := Theme(v)
	if !t.Valid() {
		return ThemeFollowSystem, nil
	}
	return t, nil
}

// SetTheme stores t.
func (s *Service) SetTheme(ctx context.Context, t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("set theme %d: %w", t, ErrInvalid)
	}
	return s.store.SetSetting(ctx, model.SettingTheme, strconv.Itoa(int(t)))
}

// Language returns the stored language, LanguageFollowSystem if unset.
func (s *Service) Language(ctx context.Context) (Language, error) {
	v, err := s.get(ctx, model.SettingLanguage)
	if err != nil {
		return LanguageFollowSystem, err
	}
	l := Language(v)
	if !l.Valid() {
		return LanguageFollowSystem, nil
	}
	return l, nil
}

// SetLanguage stores l.
func (s *Service) SetLanguage(ctx context.Context, l Language) error {
	if !l.Valid() {
		return fmt.Errorf("set language %d: %w", l, ErrInvalid)
	}
	return s.store.SetSetting(ctx, model.SettingLanguage, strconv.Itoa(int(l)))
}

func (s *Service) get(ctx context.Context, key string) (int, error) {
	raw, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return v, nil
}
