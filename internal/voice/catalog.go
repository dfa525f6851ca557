package voice

import "strings"

// Synthesis parameter bounds enforced before any network call.
const (
	MaxTextLength = 300

	MinPitchShift = -12
	MaxPitchShift = 12

	MinPitchVariance = 0.1
	MaxPitchVariance = 2.0

	DefaultModel = "sona_speech_1"
)

// SupportedLanguages lists the language codes the synthesis vendor accepts.
var SupportedLanguages = []string{"ko", "en", "ja"}

// Profile describes one synthesizable voice.
type Profile struct {
	Name            string
	VoiceID         string
	DisplayName     string
	SupportedStyles []string
	DefaultLanguage string
	DefaultStyle    string
	Model           string
}

// SupportsStyle reports whether the profile can speak in the given style.
func (p Profile) SupportsStyle(style string) bool {
	for _, s := range p.SupportedStyles {
		if strings.EqualFold(s, style) {
			return true
		}
	}
	return false
}

// Settings tune pitch and speed for one synthesis call.
type Settings struct {
	PitchShift    int     `json:"pitch_shift"`
	PitchVariance float64 `json:"pitch_variance"`
	Speed         float64 `json:"speed"`
}

// DefaultSettings returns the vendor-neutral defaults.
func DefaultSettings() Settings {
	return Settings{PitchShift: 0, PitchVariance: 1.0, Speed: 1.0}
}

// Catalog resolves voice names to profiles.
type Catalog struct {
	profiles map[string]Profile
}

func NewCatalog(profiles ...Profile) *Catalog {
	c := &Catalog{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		c.profiles[strings.ToLower(p.Name)] = p
	}
	return c
}

// DefaultCatalog returns the built-in voice roster.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Profile{
			Name:            "Hyewon",
			VoiceID:         "651d3de921570047a83b90",
			DisplayName:     "Hyewon",
			SupportedStyles: []string{"Amused", "Angry", "Happy", "Sad", "Shy", "Neutral"},
			DefaultLanguage: "ko",
			DefaultStyle:    "Neutral",
			Model:           DefaultModel,
		},
		Profile{
			Name:            "Haru",
			VoiceID:         "f4a2a3f41fc82de8616b84",
			DisplayName:     "Haru",
			SupportedStyles: []string{"Angry", "Happy", "Sad", "Shy", "Surprised", "Neutral"},
			DefaultLanguage: "ko",
			DefaultStyle:    "Neutral",
			Model:           DefaultModel,
		},
		Profile{
			Name:            "Miya",
			VoiceID:         "ad965de9532e67f8c17d72",
			DisplayName:     "Miya",
			SupportedStyles: []string{"Angry", "Happy", "Embarrassed", "Painful", "Sad", "Neutral"},
			DefaultLanguage: "ko",
			DefaultStyle:    "Neutral",
			Model:           DefaultModel,
		},
	)
}

// Get resolves a profile by name, case-insensitively.
func (c *Catalog) Get(name string) (Profile, bool) {
	p, ok := c.profiles[strings.ToLower(name)]
	return p, ok
}

// All returns every profile in the catalog.
func (c *Catalog) All() []Profile {
	out := make([]Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	return out
}

// LanguageSupported reports whether lang is an accepted language code.
func LanguageSupported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
