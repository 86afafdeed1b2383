package config

import (
	"errors"
	"fmt"
	"strings"
)

// Preset is one of the x264 speed/quality tradeoff points passed to ffmpeg's -preset
type Preset string

const (
	PresetUltrafast Preset = "ultrafast" // Fastest encode, lowest quality per bit
	PresetSuperfast Preset = "superfast"
	PresetVeryfast  Preset = "veryfast"
	PresetFaster    Preset = "faster"
	PresetFast      Preset = "fast"   // Recommended
	PresetMedium    Preset = "medium" // ffmpeg default
	PresetSlow      Preset = "slow"
	PresetSlower    Preset = "slower"
	PresetVeryslow  Preset = "veryslow"
	PresetPlacebo   Preset = "placebo" // Slowest encode, marginal gains over veryslow
)

// ErrUnknownPreset is returned when a token is not one of the ten presets
var ErrUnknownPreset = errors.New("unknown preset")

// AvailablePresets returns all presets ordered from fastest to slowest
func AvailablePresets() []Preset {
	return []Preset{
		PresetUltrafast,
		PresetSuperfast,
		PresetVeryfast,
		PresetFaster,
		PresetFast,
		PresetMedium,
		PresetSlow,
		PresetSlower,
		PresetVeryslow,
		PresetPlacebo,
	}
}

// ParsePreset validates a user-entered token. Matching is exact apart from
// surrounding whitespace: "Fast" is not a preset.
func ParsePreset(token string) (Preset, error) {
	token = strings.TrimSpace(token)
	for _, p := range AvailablePresets() {
		if string(p) == token {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPreset, token)
}

// Valid reports whether p is one of the ten recognized presets
func (p Preset) Valid() bool {
	_, err := ParsePreset(string(p))
	return err == nil
}

// PresetDescription returns a human-readable description of a preset
func PresetDescription(p Preset) string {
	switch p {
	case PresetUltrafast:
		return "Fastest encoding"
	case PresetSuperfast:
		return "Very fast encoding"
	case PresetVeryfast:
		return "Very fast, slightly better quality"
	case PresetFaster:
		return "Moderately fast encoding"
	case PresetFast:
		return "Good quality with fast encoding (recommended)"
	case PresetMedium:
		return "Standard quality (default)"
	case PresetSlow:
		return "Slower encoding, better quality"
	case PresetSlower:
		return "Slow encoding, excellent quality"
	case PresetVeryslow:
		return "Very slow encoding, maximum quality"
	case PresetPlacebo:
		return "Maximum quality at the highest time cost"
	default:
		return ""
	}
}

// presetColors holds the 256-color palette index for each preset, green through pink
var presetColors = map[Preset]string{
	PresetUltrafast: "34",
	PresetSuperfast: "70",
	PresetVeryfast:  "106",
	PresetFaster:    "142",
	PresetFast:      "178",
	PresetMedium:    "214",
	PresetSlow:      "215",
	PresetSlower:    "216",
	PresetVeryslow:  "217",
	PresetPlacebo:   "181",
}

// PresetColor returns the ANSI 256-color index used when listing a preset
func PresetColor(p Preset) string {
	if c, ok := presetColors[p]; ok {
		return c
	}
	return "7"
}
