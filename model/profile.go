package model

import (
	"fmt"
	"strings"
)

// ImageSizeProfile selects the maximum image resolution of a run.
type ImageSizeProfile string

const (
	ProfileOriginal ImageSizeProfile = "original"
	ProfileSmall    ImageSizeProfile = "small"
	ProfileMedium   ImageSizeProfile = "medium"
	ProfileLarge    ImageSizeProfile = "large"
)

// ParseImageSizeProfile maps a flag value to a profile. An empty value is
// ProfileOriginal.
func ParseImageSizeProfile(s string) (ImageSizeProfile, error) {
	switch p := ImageSizeProfile(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProfileOriginal:
		return ProfileOriginal, nil
	case ProfileSmall, ProfileMedium, ProfileLarge:
		return p, nil
	default:
		return "", fmt.Errorf("unknown image size %q (want small, medium or large)", s)
	}
}

// Bounds returns the bounding box in pixels. ok is false for ProfileOriginal.
func (p ImageSizeProfile) Bounds() (width, height int, ok bool) {
	switch p {
	case ProfileSmall: // 6" readers
		return 1072, 1448, true
	case ProfileMedium: // 7" readers
		return 1236, 1648, true
	case ProfileLarge: // 10" readers
		return 1860, 2480, true
	default:
		return 0, 0, false
	}
}
