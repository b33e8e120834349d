package models

import (
	"strings"
	"time"
)

type TargetType string

const (
	TargetSidereal    TargetType = "SIDEREAL"
	TargetNonSidereal TargetType = "NON_SIDEREAL"
)

// ParseTargetType accepts the stored form as well as lower-case and
// hyphenated spellings. Unknown values return "".
func ParseTargetType(s string) TargetType {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "SIDEREAL":
		return TargetSidereal
	case "NON_SIDEREAL", "NONSIDEREAL":
		return TargetNonSidereal
	default:
		return ""
	}
}

// Target is an astronomical object. RA and Dec are in degrees and only
// meaningful for sidereal targets.
type Target struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      TargetType `json:"type"`
	RA        float64    `json:"ra"`
	Dec       float64    `json:"dec"`
	CreatedAt time.Time  `json:"created_at"`
}

// Location is the projection of a target used by the sky map.
type Location struct {
	RA   float64
	Dec  float64
	Name string
}
