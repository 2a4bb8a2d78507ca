// Package util provides small cross-cutting helpers (ID generation,
// statistics, jittered retry) shared by every pipeline component.
package util

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a UUIDv4 ID, optionally prefixed (e.g. "opp_...",
// "bundle_..."), grounded on the teacher's uuid.New().String() entity-ID
// pattern used throughout internal/api and internal/backtester.
func GenerateID(prefix string) string {
	id := uuid.New().String()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}
