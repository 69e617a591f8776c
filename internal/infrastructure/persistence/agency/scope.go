// Package agency provides multi-agency database scoping for GORM.
//
// This package implements automatic agency_id filtering so that a query that
// somehow escapes the repository layer without an explicit agency predicate
// still cannot read or write another agency's rows. The filtering is installed
// as GORM callbacks (see EnableAutoAgencyFilter); the Scope helpers build the
// same predicate for pre-filtered handles. Repositories keep their own explicit
// agency_id conditions; this layer exists underneath them, and row-level
// security policies in Postgres sit underneath both.
package agency

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAgencyIDRequired is returned when agency_id is required but not found
var ErrAgencyIDRequired = errors.New("agency_id is required but not found in context")

// ErrInvalidAgencyID is returned when agency_id format is invalid
var ErrInvalidAgencyID = errors.New("invalid agency_id format")

// Scope applies agency filtering to GORM queries
func Scope(agencyID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("agency_id = ?", agencyID)
	}
}

// ScopeString applies agency filtering using a string agency ID
func ScopeString(agencyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("agency_id = ?", agencyID)
	}
}
