package agency

import (
	"strings"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Callback provides GORM callback hooks for automatic agency filtering
type Callback struct {
	agencyColumn string
	required     bool
}

// NewCallback creates a new agency callback handler
func NewCallback(agencyColumn string, required bool) *Callback {
	if agencyColumn == "" {
		agencyColumn = "agency_id"
	}
	return &Callback{
		agencyColumn: agencyColumn,
		required:     required,
	}
}

// RegisterCallbacks registers agency callbacks with GORM
func (ac *Callback) RegisterCallbacks(db *gorm.DB) {
	_ = db.Callback().Query().Before("gorm:query").Register("agency:before_query", ac.beforeQuery)
	_ = db.Callback().Update().Before("gorm:update").Register("agency:before_update", ac.beforeUpdate)
	_ = db.Callback().Delete().Before("gorm:delete").Register("agency:before_delete", ac.beforeDelete)
	_ = db.Callback().Row().Before("gorm:row").Register("agency:before_row", ac.beforeQuery)

	// Create callback is not registered because agency_id must be set
	// explicitly by the application when creating entities
}

func (ac *Callback) beforeQuery(db *gorm.DB) {
	ac.addAgencyFilter(db)
}

func (ac *Callback) beforeUpdate(db *gorm.DB) {
	ac.addAgencyFilter(db)
}

func (ac *Callback) beforeDelete(db *gorm.DB) {
	ac.addAgencyFilter(db)
}

// addAgencyFilter adds agency filtering to the query
func (ac *Callback) addAgencyFilter(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}

	if db.Statement.Unscoped {
		return
	}

	// Skip if the repository already added the agency condition
	if ac.hasAgencyCondition(db) {
		return
	}

	agencyID := logger.GetAgencyID(db.Statement.Context)
	if agencyID == "" {
		if ac.required {
			_ = db.AddError(ErrAgencyIDRequired)
		}
		return
	}

	if _, err := uuid.Parse(agencyID); err != nil {
		_ = db.AddError(ErrInvalidAgencyID)
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: ac.agencyColumn},
				Value:  agencyID,
			},
		},
	})
}

// hasAgencyCondition checks if an agency_id condition is already present
func (ac *Callback) hasAgencyCondition(db *gorm.DB) bool {
	if db.Statement.Unscoped {
		return true
	}

	if whereClause, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if ac.exprContainsAgency(expr) {
					return true
				}
			}
		}
	}

	// Also check the built SQL if available
	sql := db.Statement.SQL.String()
	if sql != "" && strings.Contains(sql, ac.agencyColumn) {
		return true
	}

	return false
}

func (ac *Callback) exprContainsAgency(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == ac.agencyColumn
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == ac.agencyColumn
		}
	case clause.Expr:
		return strings.Contains(e.SQL, ac.agencyColumn)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if ac.exprContainsAgency(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if ac.exprContainsAgency(cond) {
				return true
			}
		}
	}
	return false
}

// EnableAutoAgencyFilter registers callbacks that automatically add agency_id
// filtering to all queries on the given GORM DB instance.
func EnableAutoAgencyFilter(db *gorm.DB, required bool) {
	NewCallback("agency_id", required).RegisterCallbacks(db)
}

// DisableAutoAgencyFilter removes the agency callbacks. Mainly for tests;
// GORM has no clean way to remove callbacks so this is best effort.
func DisableAutoAgencyFilter(db *gorm.DB) {
	_ = db.Callback().Query().Remove("agency:before_query")
	_ = db.Callback().Update().Remove("agency:before_update")
	_ = db.Callback().Delete().Remove("agency:before_delete")
	_ = db.Callback().Row().Remove("agency:before_row")
}
