package persistence

import "strings"

// Sort parameters arrive from query strings and end up interpolated into
// ORDER BY clauses, so both the direction and the column name are checked
// against closed sets before they get near any SQL.

// ValidateSortOrder normalizes a direction to ASC or DESC. Anything that
// is not some spelling of "asc" comes back as DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when the whitelist allows it,
// otherwise defaultField. Matching is exact and case sensitive; column
// names are lowercase in every migration.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	if trimmed := strings.TrimSpace(sortField); allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields are the columns every table shares.
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// AgencySortFields lists the sortable agency columns.
var AgencySortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
}

// TenancySortFields lists the sortable tenancy columns.
var TenancySortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"property_ref": true,
	"status":       true,
	"start_date":   true,
	"end_date":     true,
	"rent_amount":  true,
}

// ScheduleSortFields lists the sortable payment schedule columns.
var ScheduleSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"due_date":     true,
	"amount_due":   true,
	"status":       true,
	"payment_type": true,
	"type":         true,
}

// PaymentSortFields lists the sortable payment columns.
var PaymentSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"date":       true,
	"amount":     true,
	"reference":  true,
}
