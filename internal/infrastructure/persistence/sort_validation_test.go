package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := map[string]string{
		"":                            "DESC",
		"   ":                         "DESC",
		"ASC":                         "ASC",
		"asc":                         "ASC",
		"  asc  ":                     "ASC",
		"DESC":                        "DESC",
		"desc":                        "DESC",
		"sideways":                    "DESC",
		"ASC; DROP TABLE payments;--": "DESC",
	}

	for input, want := range tests {
		assert.Equal(t, want, ValidateSortOrder(input), "input %q", input)
	}
}

func TestValidateSortField(t *testing.T) {
	t.Run("whitelisted fields pass through", func(t *testing.T) {
		assert.Equal(t, "due_date", ValidateSortField("due_date", ScheduleSortFields, "created_at"))
		assert.Equal(t, "amount", ValidateSortField("  amount  ", PaymentSortFields, "created_at"))
	})

	t.Run("everything else falls back to the default", func(t *testing.T) {
		for _, input := range []string{
			"",
			"   ",
			"no_such_column",
			"DUE_DATE", // matching is case sensitive, columns are lowercase
			"due_date payments",
			"due_date'--",
		} {
			assert.Equal(t, "created_at", ValidateSortField(input, ScheduleSortFields, "created_at"), "input %q", input)
		}
	})

	t.Run("default is returned verbatim even when empty", func(t *testing.T) {
		assert.Empty(t, ValidateSortField("no_such_column", ScheduleSortFields, ""))
	})
}

func TestSortFieldWhitelists(t *testing.T) {
	whitelists := map[string]map[string]bool{
		"agency":   AgencySortFields,
		"tenancy":  TenancySortFields,
		"schedule": ScheduleSortFields,
		"payment":  PaymentSortFields,
	}

	for name, whitelist := range whitelists {
		t.Run(name, func(t *testing.T) {
			// Every per-table whitelist must include the shared columns
			// plus at least one table-specific one.
			for field := range CommonSortFields {
				assert.True(t, whitelist[field], "%s whitelist should allow %q", name, field)
			}
			assert.Greater(t, len(whitelist), len(CommonSortFields))
		})
	}
}

func TestSortValidation_RejectsInjection(t *testing.T) {
	payloads := []string{
		"due_date; DROP TABLE payments;--",
		"due_date' OR '1'='1",
		"due_date\"; DROP TABLE payments;--",
		"due_date UNION SELECT * FROM agencies",
		"due_date ORDER BY 1",
		"due_date, (SELECT secret FROM agencies)",
		"CASE WHEN 1=1 THEN due_date ELSE status END",
		"due_date/**/;DROP TABLE payments",
		"due_date\n; DROP TABLE payments",
		"due_date\t; DROP TABLE payments",
		"' OR ''='",
		"1; EXEC xp_cmdshell('dir')",
	}

	for _, payload := range payloads {
		label := payload[:min(len(payload), 30)]
		t.Run(label, func(t *testing.T) {
			assert.Equal(t, "due_date", ValidateSortField(payload, ScheduleSortFields, "due_date"))
			assert.Equal(t, "DESC", ValidateSortOrder(payload))
		})
	}
}
