package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockScheduleRepository creates a GormPaymentScheduleRepository with a mocked SQL connection
func newMockScheduleRepository(t *testing.T) (*GormPaymentScheduleRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormPaymentScheduleRepository(&Database{DB: gormDB}), mock, mockDB
}

func scheduleRows(scheduleID, agencyID, tenancyID, memberID uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "version", "agency_id",
		"tenancy_id", "member_id", "payment_type", "description",
		"due_date", "amount_due", "status", "type",
	}).AddRow(
		scheduleID, now, now, 1, agencyID,
		tenancyID, memberID, "rent", "March rent",
		now.AddDate(0, 1, 0), decimal.NewFromInt(950), "pending", "automated",
	)
}

func TestGormPaymentScheduleRepository_FindByIDForAgency(t *testing.T) {
	t.Run("loads schedule with its payments", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		scheduleID := uuid.New()
		paymentID := uuid.New()
		now := time.Now()

		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT \* FROM "payment_schedules" WHERE agency_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(agencyID, scheduleID, 1).
			WillReturnRows(scheduleRows(scheduleID, agencyID, uuid.New(), uuid.New()))

		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE agency_id = \$1 AND "payments"\."schedule_id" = \$2 ORDER BY date ASC, created_at ASC`).
			WithArgs(agencyID, scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "created_at", "updated_at", "agency_id", "schedule_id", "amount", "date", "reference",
			}).AddRow(paymentID, now, now, agencyID, scheduleID, decimal.NewFromInt(400), now, "BACS-1191"))
		mock.ExpectCommit()

		schedule, err := repo.FindByIDForAgency(context.Background(), agencyID, scheduleID)

		require.NoError(t, err)
		require.NotNil(t, schedule)
		assert.Equal(t, scheduleID, schedule.ID)
		require.Len(t, schedule.Payments, 1)
		assert.Equal(t, paymentID, schedule.Payments[0].ID)
		assert.True(t, schedule.Payments[0].Amount.Equal(decimal.NewFromInt(400)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("schedule under another agency reads as not found", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		scheduleID := uuid.New()

		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT \* FROM "payment_schedules" WHERE agency_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(agencyID, scheduleID, 1).
			WillReturnError(gorm.ErrRecordNotFound)
		mock.ExpectRollback()

		schedule, err := repo.FindByIDForAgency(context.Background(), agencyID, scheduleID)

		assert.Nil(t, schedule)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentScheduleRepository_CountForAgency(t *testing.T) {
	t.Run("counts schedules with status filter", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		status := ledger.ScheduleStatusOverdue

		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_schedules" WHERE agency_id = \$1 AND status = \$2`).
			WithArgs(agencyID, status).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectCommit()

		count, err := repo.CountForAgency(context.Background(), agencyID, ledger.ScheduleFilter{Status: &status})

		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentScheduleRepository_SaveWithLock(t *testing.T) {
	newLoadedSchedule := func(t *testing.T) *ledger.PaymentSchedule {
		t.Helper()
		schedule, err := ledger.NewManualSchedule(
			uuid.New(), uuid.New(), uuid.New(),
			time.Now().AddDate(0, 1, 0), decimal.NewFromInt(950),
			ledger.PaymentTypeRent, "March rent")
		require.NoError(t, err)
		return schedule
	}

	t.Run("version conflict returns ErrConcurrencyConflict and writes nothing", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		schedule := newLoadedSchedule(t)
		_, err := schedule.RecordPayment(decimal.NewFromInt(400), time.Now(), "BACS-1191", time.Now())
		require.NoError(t, err)

		expectAgencyTx(mock, schedule.AgencyID)
		mock.ExpectExec(`UPDATE "payment_schedules" SET .* WHERE agency_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = repo.SaveWithLock(context.Background(), schedule)

		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("successful save updates schedule and reconciles payments", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		schedule := newLoadedSchedule(t)
		_, err := schedule.RecordPayment(decimal.NewFromInt(400), time.Now(), "BACS-1191", time.Now())
		require.NoError(t, err)

		expectAgencyTx(mock, schedule.AgencyID)
		mock.ExpectExec(`UPDATE "payment_schedules" SET .* WHERE agency_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "payments" WHERE agency_id = \$1 AND schedule_id = \$2 AND id NOT IN \(\$3\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		// Save on the payment row: update first, affecting the existing row
		mock.ExpectExec(`UPDATE "payments" SET .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = repo.SaveWithLock(context.Background(), schedule)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revert deletes all payment rows", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		schedule := newLoadedSchedule(t)
		schedule.Revert()

		expectAgencyTx(mock, schedule.AgencyID)
		mock.ExpectExec(`UPDATE "payment_schedules" SET .* WHERE agency_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "payments" WHERE agency_id = \$1 AND schedule_id = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.SaveWithLock(context.Background(), schedule)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentScheduleRepository_DeleteForAgency(t *testing.T) {
	deleteSQL := `DELETE FROM "payment_schedules" WHERE agency_id = \$1 AND id = \$2 AND NOT EXISTS \(SELECT 1 FROM payments WHERE payments\.schedule_id = payment_schedules\.id AND payments\.agency_id = payment_schedules\.agency_id\)`

	t.Run("deletes a schedule without payments", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		scheduleID := uuid.New()

		expectAgencyTx(mock, agencyID)
		mock.ExpectExec(deleteSQL).
			WithArgs(agencyID, scheduleID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.DeleteForAgency(context.Background(), agencyID, scheduleID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing or foreign schedule returns ErrNotFound", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		scheduleID := uuid.New()

		expectAgencyTx(mock, agencyID)
		mock.ExpectExec(deleteSQL).
			WithArgs(agencyID, scheduleID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_schedules" WHERE agency_id = \$1 AND id = \$2`).
			WithArgs(agencyID, scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectRollback()

		err := repo.DeleteForAgency(context.Background(), agencyID, scheduleID)

		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrently recorded payment keeps the schedule", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		scheduleID := uuid.New()

		// The delete matches nothing because a payment row appeared after the
		// caller's check; the surviving schedule row classifies it as a
		// conflict, not a missing schedule.
		expectAgencyTx(mock, agencyID)
		mock.ExpectExec(deleteSQL).
			WithArgs(agencyID, scheduleID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_schedules" WHERE agency_id = \$1 AND id = \$2`).
			WithArgs(agencyID, scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := repo.DeleteForAgency(context.Background(), agencyID, scheduleID)

		assert.Equal(t, ledger.ErrScheduleHasPayments, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentScheduleRepository_FilterSQL(t *testing.T) {
	t.Run("overdue filter excludes paid schedules", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		overdue := true

		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_schedules" WHERE agency_id = \$1 AND \(due_date < \$2 AND status NOT IN \('paid'\)\)`).
			WithArgs(agencyID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectCommit()

		count, err := repo.CountForAgency(context.Background(), agencyID, ledger.ScheduleFilter{Overdue: &overdue})

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid sort field falls back to due_date", func(t *testing.T) {
		repo, mock, mockDB := newMockScheduleRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()

		scheduleID := uuid.New()
		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT \* FROM "payment_schedules" WHERE agency_id = \$1 ORDER BY due_date DESC LIMIT \$2`).
			WithArgs(agencyID, 20).
			WillReturnRows(scheduleRows(scheduleID, agencyID, uuid.New(), uuid.New()))

		// The payments association is preloaded for the returned schedule
		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE agency_id = \$1 AND "payments"\."schedule_id" = \$2 ORDER BY date ASC, created_at ASC`).
			WithArgs(agencyID, scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "created_at", "updated_at", "agency_id", "schedule_id", "amount", "date", "reference",
			}))
		mock.ExpectCommit()

		filter := ledger.ScheduleFilter{}
		filter.Page = 1
		filter.PageSize = 20
		filter.OrderBy = "amount_due; DROP TABLE payments;--"

		schedules, err := repo.FindAllForAgency(context.Background(), agencyID, filter)

		require.NoError(t, err)
		require.Len(t, schedules, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
