package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockTenancyRepository creates a GormTenancyRepository with a mocked SQL connection
func newMockTenancyRepository(t *testing.T) (*GormTenancyRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormTenancyRepository(&Database{DB: gormDB}), mock, mockDB
}

func tenancyRows(tenancyID, agencyID uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "version", "agency_id",
		"property_ref", "status", "start_date", "end_date", "rent_amount", "rent_due_day",
	}).AddRow(
		tenancyID, now, now, 1, agencyID,
		"12 Oak Avenue", "active", now, now.AddDate(1, 0, 0), decimal.NewFromInt(1400), 5,
	)
}

func TestGormTenancyRepository_FindByIDForAgency(t *testing.T) {
	t.Run("loads tenancy with its members", func(t *testing.T) {
		repo, mock, mockDB := newMockTenancyRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		tenancyID := uuid.New()
		memberID := uuid.New()
		now := time.Now()

		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT \* FROM "tenancies" WHERE agency_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(agencyID, tenancyID, 1).
			WillReturnRows(tenancyRows(tenancyID, agencyID))

		mock.ExpectQuery(`SELECT \* FROM "tenancy_members" WHERE agency_id = \$1 AND "tenancy_members"\."tenancy_id" = \$2`).
			WithArgs(agencyID, tenancyID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "created_at", "updated_at", "agency_id", "tenancy_id", "full_name", "email", "rent_share",
			}).AddRow(memberID, now, now, agencyID, tenancyID, "Priya Shah", "priya@example.com", decimal.NewFromInt(700)))
		mock.ExpectCommit()

		tenancy, err := repo.FindByIDForAgency(context.Background(), agencyID, tenancyID)

		require.NoError(t, err)
		require.NotNil(t, tenancy)
		assert.Equal(t, tenancyID, tenancy.ID)
		assert.Equal(t, letting.TenancyStatusActive, tenancy.Status)
		require.Len(t, tenancy.Members, 1)
		assert.Equal(t, "Priya Shah", tenancy.Members[0].FullName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tenancy under another agency reads as not found", func(t *testing.T) {
		repo, mock, mockDB := newMockTenancyRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		tenancyID := uuid.New()

		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT \* FROM "tenancies" WHERE agency_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(agencyID, tenancyID, 1).
			WillReturnError(gorm.ErrRecordNotFound)
		mock.ExpectRollback()

		tenancy, err := repo.FindByIDForAgency(context.Background(), agencyID, tenancyID)

		assert.Nil(t, tenancy)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTenancyRepository_CountForAgency(t *testing.T) {
	t.Run("counts tenancies with status filter", func(t *testing.T) {
		repo, mock, mockDB := newMockTenancyRepository(t)
		defer mockDB.Close()

		agencyID := uuid.New()
		status := letting.TenancyStatusActive

		expectAgencyTx(mock, agencyID)
		mock.ExpectQuery(`SELECT count\(\*\) FROM "tenancies" WHERE agency_id = \$1 AND status = \$2`).
			WithArgs(agencyID, status).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
		mock.ExpectCommit()

		count, err := repo.CountForAgency(context.Background(), agencyID, letting.TenancyFilter{Status: &status})

		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTenancyRepository_Save(t *testing.T) {
	t.Run("deletes all members when the aggregate has none", func(t *testing.T) {
		repo, mock, mockDB := newMockTenancyRepository(t)
		defer mockDB.Close()

		tenancy, err := letting.NewTenancy(uuid.New(), "12 Oak Avenue",
			time.Now(), time.Now().AddDate(1, 0, 0), decimal.NewFromInt(1400), 5)
		require.NoError(t, err)

		expectAgencyTx(mock, tenancy.AgencyID)
		mock.ExpectExec(`UPDATE "tenancies" SET .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "tenancy_members" WHERE agency_id = \$1 AND tenancy_id = \$2`).
			WithArgs(tenancy.AgencyID, tenancy.ID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err = repo.Save(context.Background(), tenancy)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upserts current members and prunes removed ones", func(t *testing.T) {
		repo, mock, mockDB := newMockTenancyRepository(t)
		defer mockDB.Close()

		tenancy, err := letting.NewTenancy(uuid.New(), "12 Oak Avenue",
			time.Now(), time.Now().AddDate(1, 0, 0), decimal.NewFromInt(1400), 5)
		require.NoError(t, err)
		_, err = tenancy.AddMember("Priya Shah", "priya@example.com", decimal.NewFromInt(700))
		require.NoError(t, err)

		expectAgencyTx(mock, tenancy.AgencyID)
		mock.ExpectExec(`UPDATE "tenancies" SET .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "tenancy_members" WHERE agency_id = \$1 AND tenancy_id = \$2 AND id NOT IN \(\$3\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		// Save on the member row: update misses, then insert
		mock.ExpectExec(`UPDATE "tenancy_members" SET .*`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO "tenancy_members" .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = repo.Save(context.Background(), tenancy)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
