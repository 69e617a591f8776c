package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockScheduleRepo is a mock implementation of ledger.PaymentScheduleRepository
type mockScheduleRepo struct {
	mock.Mock
}

func (m *mockScheduleRepo) FindByIDForAgency(ctx context.Context, agencyID, id uuid.UUID) (*ledger.PaymentSchedule, error) {
	args := m.Called(ctx, agencyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.PaymentSchedule), args.Error(1)
}

func (m *mockScheduleRepo) FindAllForAgency(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) ([]ledger.PaymentSchedule, error) {
	args := m.Called(ctx, agencyID, filter)
	return args.Get(0).([]ledger.PaymentSchedule), args.Error(1)
}

func (m *mockScheduleRepo) CountForAgency(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (int64, error) {
	args := m.Called(ctx, agencyID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockScheduleRepo) Create(ctx context.Context, schedule *ledger.PaymentSchedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *mockScheduleRepo) SaveWithLock(ctx context.Context, schedule *ledger.PaymentSchedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *mockScheduleRepo) DeleteForAgency(ctx context.Context, agencyID, id uuid.UUID) error {
	args := m.Called(ctx, agencyID, id)
	return args.Error(0)
}

func (m *mockScheduleRepo) SumTotalsForAgency(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (ledger.LedgerTotals, error) {
	args := m.Called(ctx, agencyID, filter)
	return args.Get(0).(ledger.LedgerTotals), args.Error(1)
}

// mockPaymentRepo is a mock implementation of ledger.PaymentRepository
type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) FindAllForAgency(ctx context.Context, agencyID uuid.UUID, from, to *time.Time, filter shared.Filter) ([]ledger.Payment, error) {
	args := m.Called(ctx, agencyID, from, to, filter)
	return args.Get(0).([]ledger.Payment), args.Error(1)
}

func (m *mockPaymentRepo) CountForAgency(ctx context.Context, agencyID uuid.UUID, from, to *time.Time) (int64, error) {
	args := m.Called(ctx, agencyID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

// mockTenancyRepo is a mock implementation of letting.TenancyRepository
type mockTenancyRepo struct {
	mock.Mock
}

func (m *mockTenancyRepo) FindByIDForAgency(ctx context.Context, agencyID, id uuid.UUID) (*letting.Tenancy, error) {
	args := m.Called(ctx, agencyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*letting.Tenancy), args.Error(1)
}

func (m *mockTenancyRepo) FindAllForAgency(ctx context.Context, agencyID uuid.UUID, filter letting.TenancyFilter) ([]letting.Tenancy, error) {
	args := m.Called(ctx, agencyID, filter)
	return args.Get(0).([]letting.Tenancy), args.Error(1)
}

func (m *mockTenancyRepo) CountForAgency(ctx context.Context, agencyID uuid.UUID, filter letting.TenancyFilter) (int64, error) {
	args := m.Called(ctx, agencyID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTenancyRepo) Save(ctx context.Context, tenancy *letting.Tenancy) error {
	args := m.Called(ctx, tenancy)
	return args.Error(0)
}

// mockAgencyRepo is a mock implementation of letting.AgencyRepository
type mockAgencyRepo struct {
	mock.Mock
}

func (m *mockAgencyRepo) FindByID(ctx context.Context, id uuid.UUID) (*letting.Agency, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*letting.Agency), args.Error(1)
}

func (m *mockAgencyRepo) FindByCode(ctx context.Context, code string) (*letting.Agency, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*letting.Agency), args.Error(1)
}

func (m *mockAgencyRepo) Save(ctx context.Context, agency *letting.Agency) error {
	args := m.Called(ctx, agency)
	return args.Error(0)
}

// withAgency injects a resolved agency into the request, standing in for the
// JWT and agency middleware chain
func withAgency(agencyID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AgencyIDKey, agencyID.String())
		c.Next()
	}
}

// performJSON issues a request with a JSON body against the engine
func performJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return performJSONWithHeaders(t, engine, method, path, body, nil)
}

// performJSONWithHeaders issues a request with a JSON body and extra headers
func performJSONWithHeaders(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// decodeResponse unmarshals the recorded body into a response envelope
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// testActiveTenancy builds an active tenancy fixture with one member
func testActiveTenancy(t *testing.T, agencyID uuid.UUID) *letting.Tenancy {
	t.Helper()

	tenancy, err := letting.NewTenancy(
		agencyID, "FLAT-12A",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(1200), 1,
	)
	require.NoError(t, err)

	_, err = tenancy.AddMember("Priya Shah", "priya@example.com", decimal.NewFromInt(1200))
	require.NoError(t, err)

	require.NoError(t, tenancy.SendForSignatures())
	require.NoError(t, tenancy.Activate())
	return tenancy
}

// testRentSchedule builds a manual rent schedule fixture
func testRentSchedule(t *testing.T, agencyID uuid.UUID, amountDue int64) *ledger.PaymentSchedule {
	t.Helper()

	// A far-future due date keeps derived statuses stable regardless of the
	// date the tests run on
	schedule, err := ledger.NewManualSchedule(
		agencyID, uuid.New(), uuid.New(),
		time.Date(2030, 9, 1, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(amountDue),
		ledger.PaymentTypeRent, "September rent",
	)
	require.NoError(t, err)
	return schedule
}
