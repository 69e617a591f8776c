package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lettingapp "github.com/letably/backend/internal/application/letting"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAgencyRouter(agencyID uuid.UUID, agencyRepo *mockAgencyRepo) *gin.Engine {
	svc := lettingapp.NewAgencyService(agencyRepo)
	h := NewAgencyHandler(svc)

	engine := gin.New()
	// Registration is reachable without an agency context
	engine.POST("/agencies", h.Create)
	engine.GET("/agencies/current", withAgency(agencyID), h.GetCurrent)
	return engine
}

func TestAgencyHandlerCreate(t *testing.T) {
	t.Run("registers agency", func(t *testing.T) {
		agencyRepo := new(mockAgencyRepo)
		engine := setupAgencyRouter(uuid.New(), agencyRepo)

		agencyRepo.On("Save", mock.Anything, mock.AnythingOfType("*letting.Agency")).Return(nil)

		w := performJSON(t, engine, "POST", "/agencies", gin.H{
			"name": "Hartley Lettings",
			"code": "HART",
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]any)
		assert.Equal(t, "Hartley Lettings", data["name"])
		agencyRepo.AssertExpectations(t)
	})

	t.Run("duplicate code surfaces as conflict", func(t *testing.T) {
		agencyRepo := new(mockAgencyRepo)
		engine := setupAgencyRouter(uuid.New(), agencyRepo)

		agencyRepo.On("Save", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)

		w := performJSON(t, engine, "POST", "/agencies", gin.H{
			"name": "Hartley Lettings",
			"code": "HART",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("rejects non-alphanumeric code", func(t *testing.T) {
		agencyRepo := new(mockAgencyRepo)
		engine := setupAgencyRouter(uuid.New(), agencyRepo)

		w := performJSON(t, engine, "POST", "/agencies", gin.H{
			"name": "Hartley Lettings",
			"code": "HART LETS",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAgencyHandlerGetCurrent(t *testing.T) {
	t.Run("returns resolved agency", func(t *testing.T) {
		agencyID := uuid.New()
		agencyRepo := new(mockAgencyRepo)
		engine := setupAgencyRouter(agencyID, agencyRepo)

		agency, err := letting.NewAgency("Hartley Lettings", "HART")
		require.NoError(t, err)
		agencyRepo.On("FindByID", mock.Anything, agencyID).Return(agency, nil)

		w := performJSON(t, engine, "GET", "/agencies/current", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]any)
		assert.Equal(t, "HART", data["code"])
	})

	t.Run("missing agency context fails closed", func(t *testing.T) {
		agencyRepo := new(mockAgencyRepo)
		svc := lettingapp.NewAgencyService(agencyRepo)
		h := NewAgencyHandler(svc)

		engine := gin.New()
		engine.GET("/agencies/current", h.GetCurrent)

		w := performJSON(t, engine, "GET", "/agencies/current", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		agencyRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}
