package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/middleware"
	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/services"
	"github.com/irfndi/tanya-ai-go/internal/utils"
)

// ClinicTools is satisfied by *services.ClinicService.
type ClinicTools interface {
	IdentifyPatient(ctx context.Context, req services.IdentifyPatientRequest) (models.ToolResponse, error)
	AssessInjury(ctx context.Context, symptoms string) (models.ToolResponse, error)
	AssessMentalHealth(ctx context.Context, symptoms string) (models.ToolResponse, error)
	BookAppointment(ctx context.Context, req services.BookAppointmentRequest) (models.ToolResponse, error)
	ViewAppointments(ctx context.Context, phone string) (models.ToolResponse, error)
	UpdateAppointment(ctx context.Context, req services.UpdateAppointmentRequest) (models.ToolResponse, error)
	CancelAppointment(ctx context.Context, bookingID int64) (models.ToolResponse, error)
	CheckInsurance(ctx context.Context, phone string) (models.ToolResponse, error)
	SubmitInsuranceClaim(ctx context.Context, req services.InsuranceClaimRequest) (models.ToolResponse, error)
	GetMedicineInfo(ctx context.Context, name string) (models.ToolResponse, error)
}

type symptomsRequest struct {
	Symptoms string `json:"symptoms" binding:"required"`
}

type phoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type bookingRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
}

type medicineRequest struct {
	Name string `json:"name" binding:"required"`
}

type toolFunc func(c *gin.Context) (models.ToolResponse, error)

// ToolsHandler exposes the clinic operations to the voice agent as
// POST /api/v1/tools/:name, one JSON body per tool.
type ToolsHandler struct {
	tools  map[string]toolFunc
	logger *logrus.Logger
}

func NewToolsHandler(clinic ClinicTools, logger *logrus.Logger) *ToolsHandler {
	h := &ToolsHandler{logger: logger}
	h.tools = map[string]toolFunc{
		services.ToolIdentifyPatient: func(c *gin.Context) (models.ToolResponse, error) {
			var req services.IdentifyPatientRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.IdentifyPatient(c.Request.Context(), req)
		},
		services.ToolAssessInjury: func(c *gin.Context) (models.ToolResponse, error) {
			var req symptomsRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.AssessInjury(c.Request.Context(), req.Symptoms)
		},
		services.ToolAssessMentalHealth: func(c *gin.Context) (models.ToolResponse, error) {
			var req symptomsRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.AssessMentalHealth(c.Request.Context(), req.Symptoms)
		},
		services.ToolBookAppointment: func(c *gin.Context) (models.ToolResponse, error) {
			var req services.BookAppointmentRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.BookAppointment(c.Request.Context(), req)
		},
		services.ToolViewAppointments: func(c *gin.Context) (models.ToolResponse, error) {
			var req phoneRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.ViewAppointments(c.Request.Context(), req.Phone)
		},
		services.ToolUpdateAppointment: func(c *gin.Context) (models.ToolResponse, error) {
			var req services.UpdateAppointmentRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.UpdateAppointment(c.Request.Context(), req)
		},
		services.ToolCancelAppointment: func(c *gin.Context) (models.ToolResponse, error) {
			var req bookingRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.CancelAppointment(c.Request.Context(), req.BookingID)
		},
		services.ToolCheckInsurance: func(c *gin.Context) (models.ToolResponse, error) {
			var req phoneRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.CheckInsurance(c.Request.Context(), req.Phone)
		},
		services.ToolSubmitClaim: func(c *gin.Context) (models.ToolResponse, error) {
			var req services.InsuranceClaimRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.SubmitInsuranceClaim(c.Request.Context(), req)
		},
		services.ToolGetMedicineInfo: func(c *gin.Context) (models.ToolResponse, error) {
			var req medicineRequest
			if err := bind(c, &req); err != nil {
				return models.ToolResponse{}, err
			}
			return clinic.GetMedicineInfo(c.Request.Context(), req.Name)
		},
	}
	return h
}

// Names lists the registered tools in order.
func (h *ToolsHandler) Names() []string {
	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List handles GET /api/v1/tools.
func (h *ToolsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.Names()})
}

// Invoke handles POST /api/v1/tools/:name.
func (h *ToolsHandler) Invoke(c *gin.Context) {
	name := c.Param("name")
	tool, ok := h.tools[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tool: " + name})
		return
	}

	resp, err := tool(c)
	if err != nil {
		if utils.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		middleware.RecordError(c, err, "clinic tool failed")
		h.logger.WithError(err).WithField("tool", name).Error("Tool invocation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Tool execution failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func bind(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return utils.NewValidationErrorf("Invalid request body: %v", err)
	}
	return nil
}
