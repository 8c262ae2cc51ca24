package adaptor

import (
	"encoding/json"
	"net/http"

	"bus-booking/internal/dto/request"
	"bus-booking/internal/usecase"
	"bus-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type VehicleHandler struct {
	service usecase.VehicleService
	log     *zap.Logger
}

func NewVehicleHandler(service usecase.VehicleService, log *zap.Logger) *VehicleHandler {
	return &VehicleHandler{
		service: service,
		log:     log.With(zap.String("handler", "vehicle")),
	}
}

// GetVehicles handles GET /api/vehicles
func (h *VehicleHandler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	vehicles, err := h.service.GetVehicles(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "get vehicles")
		return
	}

	utils.ResponseSuccess(w, "success", vehicles)
}

// GetVehicleByID handles GET /api/vehicles/{id}
func (h *VehicleHandler) GetVehicleByID(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.service.GetVehicleByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get vehicle")
		return
	}

	utils.ResponseSuccess(w, "success", vehicle)
}

// GetSeats handles GET /api/vehicles/{id}/seats
func (h *VehicleHandler) GetSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := h.service.GetSeatAvailability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get seats")
		return
	}

	utils.ResponseSuccess(w, "success", seats)
}

// ==================== ADMIN METHODS ====================

// CreateVehicle handles POST /api/admin/vehicles
func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req request.CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	vehicle, err := h.service.CreateVehicle(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create vehicle")
		return
	}

	utils.ResponseCreated(w, "Vehicle created", vehicle)
}

// DeleteVehicle handles DELETE /api/admin/vehicles/{id}
func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVehicle(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.log, err, "delete vehicle")
		return
	}

	utils.ResponseSuccess(w, "Vehicle deleted", nil)
}

// ReleaseSeat handles POST /api/admin/vehicles/{id}/seats/{label}/release
func (h *VehicleHandler) ReleaseSeat(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ReleaseSeat(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "label")); err != nil {
		writeServiceError(w, h.log, err, "release seat")
		return
	}

	utils.ResponseSuccess(w, "Seat released", nil)
}
