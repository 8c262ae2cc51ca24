package adaptor

import (
	"errors"
	"net/http"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/usecase"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

// writeServiceError maps a service error to a response. Ledger errors get
// fixed rider-facing messages; everything unclassified is a 500 with the
// cause kept out of the body.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	switch {
	case errors.Is(err, entity.ErrVehicleNotFound):
		log.Warn(operation+" failed - vehicle not found", zap.Error(err))
		utils.ResponseNotFound(w, "Vehicle unavailable")

	case errors.Is(err, entity.ErrSeatNotFound):
		log.Warn(operation+" failed - seat not found", zap.Error(err))
		utils.ResponseConflict(w, "Seat not found, please refresh and pick again")

	case errors.Is(err, entity.ErrSeatUnavailable):
		log.Info(operation+" failed - seat taken", zap.Error(err))
		utils.ResponseConflict(w, "Seat just taken, choose another")

	case errors.Is(err, entity.ErrVehicleDeparted):
		log.Warn(operation+" failed - vehicle departed", zap.Error(err))
		utils.ResponseConflict(w, "Vehicle already departed")

	case errors.Is(err, entity.ErrBookingNotFound):
		log.Warn(operation+" failed - booking not found", zap.Error(err))
		utils.ResponseNotFound(w, "Booking not found")

	case errors.Is(err, entity.ErrBookingState):
		log.Warn(operation+" failed - invalid state", zap.Error(err))
		utils.ResponseConflict(w, err.Error())

	case errors.Is(err, entity.ErrForbidden):
		log.Warn(operation+" failed - forbidden", zap.Error(err))
		utils.ResponseForbidden(w, err.Error())

	case errors.Is(err, usecase.ErrInvalidCredentials):
		log.Warn(operation+" failed - invalid credentials", zap.Error(err))
		utils.ResponseUnauthorized(w, "Invalid credentials")

	case errors.Is(err, entity.ErrValidation), errors.Is(err, entity.ErrInvalidInput):
		log.Warn(operation+" failed - bad input", zap.Error(err))
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.Is(err, entity.ErrAlreadyExists):
		log.Warn(operation+" failed - already exists", zap.Error(err))
		utils.ResponseConflict(w, err.Error())

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
