package wire

import (
	"net/http"

	"bus-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireVehicle(r chi.Router, vehicleHandler *adaptor.VehicleHandler, auth, admin func(http.Handler) http.Handler) {
	// ==================== PUBLIC ROUTES ====================
	r.Get("/api/vehicles", vehicleHandler.GetVehicles)
	r.Get("/api/vehicles/{id}", vehicleHandler.GetVehicleByID)

	// GET /api/vehicles/{id}/seats - Current available seats, one consistent snapshot
	r.Get("/api/vehicles/{id}/seats", vehicleHandler.GetSeats)

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/vehicles", func(r chi.Router) {
		r.Use(auth)
		r.Use(admin)

		r.Post("/", vehicleHandler.CreateVehicle)
		r.Delete("/{id}", vehicleHandler.DeleteVehicle)

		// Operator override: frees a seat whoever holds it
		r.Post("/{id}/seats/{label}/release", vehicleHandler.ReleaseSeat)
	})
}
