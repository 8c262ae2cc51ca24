package wire

import (
	"net/http"

	"bus-booking/internal/adaptor"
	"bus-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, auth, admin func(http.Handler) http.Handler, deps Deps) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(auth)

		// POST /api/bookings - Claim a seat; throttled per rider
		r.With(middleware.RateLimit(deps.Redis, deps.Config.Redis, "bookings", deps.Logger)).
			Post("/api/bookings", bookingHandler.CreateBooking)

		r.Get("/api/user/bookings", bookingHandler.GetUserBookings)
		r.Post("/api/bookings/{id}/confirm", bookingHandler.ConfirmBooking)
		r.Post("/api/bookings/{id}/cancel", bookingHandler.CancelBooking)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(auth)
		r.Use(admin)

		r.Get("/{id}", bookingHandler.GetBookingByID)
		r.Post("/{id}/cancel", bookingHandler.AdminCancelBooking)
	})
}
