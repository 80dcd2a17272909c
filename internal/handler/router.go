package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/oceanview/resort/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бронирования.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(custommiddleware.Recovery(h.logger))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			if h.loginLimiter != nil {
				r.Use(h.loginLimiter.Middleware)
			}
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/rooms", h.ListRooms)
			r.Get("/rooms/{number}", h.GetRoom)

			r.Post("/reservations", h.CreateReservation)
			r.Get("/reservations", h.ListReservations)
			r.Get("/reservations/search", h.SearchReservations)
			r.Get("/reservations/{number}", h.GetReservation)
			r.Post("/reservations/{number}/cancel", h.CancelReservation)

			r.Get("/bill/{number}", h.GetBill)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
