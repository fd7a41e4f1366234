package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/coffeeshop/internal/middleware"
	"github.com/mmeshcher/coffeeshop/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса кофейни.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/coffees", h.GetCoffees)
		r.Get("/milks", h.GetMilks)
	})

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireUser(h.session))
			r.Use(custommiddleware.RequireRole(model.RoleBarista, model.RoleAdmin))

			r.Put("/credits", h.UpdateCredits)
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(custommiddleware.RequireUser(h.session))

		r.Get("/mine", h.GetMyOrders)
		r.Post("/", h.PlaceOrder)
		r.Patch("/{id}/status", h.UpdateOrderStatus)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireRole(model.RoleBarista, model.RoleAdmin))

			r.Get("/", h.GetOrders)
			r.Get("/active", h.GetActiveOrders)
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
