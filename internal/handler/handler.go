// Package handler содержит HTTP-обработчики API сервиса кофейни.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/coffeeshop/internal/catalog"
	"github.com/mmeshcher/coffeeshop/internal/model"
	"github.com/mmeshcher/coffeeshop/internal/validation"
)

// SessionService определяет операции сессии, используемые HTTP-обработчиками.
type SessionService interface {
	Current() *model.Profile
	Loading() bool
	Login(ctx context.Context, email, password string) (*model.Profile, error)
	Register(ctx context.Context, name, email, password string) (*model.Profile, error)
	Logout(ctx context.Context)
	UpdateCredits(ctx context.Context, balance decimal.Decimal) error
}

// OrderService определяет операции над заказами, используемые HTTP-обработчиками.
type OrderService interface {
	PlaceOrder(ctx context.Context, coffeeID string, milk model.MilkOption) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error)
	Orders() []model.Order
	ForCurrentUser() []model.Order
	Active() []model.Order
}

// Handler реализует HTTP-обработчики API сервиса кофейни.
type Handler struct {
	session  SessionService
	orders   OrderService
	validate *validation.Validator
	logger   *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(session SessionService, orders OrderService, logger *zap.Logger) *Handler {
	return &Handler{
		session:  session,
		orders:   orders,
		validate: validation.New(),
		logger:   logger,
	}
}

// GetCoffees возвращает меню напитков.
func (h *Handler) GetCoffees(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, catalog.Coffees())
}

// GetMilks возвращает варианты молока с доплатами.
func (h *Handler) GetMilks(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, catalog.Milks())
}

type sessionResponse struct {
	User    *model.Profile `json:"user"`
	Loading bool           `json:"loading"`
}

// GetSession возвращает текущего пользователя и признак загрузки сессии.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, sessionResponse{
		User:    h.session.Current(),
		Loading: h.session.Loading(),
	})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Register регистрирует пользователя и выполняет вход.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.session.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, "register", err)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login выполняет вход по email и паролю.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, "login", err)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// Logout завершает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	w.WriteHeader(http.StatusOK)
}

type creditsRequest struct {
	Credits *decimal.Decimal `json:"credits" validate:"required,gte=0"`
}

// UpdateCredits устанавливает баланс текущего пользователя.
func (h *Handler) UpdateCredits(w http.ResponseWriter, r *http.Request) {
	var req creditsRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.session.UpdateCredits(r.Context(), *req.Credits); err != nil {
		h.writeError(w, "update credits", err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.session.Current())
}

// decode читает и проверяет JSON-тело запроса. При ошибке ответ уже записан.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  validation.ErrInvalidRequest.Error(),
				"fields": verr.Fields,
			})
			return false
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}

	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// writeError переводит ошибку предметной области в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}

	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials), errors.Is(err, model.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrEmailAlreadyInUse), errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNegativeCredits), errors.Is(err, validation.ErrInvalidRequest),
		errors.Is(err, catalog.ErrUnknownCoffee), errors.Is(err, catalog.ErrUnknownMilk):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
