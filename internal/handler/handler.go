// Package handler содержит HTTP-обработчики API сервиса бронирования.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/middleware"
	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/service"
	"github.com/oceanview/resort/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	StorageBackend() string
	ListRooms(ctx context.Context, onlyAvailable bool) ([]model.Room, error)
	GetRoom(ctx context.Context, number string) (*model.Room, error)
	CreateBooking(ctx context.Context, guest model.Guest, roomNumber, checkIn, checkOut string) (string, error)
	ListReservations(ctx context.Context) ([]model.Reservation, error)
	SearchReservationsByGuestName(ctx context.Context, fragment string) ([]model.Reservation, error)
	GetReservation(ctx context.Context, number string) (*model.Reservation, error)
	CancelReservation(ctx context.Context, number string) error
	CalculateBill(ctx context.Context, number string) (string, error)
}

// Handler реализует HTTP-обработчики API сервиса бронирования.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	loginLimiter   *middleware.LoginLimiter
}

// NewHandler создаёт обработчик HTTP-запросов. limiter может быть nil.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, limiter *middleware.LoginLimiter) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		loginLimiter:   limiter,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Login проверяет учётные данные сотрудника и выдаёт cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.Authenticate(r.Context(), username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthFailed) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err), zap.String("username", username))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.Username)
	writeJSON(w, http.StatusOK, userResponse{Username: u.Username, FullName: u.FullName, Role: string(u.Role)})
}

// Logout завершает сессию сотрудника.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Status сообщает, какое хранилище обслуживает запросы.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"storage": h.service.StorageBackend()})
}

type roomResponse struct {
	RoomNumber  string  `json:"roomNumber"`
	RoomType    string  `json:"roomType"`
	Description string  `json:"description"`
	Rate        float64 `json:"rate"`
	Available   bool    `json:"available"`
	Capacity    int     `json:"capacity"`
	Features    string  `json:"features"`
}

func newRoomResponse(room model.Room) roomResponse {
	return roomResponse{
		RoomNumber:  room.Number,
		RoomType:    string(room.Type),
		Description: room.Type.Description(),
		Rate:        room.Rate(),
		Available:   room.Available,
		Capacity:    room.Capacity,
		Features:    room.Features,
	}
}

// ListRooms возвращает номера; с параметром available=true только свободные.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	onlyAvailable, _ := strconv.ParseBool(r.URL.Query().Get("available"))

	rooms, err := h.service.ListRooms(r.Context(), onlyAvailable)
	if err != nil {
		h.writeError(w, err, "list rooms")
		return
	}

	resp := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, newRoomResponse(room))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRoom возвращает номер по его обозначению.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.GetRoom(r.Context(), strings.ToUpper(chi.URLParam(r, "number")))
	if err != nil {
		h.writeError(w, err, "get room")
		return
	}
	writeJSON(w, http.StatusOK, newRoomResponse(*room))
}

type reservationRequest struct {
	GuestName     string `json:"guestName"`
	GuestAddress  string `json:"guestAddress"`
	ContactNumber string `json:"contactNumber"`
	Email         string `json:"email"`
	NIC           string `json:"nic"`
	RoomNumber    string `json:"roomNumber"`
	CheckIn       string `json:"checkIn"`
	CheckOut      string `json:"checkOut"`
}

type reservationResponse struct {
	ReservationNumber string  `json:"reservationNumber"`
	GuestName         string  `json:"guestName"`
	GuestAddress      string  `json:"guestAddress,omitempty"`
	ContactNumber     string  `json:"contactNumber,omitempty"`
	Email             string  `json:"email,omitempty"`
	NIC               string  `json:"nic,omitempty"`
	RoomNumber        string  `json:"roomNumber"`
	RoomType          string  `json:"roomType"`
	CheckIn           string  `json:"checkIn"`
	CheckOut          string  `json:"checkOut"`
	Nights            int     `json:"nights"`
	TotalAmount       float64 `json:"totalAmount"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"createdAt"`
}

func newReservationResponse(res model.Reservation) reservationResponse {
	return reservationResponse{
		ReservationNumber: res.Number,
		GuestName:         res.Guest.Name,
		GuestAddress:      res.Guest.Address,
		ContactNumber:     res.Guest.ContactNumber,
		Email:             res.Guest.Email,
		NIC:               res.Guest.NIC,
		RoomNumber:        res.Room.Number,
		RoomType:          string(res.Room.Type),
		CheckIn:           res.CheckIn.Format(validation.DateLayout),
		CheckOut:          res.CheckOut.Format(validation.DateLayout),
		Nights:            res.Nights,
		TotalAmount:       res.TotalAmount,
		Status:            string(res.Status),
		CreatedAt:         res.CreatedAt.Format(time.RFC3339),
	}
}

func newReservationsResponse(rs []model.Reservation) []reservationResponse {
	resp := make([]reservationResponse, 0, len(rs))
	for _, res := range rs {
		resp = append(resp, newReservationResponse(res))
	}
	return resp
}

// CreateReservation бронирует номер и возвращает номер брони.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	guest := model.Guest{
		Name:          req.GuestName,
		Address:       req.GuestAddress,
		ContactNumber: req.ContactNumber,
		Email:         req.Email,
		NIC:           req.NIC,
	}

	number, err := h.service.CreateBooking(r.Context(), guest, req.RoomNumber, req.CheckIn, req.CheckOut)
	if err != nil {
		h.writeError(w, err, "create reservation")
		return
	}

	if username, ok := middleware.GetUsernameFromContext(r.Context()); ok {
		h.logger.Info("reservation booked", zap.String("reservation", number), zap.String("by", username))
	}

	writeJSON(w, http.StatusCreated, map[string]string{"reservationNumber": number})
}

// ListReservations возвращает все бронирования, новые первыми.
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := h.service.ListReservations(r.Context())
	if err != nil {
		h.writeError(w, err, "list reservations")
		return
	}
	writeJSON(w, http.StatusOK, newReservationsResponse(rs))
}

// SearchReservations ищет бронирования по части имени гостя.
func (h *Handler) SearchReservations(w http.ResponseWriter, r *http.Request) {
	name := validation.Sanitize(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rs, err := h.service.SearchReservationsByGuestName(r.Context(), name)
	if err != nil {
		h.writeError(w, err, "search reservations")
		return
	}
	writeJSON(w, http.StatusOK, newReservationsResponse(rs))
}

// GetReservation возвращает бронирование по номеру.
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetReservation(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, err, "get reservation")
		return
	}
	writeJSON(w, http.StatusOK, newReservationResponse(*res))
}

// CancelReservation отменяет бронирование.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelReservation(r.Context(), chi.URLParam(r, "number")); err != nil {
		h.writeError(w, err, "cancel reservation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBill пересчитывает и возвращает счёт по бронированию.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	bill, err := h.service.CalculateBill(r.Context(), number)
	if err != nil {
		h.writeError(w, err, "calculate bill")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reservationNumber": number, "bill": bill})
}

// writeError переводит ошибку сервиса в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	var perr *service.PersistenceError

	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &perr):
		h.logger.Error(op+" persistence error",
			zap.String("reservation", perr.ReservationNumber),
			zap.Bool("compensated", perr.Compensated),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
