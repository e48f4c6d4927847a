package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-booking/internal/application"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/user"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

// CreateBookingRequest は予約リクエスト
// 必須項目の検証はドメイン側で行い、メッセージをそのまま返す
type CreateBookingRequest struct {
	MovieName  string   `json:"movie_name" example:"Stargate"`
	CinemaName string   `json:"cinema_name" example:"Downtown"`
	Date       string   `json:"date" example:"2024-02-20"`
	TimeRange  string   `json:"time_range" example:"21:30 - 23:00"`
	Seats      []string `json:"seats" example:"A1,A2"`
}

type TicketResponse struct {
	ID         string    `json:"id"`
	MovieName  string    `json:"movie_name"`
	CinemaName string    `json:"cinema_name"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time,omitempty"`
	Seats      []string  `json:"seats"`
	TotalCost  int       `json:"total_cost"`
	BookedAt   time.Time `json:"booked_at"`
}

type BookingResponse struct {
	Ticket      TicketResponse `json:"ticket"`
	Summary     string         `json:"summary"`
	Username    string         `json:"username,omitempty"`
	Persistence string         `json:"persistence"`
	Warning     string         `json:"warning,omitempty"`
}

func toTicketResponse(t *booking.Ticket) TicketResponse {
	return TicketResponse{
		ID: t.ID, MovieName: t.MovieName, CinemaName: t.CinemaName,
		Date: t.Date, StartTime: t.StartTime, EndTime: t.EndTime,
		Seats: t.Seats, TotalCost: t.TotalCost, BookedAt: t.BookedAt,
	}
}

func toBookingResponse(r *application.BookingResult) BookingResponse {
	return BookingResponse{
		Ticket:      toTicketResponse(r.Ticket),
		Summary:     r.Ticket.Summary(),
		Username:    r.Username,
		Persistence: string(r.Persistence),
		Warning:     r.Warning,
	}
}

// Create godoc
// @Summary 座席を予約
// @Description 指定した上映の座席をまとめて予約します。X-User-ID があれば予約履歴に保存します
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string false "ユーザー名"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "座席が既に予約済み"
// @Failure 503 {object} map[string]string "上映が他の予約で処理中"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.service.Execute(c.Request().Context(), application.ExecuteInput{
		MovieName:  req.MovieName,
		CinemaName: req.CinemaName,
		Date:       req.Date,
		TimeRange:  req.TimeRange,
		SeatIDs:    req.Seats,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(result))
}

// List godoc
// @Summary 予約履歴を取得
// @Description ユーザーの予約履歴を予約順に返します
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザー名"
// @Success 200 {array} TicketResponse
// @Failure 401 {object} map[string]string
// @Router /bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	username, ok := user.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
	}
	tickets, err := h.service.ListBookings(c.Request().Context(), username)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load booking history").SetInternal(err)
	}
	resp := make([]TicketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = toTicketResponse(t)
	}
	return c.JSON(http.StatusOK, resp)
}
