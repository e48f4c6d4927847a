package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-booking/internal/application"
)

type ShowHandler struct {
	service BookingServiceInterface
}

func NewShowHandler(s BookingServiceInterface) *ShowHandler {
	return &ShowHandler{service: s}
}

// ShowQueryParams は上映を指定するクエリパラメータ
type ShowQueryParams struct {
	MovieName  string `query:"movie_name" validate:"required"`
	CinemaName string `query:"cinema_name" validate:"required"`
	Date       string `query:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string `query:"start_time" validate:"required,datetime=15:04"`
	EndTime    string `query:"end_time" validate:"omitempty,datetime=15:04"`
}

func (p ShowQueryParams) toQuery() application.ShowQuery {
	return application.ShowQuery{
		MovieName:  p.MovieName,
		CinemaName: p.CinemaName,
		Date:       p.Date,
		StartTime:  p.StartTime,
		EndTime:    p.EndTime,
	}
}

type SeatResponse struct {
	ID     string `json:"id"`
	Booked bool   `json:"booked"`
}

type SeatLayoutResponse struct {
	Seats     []SeatResponse `json:"seats"`
	Total     int            `json:"total"`
	Available int            `json:"available"`
}

type BookedSeatsResponse struct {
	Seats []string `json:"seats"`
	Count int      `json:"count"`
}

func (h *ShowHandler) bindQuery(c echo.Context) (application.ShowQuery, error) {
	var p ShowQueryParams
	if err := c.Bind(&p); err != nil {
		return application.ShowQuery{}, echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := c.Validate(&p); err != nil {
		return application.ShowQuery{}, err
	}
	return p.toQuery(), nil
}

// Seats godoc
// @Summary 座席配置を取得
// @Description 上映の座席配置を予約状態つきで返します
// @Tags shows
// @Produce json
// @Param movie_name query string true "映画名"
// @Param cinema_name query string true "劇場名"
// @Param date query string true "上映日 (yyyy-MM-dd)"
// @Param start_time query string true "開始時刻 (HH:mm)"
// @Param end_time query string false "終了時刻 (HH:mm)"
// @Success 200 {object} SeatLayoutResponse
// @Failure 400 {object} map[string]string
// @Router /shows/seats [get]
func (h *ShowHandler) Seats(c echo.Context) error {
	q, err := h.bindQuery(c)
	if err != nil {
		return err
	}
	seats, err := h.service.LoadSeatLayout(c.Request().Context(), q)
	if err != nil {
		return toHTTPError(err)
	}
	resp := SeatLayoutResponse{Seats: make([]SeatResponse, len(seats)), Total: len(seats)}
	for i, s := range seats {
		resp.Seats[i] = SeatResponse{ID: s.ID, Booked: s.Booked}
		if !s.Booked {
			resp.Available++
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// BookedSeats godoc
// @Summary 予約済み座席を取得
// @Tags shows
// @Produce json
// @Param movie_name query string true "映画名"
// @Param cinema_name query string true "劇場名"
// @Param date query string true "上映日 (yyyy-MM-dd)"
// @Param start_time query string true "開始時刻 (HH:mm)"
// @Param end_time query string false "終了時刻 (HH:mm)"
// @Success 200 {object} BookedSeatsResponse
// @Failure 400 {object} map[string]string
// @Router /shows/booked-seats [get]
func (h *ShowHandler) BookedSeats(c echo.Context) error {
	q, err := h.bindQuery(c)
	if err != nil {
		return err
	}
	ids, err := h.service.GetBookedSeats(c.Request().Context(), q)
	if err != nil {
		return toHTTPError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, BookedSeatsResponse{Seats: ids, Count: len(ids)})
}
