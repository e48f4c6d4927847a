package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
)

// toHTTPError はドメインエラーをHTTPエラーに変換する
// 検証エラーと競合のメッセージはそのまま利用者に返す
func toHTTPError(err error) *echo.HTTPError {
	var conflict *seat.ConflictError
	switch {
	case booking.IsValidationError(err), show.IsInvalidKey(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		return echo.NewHTTPError(http.StatusConflict, conflict.Error())
	case errors.Is(err, seat.ErrSeatAlreadyBooked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrShowBusy):
		return echo.NewHTTPError(http.StatusServiceUnavailable, inventory.ErrShowBusy.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process booking").SetInternal(err)
	}
}
