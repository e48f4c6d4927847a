package handler

import "github.com/labstack/echo/v4"

// RegisterRoutes は予約APIのルートを登録する
func RegisterRoutes(e *echo.Echo, svc BookingServiceInterface) {
	e.GET("/health", NewHealthHandler().Check)

	v1 := e.Group("/api/v1")

	bookings := NewBookingHandler(svc)
	v1.POST("/bookings", bookings.Create)
	v1.GET("/bookings", bookings.List)

	shows := NewShowHandler(svc)
	v1.GET("/shows/seats", shows.Seats)
	v1.GET("/shows/booked-seats", shows.BookedSeats)
}
