package handler

import (
	"context"

	"github.com/sanosuguru/go-cinema-booking/internal/application"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
)

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	Execute(ctx context.Context, input application.ExecuteInput) (*application.BookingResult, error)
	LoadSeatLayout(ctx context.Context, q application.ShowQuery) ([]seat.Seat, error)
	GetBookedSeats(ctx context.Context, q application.ShowQuery) ([]string, error)
	ListBookings(ctx context.Context, username string) ([]*booking.Ticket, error)
}

var _ BookingServiceInterface = (*application.BookingService)(nil)
