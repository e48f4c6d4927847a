package seat

import (
	"errors"
	"fmt"
)

// Seat ドメインのエラー定義
var (
	ErrSeatAlreadyBooked = errors.New("seat is already booked")
	ErrInvalidLayout     = errors.New("layout must have 1-26 rows and at least 1 column")
)

// ConflictError は予約済みの座席を指定した場合のエラー
// 最初に見つかった競合座席のIDを保持する
type ConflictError struct {
	SeatID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Seat %s is already booked.", e.SeatID)
}

// Is は errors.Is(err, ErrSeatAlreadyBooked) を成立させる
func (e *ConflictError) Is(target error) bool {
	return target == ErrSeatAlreadyBooked
}
