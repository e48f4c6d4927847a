package booking

import (
	"errors"
	"fmt"
)

// Booking ドメインのエラー定義
// メッセージは利用者にそのまま表示される
var (
	ErrMissingDetails  = errors.New("Some booking details are missing.")
	ErrNoSeatsSelected = errors.New("No seats were selected.")
	ErrUnknownSeat     = errors.New("seat does not exist")
)

// UnknownSeatError は座席配置に存在しない座席IDを指定した場合のエラー
type UnknownSeatError struct {
	SeatID string
}

func (e *UnknownSeatError) Error() string {
	return fmt.Sprintf("Seat %s does not exist.", e.SeatID)
}

func (e *UnknownSeatError) Is(target error) bool {
	return target == ErrUnknownSeat
}

// IsValidationError はリクエスト検証エラーかを返す
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingDetails) ||
		errors.Is(err, ErrNoSeatsSelected) ||
		errors.Is(err, ErrUnknownSeat)
}
