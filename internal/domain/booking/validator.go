package booking

import (
	"strings"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
)

// Validator は予約リクエストの構造を検証する
// 既定では終了時刻を必須とせず、座席IDが配置に含まれるかも確認しない
type Validator struct {
	requireEndTime bool
	layout         *seat.Layout
}

// ValidatorOption は Validator の設定を変更する
type ValidatorOption func(*Validator)

// WithRequireEndTime は終了時刻を必須にする
func WithRequireEndTime() ValidatorOption {
	return func(v *Validator) {
		v.requireEndTime = true
	}
}

// WithSeatLayout は座席IDが配置に含まれることを検証する
func WithSeatLayout(l seat.Layout) ValidatorOption {
	return func(v *Validator) {
		v.layout = &l
	}
}

// NewValidator は Validator を作成する
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate はリクエストを検証する
func (v *Validator) Validate(req Request) error {
	if isBlank(req.MovieName) || isBlank(req.CinemaName) || isBlank(req.Date) || isBlank(req.StartTime) {
		return ErrMissingDetails
	}
	if v.requireEndTime && isBlank(req.EndTime) {
		return ErrMissingDetails
	}
	if len(req.SeatIDs) == 0 {
		return ErrNoSeatsSelected
	}
	if v.layout != nil {
		for _, id := range req.SeatIDs {
			if !v.layout.Contains(id) {
				return &UnknownSeatError{SeatID: id}
			}
		}
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
