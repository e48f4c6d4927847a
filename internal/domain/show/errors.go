package show

import "errors"

// Show ドメインのエラー定義
var (
	ErrMovieNameRequired  = errors.New("movie name is required")
	ErrCinemaNameRequired = errors.New("cinema name is required")
	ErrInvalidDate        = errors.New("date must be in yyyy-MM-dd format")
	ErrInvalidStartTime   = errors.New("start time must be in HH:mm format")
	ErrInvalidEndTime     = errors.New("end time must be in HH:mm format")
)

// IsInvalidKey はキー構築時の検証エラーかを返す
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrMovieNameRequired) ||
		errors.Is(err, ErrCinemaNameRequired) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidStartTime) ||
		errors.Is(err, ErrInvalidEndTime)
}
