package inventory

import (
	"context"
	"errors"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
)

// ErrShowBusy は上映のロックを取得できなかった場合のエラー
var ErrShowBusy = errors.New("show is being booked by another request, please retry")

// Inventory は上映ごとの座席配置と予約済み座席を管理するインターフェース
type Inventory interface {
	// Reserve は空き確認と予約済みへの更新を上映単位でアトミックに行う
	// 予約済みの座席があれば最初の1席を *seat.ConflictError で返し、何も変更しない
	Reserve(ctx context.Context, key show.Key, seatIDs []string) error

	// Layout は予約状態を反映した座席配置の複製を返す
	Layout(ctx context.Context, key show.Key) ([]seat.Seat, error)

	// Booked は予約済み座席IDのスナップショットを返す
	Booked(ctx context.Context, key show.Key) ([]string, error)
}
