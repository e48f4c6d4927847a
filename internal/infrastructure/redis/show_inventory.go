package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/logger"
)

// reserveScript は指定順に予約済みかを確認し、1席でも予約済みならその座席IDを返す
// すべて空いていればセットと順序リストに追加して空文字を返す
var reserveScript = redis.NewScript(`
for i = 1, #ARGV do
	if redis.call("SISMEMBER", KEYS[1], ARGV[i]) == 1 then
		return ARGV[i]
	end
end
redis.call("SADD", KEYS[1], unpack(ARGV))
redis.call("RPUSH", KEYS[2], unpack(ARGV))
return ""
`)

// InventoryOptions はロック取得の設定
type InventoryOptions struct {
	LockTTL        time.Duration
	LockRetries    int
	LockRetryDelay time.Duration
}

// DefaultInventoryOptions はデフォルトのロック設定を返す
func DefaultInventoryOptions() InventoryOptions {
	return InventoryOptions{
		LockTTL:        5 * time.Second,
		LockRetries:    20,
		LockRetryDelay: 25 * time.Millisecond,
	}
}

// ShowInventory は Redis 上で上映ごとの予約済み座席を管理する
// 空き確認と登録は1つの Lua スクリプトで行う。上映単位の分散ロックは混雑時の待ち合わせに使う
type ShowInventory struct {
	client *redis.Client
	locks  LockManagerInterface
	layout seat.Layout
	opts   InventoryOptions
}

// NewShowInventory は新しい ShowInventory を作成する
func NewShowInventory(client *redis.Client, locks LockManagerInterface, layout seat.Layout, opts InventoryOptions) *ShowInventory {
	return &ShowInventory{client: client, locks: locks, layout: layout, opts: opts}
}

// Reserve は分散ロックを取得してから空き確認と登録をアトミックに行う
func (inv *ShowInventory) Reserve(ctx context.Context, key show.Key, seatIDs []string) error {
	ids := uniqueIDs(seatIDs)
	if len(ids) == 0 {
		return nil
	}

	lock, err := inv.locks.AcquireLockWithRetry(ctx, lockKey(key), inv.opts.LockTTL, inv.opts.LockRetries, inv.opts.LockRetryDelay)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return fmt.Errorf("%w: %s", inventory.ErrShowBusy, key)
		}
		return fmt.Errorf("上映ロックの取得に失敗: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("上映ロックの解放に失敗", zap.String("show", key.String()), zap.Error(err))
		}
	}()

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	// 空き確認と登録はスクリプト内で行うので、ロックの期限が切れていても二重予約にならない
	conflict, err := reserveScript.Run(ctx, inv.client, []string{bookedKey(key), orderKey(key)}, members...).Text()
	if err != nil {
		return fmt.Errorf("予約済み座席の登録に失敗: %w", err)
	}
	if conflict != "" {
		return &seat.ConflictError{SeatID: conflict}
	}
	return nil
}

// Layout は予約状態を反映した座席配置を返す
func (inv *ShowInventory) Layout(ctx context.Context, key show.Key) ([]seat.Seat, error) {
	booked, err := inv.client.SMembers(ctx, bookedKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("予約済み座席の取得に失敗: %w", err)
	}

	seats := inv.layout.Generate()
	for _, id := range booked {
		if i, ok := inv.layout.Index(id); ok {
			seats[i].Booked = true
		}
	}
	return seats, nil
}

// Booked は予約済み座席IDを予約された順に返す
func (inv *ShowInventory) Booked(ctx context.Context, key show.Key) ([]string, error) {
	booked, err := inv.client.LRange(ctx, orderKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("予約済み座席の取得に失敗: %w", err)
	}
	if booked == nil {
		booked = []string{}
	}
	return booked, nil
}

func lockKey(key show.Key) string {
	return "show:" + key.Digest()
}

// スクリプトで同時に触るキーはハッシュタグで同じスロットに置く
func bookedKey(key show.Key) string {
	return "show:{" + key.Digest() + "}:booked"
}

func orderKey(key show.Key) string {
	return "show:{" + key.Digest() + "}:order"
}

func uniqueIDs(seatIDs []string) []string {
	seen := make(map[string]struct{}, len(seatIDs))
	ids := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

var _ inventory.Inventory = (*ShowInventory)(nil)
