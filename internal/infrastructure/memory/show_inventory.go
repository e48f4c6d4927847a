package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
)

// ShowInventory はプロセス内で上映ごとの座席を管理する
// ロックは上映キー単位。別の上映への予約は互いにブロックしない
type ShowInventory struct {
	layout seat.Layout
	shows  sync.Map // show.Key -> *showEntry
}

// showEntry は1上映分の状態
// 書き込みは mu を保持して snapshot を丸ごと差し替える。読み取りはロック不要
type showEntry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[showSnapshot]
}

// showSnapshot は不変。座席の booked フラグと予約済みセットは常に一致する
type showSnapshot struct {
	seats  []seat.Seat
	booked map[string]struct{}
	order  []string
}

// NewShowInventory は新しい ShowInventory を作成する
func NewShowInventory(layout seat.Layout) *ShowInventory {
	return &ShowInventory{layout: layout}
}

// Reserve は空き確認と予約を1つのクリティカルセクションで行う
func (inv *ShowInventory) Reserve(_ context.Context, key show.Key, seatIDs []string) error {
	e := inv.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.snapshot.Load()
	for _, id := range seatIDs {
		if _, ok := current.booked[id]; ok {
			return &seat.ConflictError{SeatID: id}
		}
	}
	e.snapshot.Store(current.withBooked(inv.layout, seatIDs))
	return nil
}

// Layout は座席配置の複製を返す（初回アクセス時に生成する）
func (inv *ShowInventory) Layout(_ context.Context, key show.Key) ([]seat.Seat, error) {
	snap := inv.entry(key).snapshot.Load()
	seats := make([]seat.Seat, len(snap.seats))
	copy(seats, snap.seats)
	return seats, nil
}

// Booked は予約済み座席IDを予約された順に返す
func (inv *ShowInventory) Booked(_ context.Context, key show.Key) ([]string, error) {
	v, ok := inv.shows.Load(key)
	if !ok {
		return []string{}, nil
	}
	snap := v.(*showEntry).snapshot.Load()
	booked := make([]string, len(snap.order))
	copy(booked, snap.order)
	return booked, nil
}

func (inv *ShowInventory) entry(key show.Key) *showEntry {
	if v, ok := inv.shows.Load(key); ok {
		return v.(*showEntry)
	}
	e := &showEntry{}
	e.snapshot.Store(&showSnapshot{
		seats:  inv.layout.Generate(),
		booked: map[string]struct{}{},
		order:  []string{},
	})
	// 競合した場合は先に登録された方を使う（生成は決定的なので捨てても問題ない）
	v, _ := inv.shows.LoadOrStore(key, e)
	return v.(*showEntry)
}

func (s *showSnapshot) withBooked(layout seat.Layout, seatIDs []string) *showSnapshot {
	next := &showSnapshot{
		seats:  make([]seat.Seat, len(s.seats)),
		booked: make(map[string]struct{}, len(s.booked)+len(seatIDs)),
		order:  make([]string, len(s.order), len(s.order)+len(seatIDs)),
	}
	copy(next.seats, s.seats)
	copy(next.order, s.order)
	for id := range s.booked {
		next.booked[id] = struct{}{}
	}

	for _, id := range seatIDs {
		if _, ok := next.booked[id]; ok {
			continue
		}
		next.booked[id] = struct{}{}
		next.order = append(next.order, id)
		if i, ok := layout.Index(id); ok {
			next.seats[i].Booked = true
		}
	}
	return next
}

var _ inventory.Inventory = (*ShowInventory)(nil)
