package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
)

// appendScript はチケットIDが未登録のときだけ履歴に追加する
// 追加したら 1、登録済みなら 0 を返す
var appendScript = redis.NewScript(`
if ARGV[1] ~= "" and redis.call("SADD", KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call("RPUSH", KEYS[1], ARGV[2])
return 1
`)

// HistoryStore はユーザーごとの予約履歴を Redis のリストに保存する
type HistoryStore struct {
	client *redis.Client
}

// NewHistoryStore は新しい HistoryStore を作成する
func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

type ticketRecord struct {
	ID         string    `json:"id"`
	MovieName  string    `json:"movieName"`
	CinemaName string    `json:"cinemaName"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
	Seats      []string  `json:"seats"`
	Cost       int       `json:"cost"`
	BookedAt   time.Time `json:"bookedAt"`
}

// Append はチケットを履歴の末尾に追加する
// 同じIDのチケットが既にあれば何もしない（再送で重複しない）
func (s *HistoryStore) Append(ctx context.Context, username string, ticket *booking.Ticket) error {
	payload, err := json.Marshal(toRecord(ticket))
	if err != nil {
		return fmt.Errorf("予約履歴のエンコードに失敗: %w", err)
	}
	keys := []string{historyKey(username), historyIDsKey(username)}
	if err := appendScript.Run(ctx, s.client, keys, ticket.ID, payload).Err(); err != nil {
		return fmt.Errorf("予約履歴の保存に失敗: %w", err)
	}
	return nil
}

// List はユーザーの履歴を追加順に返す
func (s *HistoryStore) List(ctx context.Context, username string) ([]*booking.Ticket, error) {
	values, err := s.client.LRange(ctx, historyKey(username), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("予約履歴の取得に失敗: %w", err)
	}

	tickets := make([]*booking.Ticket, 0, len(values))
	for _, v := range values {
		var r ticketRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("予約履歴のデコードに失敗: %w", err)
		}
		tickets = append(tickets, r.toTicket())
	}
	return tickets, nil
}

func historyKey(username string) string {
	return "history:{" + username + "}"
}

func historyIDsKey(username string) string {
	return "history:{" + username + "}:ids"
}

func toRecord(t *booking.Ticket) ticketRecord {
	return ticketRecord{
		ID:         t.ID,
		MovieName:  t.MovieName,
		CinemaName: t.CinemaName,
		Date:       t.Date,
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
		Seats:      t.Seats,
		Cost:       t.TotalCost,
		BookedAt:   t.BookedAt,
	}
}

func (r ticketRecord) toTicket() *booking.Ticket {
	seats := r.Seats
	if seats == nil {
		seats = []string{}
	}
	return &booking.Ticket{
		ID:         r.ID,
		MovieName:  r.MovieName,
		CinemaName: r.CinemaName,
		Date:       r.Date,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Seats:      seats,
		TotalCost:  r.Cost,
		BookedAt:   r.BookedAt,
	}
}

var _ booking.HistoryStore = (*HistoryStore)(nil)
