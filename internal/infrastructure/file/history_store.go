package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
)

// HistoryStore はユーザー情報をまとめた1つの JSON ファイルに予約履歴を保存する
//
// ファイルは {"<username>": {"watchlist": [...], "bookings": [...]}} の形式。
// bookings 以外のフィールド（watchlist など）は読み込んだまま書き戻す。
// 書き込みは一時ファイルに書いてから rename するので、途中で落ちても元のファイルは壊れない
type HistoryStore struct {
	mu   sync.Mutex
	path string
}

type bookingRecord struct {
	ID         string     `json:"id,omitempty"`
	MovieName  string     `json:"movieName"`
	CinemaName string     `json:"cinemaName"`
	Date       string     `json:"date"`
	StartTime  string     `json:"startTime"`
	EndTime    string     `json:"endTime"`
	Cost       int        `json:"cost"`
	Seats      []string   `json:"seats"`
	BookedAt   *time.Time `json:"bookedAt,omitempty"`
}

// document はユーザー名 -> ユーザーのフィールド群
type document map[string]map[string]json.RawMessage

// NewHistoryStore は新しい HistoryStore を作成する
func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{path: path}
}

// Append はユーザーの bookings にチケットを追加する
// 同じIDのチケットが既にあれば何もしない
func (s *HistoryStore) Append(ctx context.Context, username string, ticket *booking.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	user := doc[username]
	if user == nil {
		user = map[string]json.RawMessage{"watchlist": json.RawMessage("[]")}
		doc[username] = user
	}

	records, err := decodeBookings(user["bookings"])
	if err != nil {
		return fmt.Errorf("%s の予約履歴の読み込みに失敗: %w", username, err)
	}
	for _, r := range records {
		if ticket.ID != "" && r.ID == ticket.ID {
			return nil
		}
	}
	records = append(records, toRecord(ticket))

	encoded, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("予約履歴のエンコードに失敗: %w", err)
	}
	user["bookings"] = encoded

	return s.save(doc)
}

// List はユーザーの bookings を保存順に返す
func (s *HistoryStore) List(ctx context.Context, username string) ([]*booking.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	records, err := decodeBookings(doc[username]["bookings"])
	if err != nil {
		return nil, fmt.Errorf("%s の予約履歴の読み込みに失敗: %w", username, err)
	}

	tickets := make([]*booking.Ticket, 0, len(records))
	for _, r := range records {
		tickets = append(tickets, r.toTicket())
	}
	return tickets, nil
}

func (s *HistoryStore) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("履歴ファイルの読み込みに失敗: %w", err)
	}
	if len(data) == 0 {
		return document{}, nil
	}

	doc := document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("履歴ファイルの解析に失敗: %w", err)
	}
	return doc, nil
}

func (s *HistoryStore) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("履歴ファイルのエンコードに失敗: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("履歴ディレクトリの作成に失敗: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルへの書き込みに失敗: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルの同期に失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("履歴ファイルの置き換えに失敗: %w", err)
	}
	return nil
}

func decodeBookings(raw json.RawMessage) ([]bookingRecord, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []bookingRecord{}, nil
	}
	var records []bookingRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func toRecord(t *booking.Ticket) bookingRecord {
	r := bookingRecord{
		ID:         t.ID,
		MovieName:  t.MovieName,
		CinemaName: t.CinemaName,
		Date:       t.Date,
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
		Cost:       t.TotalCost,
		Seats:      t.Seats,
	}
	if !t.BookedAt.IsZero() {
		bookedAt := t.BookedAt
		r.BookedAt = &bookedAt
	}
	if r.Seats == nil {
		r.Seats = []string{}
	}
	return r
}

func (r bookingRecord) toTicket() *booking.Ticket {
	t := &booking.Ticket{
		ID:         r.ID,
		MovieName:  r.MovieName,
		CinemaName: r.CinemaName,
		Date:       r.Date,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Seats:      r.Seats,
		TotalCost:  r.Cost,
	}
	if r.BookedAt != nil {
		t.BookedAt = *r.BookedAt
	}
	if t.Seats == nil {
		t.Seats = []string{}
	}
	return t
}

var _ booking.HistoryStore = (*HistoryStore)(nil)
