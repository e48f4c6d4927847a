package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/transaction"
)

type bookingRow struct {
	ID         string    `db:"id"`
	Username   string    `db:"username"`
	MovieName  string    `db:"movie_name"`
	CinemaName string    `db:"cinema_name"`
	ShowDate   string    `db:"show_date"`
	StartTime  string    `db:"start_time"`
	EndTime    string    `db:"end_time"`
	TotalCost  int       `db:"total_cost"`
	BookedAt   time.Time `db:"booked_at"`
}

type bookingSeatRow struct {
	BookingID string `db:"booking_id"`
	SeatID    string `db:"seat_id"`
}

// HistoryRepository は予約履歴を PostgreSQL に保存する
type HistoryRepository struct {
	db  *sqlx.DB
	txm transaction.Manager
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db, txm: NewTxManager(db)}
}

// Append は予約と座席を1トランザクションで保存する
// 同じチケットIDが既に保存済みなら何もしない（再送で重複しない）
func (r *HistoryRepository) Append(ctx context.Context, username string, ticket *booking.Ticket) error {
	return RunInTx(ctx, r.txm, func(tx *sqlx.Tx) error {
		row := toBookingRow(username, ticket)
		res, err := tx.NamedExecContext(ctx, `INSERT INTO bookings (id, username, movie_name, cinema_name, show_date, start_time, end_time, total_cost, booked_at) VALUES (:id, :username, :movie_name, :cinema_name, :show_date, :start_time, :end_time, :total_cost, :booked_at) ON CONFLICT (id) DO NOTHING`, row)
		if err != nil {
			return fmt.Errorf("予約履歴の保存に失敗: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
		for i, seatID := range ticket.Seats {
			if _, err := tx.ExecContext(ctx, `INSERT INTO booking_seats (booking_id, seat_id, position) VALUES ($1, $2, $3)`, ticket.ID, seatID, i); err != nil {
				return fmt.Errorf("予約座席の保存に失敗: %w", err)
			}
		}
		return nil
	})
}

// List はユーザーの履歴を予約日時順に返す
func (r *HistoryRepository) List(ctx context.Context, username string) ([]*booking.Ticket, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, username, movie_name, cinema_name, show_date, start_time, end_time, total_cost, booked_at FROM bookings WHERE username = $1 ORDER BY booked_at, created_at`, username); err != nil {
		return nil, fmt.Errorf("予約履歴の取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return []*booking.Ticket{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var seatRows []bookingSeatRow
	if err := r.db.SelectContext(ctx, &seatRows, `SELECT booking_id, seat_id FROM booking_seats WHERE booking_id = ANY($1) ORDER BY booking_id, position`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("予約座席の取得に失敗: %w", err)
	}

	return toTickets(rows, seatRows), nil
}

func toBookingRow(username string, t *booking.Ticket) bookingRow {
	return bookingRow{
		ID:         t.ID,
		Username:   username,
		MovieName:  t.MovieName,
		CinemaName: t.CinemaName,
		ShowDate:   t.Date,
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
		TotalCost:  t.TotalCost,
		BookedAt:   t.BookedAt,
	}
}

func toTickets(rows []bookingRow, seatRows []bookingSeatRow) []*booking.Ticket {
	seats := make(map[string][]string, len(rows))
	for _, s := range seatRows {
		seats[s.BookingID] = append(seats[s.BookingID], s.SeatID)
	}

	tickets := make([]*booking.Ticket, 0, len(rows))
	for _, row := range rows {
		ids := seats[row.ID]
		if ids == nil {
			ids = []string{}
		}
		tickets = append(tickets, &booking.Ticket{
			ID:         row.ID,
			MovieName:  row.MovieName,
			CinemaName: row.CinemaName,
			Date:       row.ShowDate,
			StartTime:  row.StartTime,
			EndTime:    row.EndTime,
			Seats:      ids,
			TotalCost:  row.TotalCost,
			BookedAt:   row.BookedAt,
		})
	}
	return tickets
}

var _ booking.HistoryStore = (*HistoryRepository)(nil)
