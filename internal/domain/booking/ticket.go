package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
)

// Ticket は確定した予約の記録を表す
// 作成後は変更しない。保存先には Clone したものを渡す
type Ticket struct {
	ID         string
	MovieName  string
	CinemaName string
	Date       string
	StartTime  string
	EndTime    string
	Seats      []string
	TotalCost  int
	BookedAt   time.Time
}

// NewTicket は新しいチケットを作成する
func NewTicket(key show.Key, seatIDs []string, totalCost int) *Ticket {
	seats := make([]string, len(seatIDs))
	copy(seats, seatIDs)
	return &Ticket{
		ID:         uuid.New().String(),
		MovieName:  key.MovieName,
		CinemaName: key.CinemaName,
		Date:       key.Date,
		StartTime:  key.StartTime,
		EndTime:    key.EndTime,
		Seats:      seats,
		TotalCost:  totalCost,
		BookedAt:   time.Now(),
	}
}

// ShowKey はチケットの上映キーを返す
func (t *Ticket) ShowKey() show.Key {
	return show.Key{
		MovieName:  t.MovieName,
		CinemaName: t.CinemaName,
		Date:       t.Date,
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
	}
}

// Clone は座席一覧も含めて複製する
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.Seats = make([]string, len(t.Seats))
	copy(c.Seats, t.Seats)
	return &c
}

// Summary は予約完了時に表示する内容を返す
func (t *Ticket) Summary() string {
	var b strings.Builder
	b.WriteString("Booking successful!\n")
	fmt.Fprintf(&b, "Movie: %s\n", t.MovieName)
	fmt.Fprintf(&b, "Cinema: %s\n", t.CinemaName)
	fmt.Fprintf(&b, "Date: %s\n", t.Date)
	fmt.Fprintf(&b, "Time: %s\n", t.ShowKey().TimeRange())
	fmt.Fprintf(&b, "Seats: %s\n", strings.Join(t.Seats, ", "))
	fmt.Fprintf(&b, "Total cost: $%d", t.TotalCost)
	return b.String()
}
