package booking

import (
	"strings"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
)

// Request は予約リクエストを表す（保存はしない）
type Request struct {
	MovieName  string
	CinemaName string
	Date       string
	StartTime  string
	EndTime    string
	SeatIDs    []string
}

// NewRequest は時間帯文字列を開始・終了時刻に分解して予約リクエストを作成する
// 座席IDは前後の空白を除き、空文字と重複を取り除く（指定順は保持する）
func NewRequest(movieName, cinemaName, date, timeRange string, seatIDs []string) Request {
	start, end := show.ParseTimeRange(timeRange)
	return Request{
		MovieName:  strings.TrimSpace(movieName),
		CinemaName: strings.TrimSpace(cinemaName),
		Date:       strings.TrimSpace(date),
		StartTime:  start,
		EndTime:    end,
		SeatIDs:    normalizeSeatIDs(seatIDs),
	}
}

// ShowKey はリクエストの上映キーを作成する
func (r Request) ShowKey() (show.Key, error) {
	return show.NewKey(r.MovieName, r.CinemaName, r.Date, r.StartTime, r.EndTime)
}

func normalizeSeatIDs(seatIDs []string) []string {
	seen := make(map[string]struct{}, len(seatIDs))
	out := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
