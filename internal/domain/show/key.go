package show

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

const (
	// DateLayout は上映日の形式（yyyy-MM-dd）
	DateLayout = "2006-01-02"
	// TimeLayout は開始・終了時刻の形式（HH:mm）
	TimeLayout = "15:04"
)

// Key は1回の上映（映画・劇場・日付・開始・終了時刻）を識別する値
// フィールド単位で比較できるので、そのまま map のキーとして使う
type Key struct {
	MovieName  string
	CinemaName string
	Date       string
	StartTime  string
	EndTime    string
}

// NewKey は形式を検証して Key を作成する
// EndTime は空を許容する（終了時刻を必須としない予約ポリシーに合わせる）
func NewKey(movieName, cinemaName, date, startTime, endTime string) (Key, error) {
	k := Key{
		MovieName:  strings.TrimSpace(movieName),
		CinemaName: strings.TrimSpace(cinemaName),
		Date:       strings.TrimSpace(date),
		StartTime:  strings.TrimSpace(startTime),
		EndTime:    strings.TrimSpace(endTime),
	}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Validate はキーの検証を行う
func (k Key) Validate() error {
	if k.MovieName == "" {
		return ErrMovieNameRequired
	}
	if k.CinemaName == "" {
		return ErrCinemaNameRequired
	}
	if _, err := time.Parse(DateLayout, k.Date); err != nil {
		return ErrInvalidDate
	}
	if _, err := time.Parse(TimeLayout, k.StartTime); err != nil {
		return ErrInvalidStartTime
	}
	if k.EndTime != "" {
		if _, err := time.Parse(TimeLayout, k.EndTime); err != nil {
			return ErrInvalidEndTime
		}
	}
	return nil
}

// Digest はキーを一意に表す16進文字列を返す
// Redis のキーなど文字列が必要な場所で使う。区切り文字の連結ではなく JSON 配列をハッシュする
func (k Key) Digest() string {
	// []string の Marshal は失敗しない
	b, _ := json.Marshal([]string{k.MovieName, k.CinemaName, k.Date, k.StartTime, k.EndTime})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// TimeRange は "HH:mm - HH:mm" 形式で時間帯を返す
func (k Key) TimeRange() string {
	if k.EndTime == "" {
		return k.StartTime
	}
	return k.StartTime + " - " + k.EndTime
}

// String はログ出力用
func (k Key) String() string {
	return k.MovieName + " @ " + k.CinemaName + " " + k.Date + " " + k.TimeRange()
}

// ParseTimeRange は "21:30 - 23:00" のような時間帯を開始・終了時刻に分解する
// 区切りがない場合は開始時刻のみとみなす
func ParseTimeRange(timeRange string) (startTime, endTime string) {
	start, end, found := strings.Cut(timeRange, "-")
	if !found {
		return strings.TrimSpace(timeRange), ""
	}
	return strings.TrimSpace(start), strings.TrimSpace(end)
}
