package seat

import (
	"strconv"
)

const (
	// DefaultRows は既定の列数（A〜J）
	DefaultRows = 10
	// DefaultColumns は既定の1列あたりの座席数（1〜20）
	DefaultColumns = 20

	maxRows = 26
)

// Seat は座席を表す
// ID は列の英字と1始まりの番号を連結したもの（例: A1, J20）
type Seat struct {
	ID     string
	Booked bool
}

// Layout は上映ごとの座席配置を表す
// 生成は純粋関数で、同じ Layout からは常に同じ座席列が得られる
type Layout struct {
	Rows    int
	Columns int
	index   map[string]int
}

// DefaultLayout は既定の 10 x 20 = 200 席の配置を返す
func DefaultLayout() Layout {
	l, _ := NewLayout(DefaultRows, DefaultColumns)
	return l
}

// NewLayout は座席配置を作成する
func NewLayout(rows, columns int) (Layout, error) {
	if rows <= 0 || rows > maxRows || columns <= 0 {
		return Layout{}, ErrInvalidLayout
	}
	l := Layout{Rows: rows, Columns: columns, index: make(map[string]int, rows*columns)}
	for i, id := range l.IDs() {
		l.index[id] = i
	}
	return l, nil
}

// Size は座席数を返す
func (l Layout) Size() int {
	return l.Rows * l.Columns
}

// IDs は行優先の順序で座席IDを返す（A1..A20, B1..）
func (l Layout) IDs() []string {
	ids := make([]string, 0, l.Size())
	for r := 0; r < l.Rows; r++ {
		row := string(rune('A' + r))
		for c := 1; c <= l.Columns; c++ {
			ids = append(ids, row+strconv.Itoa(c))
		}
	}
	return ids
}

// Generate は全席空きの座席列を生成する
func (l Layout) Generate() []Seat {
	ids := l.IDs()
	seats := make([]Seat, len(ids))
	for i, id := range ids {
		seats[i] = Seat{ID: id}
	}
	return seats
}

// Index は座席IDの配置上の位置を返す
func (l Layout) Index(id string) (int, bool) {
	i, ok := l.index[id]
	return i, ok
}

// Contains は座席IDがこの配置に含まれるかを返す
func (l Layout) Contains(id string) bool {
	_, ok := l.index[id]
	return ok
}
