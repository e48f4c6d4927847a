package seat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()

	assert.Equal(t, DefaultRows, l.Rows)
	assert.Equal(t, DefaultColumns, l.Columns)
	assert.Equal(t, 200, l.Size())
}

func TestLayout_Generate(t *testing.T) {
	l := DefaultLayout()

	t.Run("200席が生成される", func(t *testing.T) {
		seats := l.Generate()
		require.Len(t, seats, 200)
		assert.Equal(t, "A1", seats[0].ID)
		assert.Equal(t, "A20", seats[19].ID)
		assert.Equal(t, "B1", seats[20].ID)
		assert.Equal(t, "J20", seats[199].ID)
		for _, s := range seats {
			assert.False(t, s.Booked)
		}
	})

	t.Run("座席IDは列A-Jと番号1-20の直積", func(t *testing.T) {
		want := make(map[string]bool)
		for _, row := range "ABCDEFGHIJ" {
			for col := 1; col <= 20; col++ {
				want[fmt.Sprintf("%c%d", row, col)] = true
			}
		}

		got := make(map[string]bool)
		for _, s := range l.Generate() {
			assert.False(t, got[s.ID], "重複した座席ID: %s", s.ID)
			got[s.ID] = true
		}
		assert.Equal(t, want, got)
	})

	t.Run("何度生成しても同じ", func(t *testing.T) {
		assert.Equal(t, l.Generate(), l.Generate())
		assert.Equal(t, l.IDs(), DefaultLayout().IDs())
	})

	t.Run("生成結果は呼び出しごとに独立している", func(t *testing.T) {
		a := l.Generate()
		a[0].Booked = true
		b := l.Generate()
		assert.False(t, b[0].Booked)
	})
}

func TestLayout_IndexAndContains(t *testing.T) {
	l := DefaultLayout()

	tests := []struct {
		id       string
		index    int
		contains bool
	}{
		{"A1", 0, true},
		{"A20", 19, true},
		{"C5", 44, true},
		{"J20", 199, true},
		{"K1", 0, false},
		{"A21", 0, false},
		{"A0", 0, false},
		{"a1", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			i, ok := l.Index(tt.id)
			assert.Equal(t, tt.contains, ok)
			assert.Equal(t, tt.contains, l.Contains(tt.id))
			if tt.contains {
				assert.Equal(t, tt.index, i)
			}
		})
	}
}

func TestNewLayout(t *testing.T) {
	tests := []struct {
		name        string
		rows        int
		columns     int
		expectedErr error
	}{
		{"小さい配置", 2, 3, nil},
		{"最大列数", 26, 1, nil},
		{"列数が0", 0, 20, ErrInvalidLayout},
		{"列数が27", 27, 20, ErrInvalidLayout},
		{"座席数が負", 10, -1, ErrInvalidLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLayout(tt.rows, tt.columns)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, l.Generate(), tt.rows*tt.columns)
		})
	}

	t.Run("2x3の配置", func(t *testing.T) {
		l, err := NewLayout(2, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2", "A3", "B1", "B2", "B3"}, l.IDs())
	})
}

func TestConflictError(t *testing.T) {
	var err error = &ConflictError{SeatID: "A1"}

	assert.Equal(t, "Seat A1 is already booked.", err.Error())
	assert.ErrorIs(t, err, ErrSeatAlreadyBooked)

	wrapped := fmt.Errorf("reserve: %w", err)
	var conflict *ConflictError
	require.True(t, errors.As(wrapped, &conflict))
	assert.Equal(t, "A1", conflict.SeatID)
}
