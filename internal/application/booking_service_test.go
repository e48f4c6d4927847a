package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/user"
	"github.com/sanosuguru/go-cinema-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/metrics"
)

// === Mock implementations ===

// MockHistoryStore implements booking.HistoryStore
type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) Append(ctx context.Context, username string, ticket *booking.Ticket) error {
	args := m.Called(ctx, username, ticket)
	return args.Error(0)
}

func (m *MockHistoryStore) List(ctx context.Context, username string) ([]*booking.Ticket, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Ticket), args.Error(1)
}

// MockPublisher implements BookingPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishBooked(ctx context.Context, username string, ticket *booking.Ticket) error {
	args := m.Called(ctx, username, ticket)
	return args.Error(0)
}

// MockInventory implements inventory.Inventory
type MockInventory struct {
	mock.Mock
}

func (m *MockInventory) Reserve(ctx context.Context, key show.Key, seatIDs []string) error {
	args := m.Called(ctx, key, seatIDs)
	return args.Error(0)
}

func (m *MockInventory) Layout(ctx context.Context, key show.Key) ([]seat.Seat, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]seat.Seat), args.Error(1)
}

func (m *MockInventory) Booked(ctx context.Context, key show.Key) ([]string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// === Helpers ===

var k1Input = ExecuteInput{
	MovieName:  "Stargate",
	CinemaName: "Cinema 2",
	Date:       "2025-11-28",
	TimeRange:  "21:30 - 23:00",
}

var k1Query = ShowQuery{
	MovieName:  "Stargate",
	CinemaName: "Cinema 2",
	Date:       "2025-11-28",
	StartTime:  "21:30",
	EndTime:    "23:00",
}

func withSeats(in ExecuteInput, seats ...string) ExecuteInput {
	in.SeatIDs = seats
	return in
}

func newTestService(t *testing.T, opts ...Option) (*BookingService, *memory.ShowInventory, *metrics.Metrics) {
	t.Helper()
	inv := memory.NewShowInventory(seat.DefaultLayout())
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	opts = append([]Option{WithMetrics(m), WithLogger(zap.NewNop())}, opts...)
	return NewBookingService(inv, opts...), inv, m
}

func aliceCtx() context.Context {
	return user.WithUsername(context.Background(), "alice")
}

// === Tests ===

func TestBookingService_Scenarios(t *testing.T) {
	history := new(MockHistoryStore)
	history.On("Append", mock.Anything, "alice", mock.Anything).Return(nil)
	svc, inv, m := newTestService(t, WithHistory(history))
	ctx := aliceCtx()

	t.Run("A: 2席を予約すると40ドル", func(t *testing.T) {
		res, err := svc.Execute(ctx, withSeats(k1Input, "A1", "A2"))
		require.NoError(t, err)
		require.NotNil(t, res.Ticket)

		assert.Equal(t, 40, res.Ticket.TotalCost)
		assert.Equal(t, []string{"A1", "A2"}, res.Ticket.Seats)
		assert.Equal(t, "21:30", res.Ticket.StartTime)
		assert.Equal(t, "23:00", res.Ticket.EndTime)
		assert.Equal(t, "alice", res.Username)
		assert.Equal(t, PersistencePersisted, res.Persistence)
		assert.Empty(t, res.Warning)
		assert.Contains(t, res.Ticket.Summary(), "Seats: A1, A2")
		assert.Contains(t, res.Ticket.Summary(), "Total cost: $40")
	})

	t.Run("B: 同じ座席の再予約は失敗し予約済みは変わらない", func(t *testing.T) {
		res, err := svc.Execute(ctx, withSeats(k1Input, "A1"))
		require.Error(t, err)
		assert.Nil(t, res)
		assert.Equal(t, "Seat A1 is already booked.", err.Error())
		assert.ErrorIs(t, err, seat.ErrSeatAlreadyBooked)

		booked, err := svc.GetBookedSeats(context.Background(), k1Query)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2"}, booked)
	})

	t.Run("C: 別の日の上映には影響しない", func(t *testing.T) {
		k2 := k1Input
		k2.Date = "2025-11-29"
		_, err := svc.Execute(ctx, withSeats(k2, "A1"))
		require.NoError(t, err)

		booked, err := svc.GetBookedSeats(context.Background(), k1Query)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2"}, booked)
	})

	t.Run("D: 映画名がないと詳細不足エラー", func(t *testing.T) {
		in := withSeats(k1Input, "J1")
		in.MovieName = ""
		_, err := svc.Execute(ctx, in)
		require.Error(t, err)
		assert.Equal(t, "Some booking details are missing.", err.Error())
		assert.ErrorIs(t, err, booking.ErrMissingDetails)

		// どの上映も変更されない
		booked, err := inv.Booked(context.Background(), show.Key{CinemaName: "Cinema 2", Date: "2025-11-28", StartTime: "21:30", EndTime: "23:00"})
		require.NoError(t, err)
		assert.Empty(t, booked)
	})

	t.Run("E: 座席が空だとエラー", func(t *testing.T) {
		_, err := svc.Execute(ctx, withSeats(k1Input))
		require.Error(t, err)
		assert.Equal(t, "No seats were selected.", err.Error())
	})

	t.Run("メトリクスに結果が記録される", func(t *testing.T) {
		assert.Equal(t, float64(2), testutil.ToFloat64(m.BookingsTotal.WithLabelValues(metrics.BookingSuccess)))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.BookingsTotal.WithLabelValues(metrics.BookingConflict)))
		assert.Equal(t, float64(2), testutil.ToFloat64(m.BookingsTotal.WithLabelValues(metrics.BookingInvalid)))
		assert.Equal(t, float64(2), testutil.ToFloat64(m.HistoryWritesTotal.WithLabelValues(metrics.HistoryPersisted)))
	})

	history.AssertNumberOfCalls(t, "Append", 2)
}

func TestBookingService_Execute_InputHandling(t *testing.T) {
	ctx := context.Background()

	t.Run("座席IDの重複と空白は取り除かれる", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		res, err := svc.Execute(ctx, withSeats(k1Input, " B1 ", "B2", "B1", ""))
		require.NoError(t, err)
		assert.Equal(t, []string{"B1", "B2"}, res.Ticket.Seats)
		assert.Equal(t, 40, res.Ticket.TotalCost)
	})

	t.Run("終了時刻がなくても既定では予約できる", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		in := withSeats(k1Input, "A1")
		in.TimeRange = "21:30"
		res, err := svc.Execute(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "", res.Ticket.EndTime)
	})

	t.Run("終了時刻必須の設定では詳細不足エラー", func(t *testing.T) {
		svc, _, _ := newTestService(t, WithValidator(booking.NewValidator(booking.WithRequireEndTime())))
		in := withSeats(k1Input, "A1")
		in.TimeRange = "21:30"
		_, err := svc.Execute(ctx, in)
		assert.ErrorIs(t, err, booking.ErrMissingDetails)
	})

	t.Run("厳格モードでは配置にない座席を拒否する", func(t *testing.T) {
		svc, inv, _ := newTestService(t, WithValidator(booking.NewValidator(booking.WithSeatLayout(seat.DefaultLayout()))))
		_, err := svc.Execute(ctx, withSeats(k1Input, "A1", "Z99"))
		require.Error(t, err)
		assert.Equal(t, "Seat Z99 does not exist.", err.Error())
		assert.True(t, booking.IsValidationError(err))

		booked, err := inv.Booked(ctx, show.Key{MovieName: "Stargate", CinemaName: "Cinema 2", Date: "2025-11-28", StartTime: "21:30", EndTime: "23:00"})
		require.NoError(t, err)
		assert.Empty(t, booked)
	})

	t.Run("日付の形式が不正ならエラー", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		in := withSeats(k1Input, "A1")
		in.Date = "28/11/2025"
		_, err := svc.Execute(ctx, in)
		assert.ErrorIs(t, err, show.ErrInvalidDate)
	})

	t.Run("料金ポリシーを変更できる", func(t *testing.T) {
		svc, _, _ := newTestService(t, WithPricePolicy(booking.PricePolicy{PerSeat: 15}))
		res, err := svc.Execute(ctx, withSeats(k1Input, "A1", "A2", "A3"))
		require.NoError(t, err)
		assert.Equal(t, 45, res.Ticket.TotalCost)
	})
}

func TestBookingService_Execute_InventoryError(t *testing.T) {
	inv := new(MockInventory)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	svc := NewBookingService(inv, WithMetrics(m), WithLogger(zap.NewNop()))

	inv.On("Reserve", mock.Anything, mock.Anything, []string{"A1"}).Return(inventory.ErrShowBusy)

	res, err := svc.Execute(context.Background(), withSeats(k1Input, "A1"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, inventory.ErrShowBusy)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BookingsTotal.WithLabelValues(metrics.BookingError)))
}

func TestBookingService_Execute_Persistence(t *testing.T) {
	t.Run("ユーザーがいなければ保存をスキップする", func(t *testing.T) {
		history := new(MockHistoryStore)
		svc, _, _ := newTestService(t, WithHistory(history))

		res, err := svc.Execute(context.Background(), withSeats(k1Input, "A1"))
		require.NoError(t, err)
		assert.Equal(t, PersistenceSkipped, res.Persistence)
		assert.Empty(t, res.Username)
		history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("保存先がなければスキップする", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		res, err := svc.Execute(aliceCtx(), withSeats(k1Input, "A1"))
		require.NoError(t, err)
		assert.Equal(t, PersistenceSkipped, res.Persistence)
	})

	t.Run("保存に失敗しても予約は確定し警告を返す", func(t *testing.T) {
		history := new(MockHistoryStore)
		history.On("Append", mock.Anything, "alice", mock.Anything).Return(errors.New("disk full"))
		svc, _, m := newTestService(t, WithHistory(history))

		res, err := svc.Execute(aliceCtx(), withSeats(k1Input, "A1", "A2"))
		require.NoError(t, err)
		require.NotNil(t, res.Ticket)
		assert.Equal(t, PersistenceFailed, res.Persistence)
		assert.Equal(t, HistoryWarning, res.Warning)
		assert.Equal(t, 1, svc.PendingHistory())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.PendingHistoryEntries))

		// 予約は取り消されない
		booked, err := svc.GetBookedSeats(context.Background(), k1Query)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2"}, booked)
	})

	t.Run("保存先には複製が渡される", func(t *testing.T) {
		history := new(MockHistoryStore)
		var stored *booking.Ticket
		history.On("Append", mock.Anything, "alice", mock.Anything).
			Run(func(args mock.Arguments) { stored = args.Get(2).(*booking.Ticket) }).
			Return(nil)
		svc, _, _ := newTestService(t, WithHistory(history))

		res, err := svc.Execute(aliceCtx(), withSeats(k1Input, "A1"))
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, res.Ticket.ID, stored.ID)
		stored.Seats[0] = "changed"
		assert.Equal(t, "A1", res.Ticket.Seats[0])
	})
}

func TestBookingService_Publish(t *testing.T) {
	t.Run("予約確定イベントを送信する", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("PublishBooked", mock.Anything, "alice", mock.MatchedBy(func(tk *booking.Ticket) bool {
			return tk.TotalCost == 20 && tk.Seats[0] == "A1"
		})).Return(nil)
		svc, _, _ := newTestService(t, WithPublisher(pub))

		_, err := svc.Execute(aliceCtx(), withSeats(k1Input, "A1"))
		require.NoError(t, err)
		pub.AssertExpectations(t)
	})

	t.Run("送信に失敗しても予約は成功する", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("PublishBooked", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
		svc, _, _ := newTestService(t, WithPublisher(pub))

		res, err := svc.Execute(context.Background(), withSeats(k1Input, "A1"))
		require.NoError(t, err)
		assert.NotNil(t, res.Ticket)
	})
}

func TestBookingService_RetryPendingHistory(t *testing.T) {
	history := new(MockHistoryStore)
	fail := history.On("Append", mock.Anything, "alice", mock.Anything).Return(errors.New("timeout"))
	svc, _, m := newTestService(t, WithHistory(history))

	_, err := svc.Execute(aliceCtx(), withSeats(k1Input, "A1"))
	require.NoError(t, err)
	_, err = svc.Execute(aliceCtx(), withSeats(k1Input, "A2"))
	require.NoError(t, err)
	require.Equal(t, 2, svc.PendingHistory())

	t.Run("失敗したものはキューに残る", func(t *testing.T) {
		saved, err := svc.RetryPendingHistory(context.Background())
		assert.Error(t, err)
		assert.Equal(t, 0, saved)
		assert.Equal(t, 2, svc.PendingHistory())
	})

	t.Run("保存できればキューから消える", func(t *testing.T) {
		fail.Unset()
		history.On("Append", mock.Anything, "alice", mock.Anything).Return(nil)

		saved, err := svc.RetryPendingHistory(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, saved)
		assert.Equal(t, 0, svc.PendingHistory())
		assert.Equal(t, float64(2), testutil.ToFloat64(m.HistoryWritesTotal.WithLabelValues(metrics.HistoryRetried)))
		assert.Equal(t, float64(0), testutil.ToFloat64(m.PendingHistoryEntries))
	})

	t.Run("キューが空なら何もしない", func(t *testing.T) {
		saved, err := svc.RetryPendingHistory(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, saved)
	})
}

func TestBookingService_LoadSeatLayout(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Execute(ctx, withSeats(k1Input, "A1"))
	require.NoError(t, err)

	seats, err := svc.LoadSeatLayout(ctx, k1Query)
	require.NoError(t, err)
	require.Len(t, seats, 200)
	assert.True(t, seats[0].Booked)
	assert.False(t, seats[1].Booked)

	_, err = svc.LoadSeatLayout(ctx, ShowQuery{MovieName: "Stargate"})
	assert.ErrorIs(t, err, show.ErrCinemaNameRequired)
}

func TestBookingService_ListBookings(t *testing.T) {
	t.Run("保存先がなければ空", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		tickets, err := svc.ListBookings(context.Background(), "alice")
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})

	t.Run("保存先の履歴を返す", func(t *testing.T) {
		history := new(MockHistoryStore)
		want := []*booking.Ticket{{ID: "t1"}}
		history.On("List", mock.Anything, "alice").Return(want, nil)
		svc, _, _ := newTestService(t, WithHistory(history))

		tickets, err := svc.ListBookings(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, want, tickets)
	})

	t.Run("取得エラーはラップして返す", func(t *testing.T) {
		history := new(MockHistoryStore)
		boom := errors.New("boom")
		history.On("List", mock.Anything, "alice").Return(nil, boom)
		svc, _, _ := newTestService(t, WithHistory(history))

		_, err := svc.ListBookings(context.Background(), "alice")
		assert.ErrorIs(t, err, boom)
	})
}

func TestBookingService_ConcurrentSameSeat(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		in := withSeats(k1Input, "A1")
		in.Date = fmt.Sprintf("2026-01-%02d", round+1)

		var wins, conflicts int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := svc.Execute(ctx, in)
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case errors.Is(err, seat.ErrSeatAlreadyBooked):
					atomic.AddInt32(&conflicts, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins, "round %d", round)
		assert.Equal(t, int32(1), conflicts, "round %d", round)
	}
}
