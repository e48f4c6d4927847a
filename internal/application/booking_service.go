package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/show"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/user"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/metrics"
)

// Persistence は予約履歴の保存結果
type Persistence string

const (
	PersistencePersisted Persistence = "persisted"
	PersistenceSkipped   Persistence = "skipped"
	PersistenceFailed    Persistence = "failed"
)

// HistoryWarning は予約は確定したが履歴の保存に失敗した場合に利用者へ返す警告
const HistoryWarning = "Your booking is confirmed, but it could not be saved to your booking history yet. It will be retried automatically."

const (
	defaultHistoryTimeout = 3 * time.Second
	maxPendingHistory     = 1000
)

// BookingPublisher は予約確定イベントの送信先
type BookingPublisher interface {
	PublishBooked(ctx context.Context, username string, ticket *booking.Ticket) error
}

// ExecuteInput は予約処理の入力
type ExecuteInput struct {
	MovieName  string
	CinemaName string
	Date       string
	TimeRange  string
	SeatIDs    []string
}

// BookingResult は予約処理の結果
// Persistence が failed でも予約自体は確定している
type BookingResult struct {
	Ticket      *booking.Ticket
	Username    string
	Persistence Persistence
	Warning     string
}

// ShowQuery は上映を指定する検索条件
type ShowQuery struct {
	MovieName  string
	CinemaName string
	Date       string
	StartTime  string
	EndTime    string
}

// Key は検索条件を検証して上映キーに変換する
func (q ShowQuery) Key() (show.Key, error) {
	return show.NewKey(q.MovieName, q.CinemaName, q.Date, q.StartTime, q.EndTime)
}

type pendingHistory struct {
	username string
	ticket   *booking.Ticket
}

// BookingService は予約の検証・確保・料金計算・履歴保存をまとめて行う
type BookingService struct {
	inventory      inventory.Inventory
	history        booking.HistoryStore
	users          user.Provider
	publisher      BookingPublisher
	metrics        *metrics.Metrics
	validator      *booking.Validator
	pricing        booking.PricePolicy
	historyTimeout time.Duration
	log            *zap.Logger

	pendingMu sync.Mutex
	pending   []pendingHistory
}

// Option は BookingService の設定を変更する
type Option func(*BookingService)

// WithHistory は予約履歴の保存先を設定する（未設定なら保存しない）
func WithHistory(h booking.HistoryStore) Option {
	return func(s *BookingService) { s.history = h }
}

// WithUserProvider は現在のユーザーの解決方法を設定する
func WithUserProvider(p user.Provider) Option {
	return func(s *BookingService) { s.users = p }
}

// WithPublisher は予約確定イベントの送信先を設定する
func WithPublisher(p BookingPublisher) Option {
	return func(s *BookingService) { s.publisher = p }
}

// WithMetrics はメトリクスを設定する
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BookingService) { s.metrics = m }
}

// WithValidator はリクエストの検証ルールを設定する
func WithValidator(v *booking.Validator) Option {
	return func(s *BookingService) { s.validator = v }
}

// WithPricePolicy は料金ポリシーを設定する
func WithPricePolicy(p booking.PricePolicy) Option {
	return func(s *BookingService) { s.pricing = p }
}

// WithHistoryTimeout は履歴保存1回あたりのタイムアウトを設定する
func WithHistoryTimeout(d time.Duration) Option {
	return func(s *BookingService) {
		if d > 0 {
			s.historyTimeout = d
		}
	}
}

// WithLogger はロガーを設定する
func WithLogger(l *zap.Logger) Option {
	return func(s *BookingService) { s.log = l }
}

func NewBookingService(inv inventory.Inventory, opts ...Option) *BookingService {
	s := &BookingService{
		inventory:      inv,
		users:          user.ContextProvider{},
		validator:      booking.NewValidator(),
		pricing:        booking.DefaultPricePolicy(),
		historyTimeout: defaultHistoryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("booking")
	}
	return s
}

// Execute は予約を1件処理する
//
// 検証・空き確認・確保のいずれかで失敗した場合は在庫を変更せずにエラーを返す。
// 確保後の履歴保存やイベント送信の失敗はエラーにせず、BookingResult で知らせる
func (s *BookingService) Execute(ctx context.Context, in ExecuteInput) (*BookingResult, error) {
	req := booking.NewRequest(in.MovieName, in.CinemaName, in.Date, in.TimeRange, in.SeatIDs)
	s.log.Debug("予約リクエストを受信", zap.String("state", "received"), zap.Strings("seats", req.SeatIDs))

	if err := s.validator.Validate(req); err != nil {
		s.metrics.ObserveBooking(metrics.BookingInvalid)
		return nil, err
	}
	key, err := req.ShowKey()
	if err != nil {
		s.metrics.ObserveBooking(metrics.BookingInvalid)
		return nil, err
	}
	s.log.Debug("予約リクエストを検証", zap.String("state", "validated"), zap.String("show", key.String()))

	if err := s.inventory.Reserve(ctx, key, req.SeatIDs); err != nil {
		if errors.Is(err, seat.ErrSeatAlreadyBooked) {
			s.metrics.ObserveBooking(metrics.BookingConflict)
			return nil, err
		}
		s.metrics.ObserveBooking(metrics.BookingError)
		return nil, fmt.Errorf("座席の確保に失敗: %w", err)
	}

	ticket := booking.NewTicket(key, req.SeatIDs, s.pricing.Price(len(req.SeatIDs)))
	s.metrics.ObserveBooking(metrics.BookingSuccess)
	s.log.Info("予約を確定",
		zap.String("state", "committed"),
		zap.String("ticket_id", ticket.ID),
		zap.String("show", key.String()),
		zap.Strings("seats", ticket.Seats),
		zap.Int("total_cost", ticket.TotalCost),
	)

	result := &BookingResult{Ticket: ticket}
	username, ok := s.users.CurrentUsername(ctx)
	switch {
	case !ok || s.history == nil:
		result.Persistence = PersistenceSkipped
		s.metrics.ObserveHistoryWrite(metrics.HistorySkipped)
		s.log.Debug("履歴の保存をスキップ", zap.String("state", "persist_skipped"), zap.String("ticket_id", ticket.ID))
	default:
		result.Username = username
		if err := s.appendHistory(ctx, username, ticket); err != nil {
			result.Persistence = PersistenceFailed
			result.Warning = HistoryWarning
			s.metrics.ObserveHistoryWrite(metrics.HistoryFailed)
			s.enqueuePending(username, ticket)
			s.log.Warn("予約履歴の保存に失敗（再送キューに追加）",
				zap.String("state", "persist_failed"),
				zap.String("ticket_id", ticket.ID),
				zap.String("username", username),
				zap.Error(err),
			)
		} else {
			result.Persistence = PersistencePersisted
			s.metrics.ObserveHistoryWrite(metrics.HistoryPersisted)
			s.log.Debug("予約履歴を保存", zap.String("state", "persisted"), zap.String("ticket_id", ticket.ID))
		}
	}

	s.publish(ctx, username, ticket)
	s.log.Debug("予約結果を返却", zap.String("state", "reported"), zap.String("ticket_id", ticket.ID))
	return result, nil
}

// LoadSeatLayout は上映の座席配置を予約状態つきで返す
func (s *BookingService) LoadSeatLayout(ctx context.Context, q ShowQuery) ([]seat.Seat, error) {
	key, err := q.Key()
	if err != nil {
		return nil, err
	}
	return s.inventory.Layout(ctx, key)
}

// GetBookedSeats は上映の予約済み座席IDを返す
func (s *BookingService) GetBookedSeats(ctx context.Context, q ShowQuery) ([]string, error) {
	key, err := q.Key()
	if err != nil {
		return nil, err
	}
	return s.inventory.Booked(ctx, key)
}

// ListBookings はユーザーの予約履歴を返す
func (s *BookingService) ListBookings(ctx context.Context, username string) ([]*booking.Ticket, error) {
	if s.history == nil {
		return []*booking.Ticket{}, nil
	}
	tickets, err := s.history.List(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("予約履歴の取得に失敗: %w", err)
	}
	return tickets, nil
}

// PendingHistory は再送待ちの履歴件数を返す
func (s *BookingService) PendingHistory() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// RetryPendingHistory は保存に失敗した履歴を再送する
// 保存できた件数を返す。失敗したものはキューに戻す
func (s *BookingService) RetryPendingHistory(ctx context.Context) (int, error) {
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	if len(batch) == 0 || s.history == nil {
		return 0, nil
	}

	var (
		saved  int
		failed []pendingHistory
		errs   []error
	)
	for i, p := range batch {
		if ctx.Err() != nil {
			failed = append(failed, batch[i:]...)
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.appendHistory(ctx, p.username, p.ticket); err != nil {
			failed = append(failed, p)
			errs = append(errs, fmt.Errorf("チケット %s: %w", p.ticket.ID, err))
			continue
		}
		saved++
		s.metrics.ObserveHistoryWrite(metrics.HistoryRetried)
	}

	if len(failed) > 0 {
		s.pendingMu.Lock()
		s.pending = append(failed, s.pending...)
		s.trimPendingLocked()
		s.metrics.SetPendingHistory(len(s.pending))
		s.pendingMu.Unlock()
	} else {
		s.metrics.SetPendingHistory(s.PendingHistory())
	}

	return saved, errors.Join(errs...)
}

func (s *BookingService) appendHistory(ctx context.Context, username string, ticket *booking.Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, s.historyTimeout)
	defer cancel()
	return s.history.Append(ctx, username, ticket.Clone())
}

func (s *BookingService) enqueuePending(username string, ticket *booking.Ticket) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending = append(s.pending, pendingHistory{username: username, ticket: ticket.Clone()})
	s.trimPendingLocked()
	s.metrics.SetPendingHistory(len(s.pending))
}

// 上限を超えたら古いものから捨てる
func (s *BookingService) trimPendingLocked() {
	if over := len(s.pending) - maxPendingHistory; over > 0 {
		for _, p := range s.pending[:over] {
			s.log.Error("再送待ちの予約履歴を破棄", zap.String("ticket_id", p.ticket.ID), zap.String("username", p.username))
		}
		s.pending = append([]pendingHistory(nil), s.pending[over:]...)
	}
}

func (s *BookingService) publish(ctx context.Context, username string, ticket *booking.Ticket) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.historyTimeout)
	defer cancel()
	if err := s.publisher.PublishBooked(ctx, username, ticket.Clone()); err != nil {
		s.log.Warn("予約イベントの送信に失敗", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}
