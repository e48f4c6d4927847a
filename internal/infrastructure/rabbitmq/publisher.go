package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
)

// DefaultQueue は予約確定イベントのキュー名
const DefaultQueue = "booking.confirmed"

const (
	defaultDialTimeout   = 5 * time.Second
	defaultRedialBackoff = 5 * time.Second
)

var (
	// ErrBrokerUnavailable は接続中または再接続待ちのため送信できないことを表す
	ErrBrokerUnavailable = errors.New("message broker unavailable")
	// ErrPublisherClosed は Close 後の送信を表す
	ErrPublisherClosed = errors.New("publisher closed")
)

// BookingConfirmedEvent は予約確定時に送るメッセージ
type BookingConfirmedEvent struct {
	TicketID   string    `json:"ticket_id"`
	Username   string    `json:"username,omitempty"`
	MovieName  string    `json:"movie_name"`
	CinemaName string    `json:"cinema_name"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time,omitempty"`
	Seats      []string  `json:"seats"`
	TotalCost  int       `json:"total_cost"`
	BookedAt   time.Time `json:"booked_at"`
}

// Publisher は予約確定イベントを RabbitMQ に送る
// 接続は使い回し、切れていたら次の送信時に張り直す
// 接続はロックの外で張るので、ブローカーが応答しなくても他の送信を止めない
type Publisher struct {
	url           string
	queue         string
	dialTimeout   time.Duration
	redialBackoff time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time
	closed  bool
}

// NewPublisher は新しい Publisher を作成する（接続は最初の送信時）
func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{
		url:           url,
		queue:         queue,
		dialTimeout:   defaultDialTimeout,
		redialBackoff: defaultRedialBackoff,
	}
}

// PublishBooked は予約確定イベントを永続メッセージとして送る
// 接続中や再接続の待機中は ErrBrokerUnavailable をすぐ返す
func (p *Publisher) PublishBooked(ctx context.Context, username string, ticket *booking.Ticket) error {
	msg, err := NewBookingConfirmedMessage(username, ticket)
	if err != nil {
		return err
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.mu.Lock()
		if p.ch == ch {
			p.reset()
		}
		p.mu.Unlock()
		return fmt.Errorf("予約イベントの送信に失敗: %w", err)
	}
	return nil
}

// Close は接続を閉じる。以降の送信は ErrPublisherClosed になる
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, ErrPublisherClosed
	case p.ch != nil && !p.ch.IsClosed():
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	case p.dialing || time.Now().Before(p.retryAt):
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}

	timeout, err := p.boundedTimeout(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.reset()
	p.dialing = true
	p.mu.Unlock()

	conn, ch, err := p.dial(timeout)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = time.Now().Add(p.redialBackoff)
		return nil, err
	}
	if p.closed {
		ch.Close()
		conn.Close()
		return nil, ErrPublisherClosed
	}
	p.conn, p.ch = conn, ch
	p.retryAt = time.Time{}
	return ch, nil
}

// boundedTimeout は dialTimeout と ctx の残り時間の短い方を返す
func (p *Publisher) boundedTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("RabbitMQ接続に失敗: %w", context.DeadlineExceeded)
	}
	return timeout, nil
}

func (p *Publisher) dial(timeout time.Duration) (*amqp.Connection, *amqp.Channel, error) {
	// DefaultDial は TCP 接続とハンドシェイクの両方に timeout を掛ける
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	// durable なキューを宣言（既にあれば何もしない）
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("キュー宣言に失敗: %w", err)
	}
	return conn, ch, nil
}

// reset は mu を保持した状態で呼ぶ
func (p *Publisher) reset() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// NewBookingConfirmedMessage はチケットから送信メッセージを組み立てる
func NewBookingConfirmedMessage(username string, ticket *booking.Ticket) (amqp.Publishing, error) {
	event := BookingConfirmedEvent{
		TicketID:   ticket.ID,
		Username:   username,
		MovieName:  ticket.MovieName,
		CinemaName: ticket.CinemaName,
		Date:       ticket.Date,
		StartTime:  ticket.StartTime,
		EndTime:    ticket.EndTime,
		Seats:      ticket.Seats,
		TotalCost:  ticket.TotalCost,
		BookedAt:   ticket.BookedAt.UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("予約イベントのエンコードに失敗: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ticket.ID,
		Timestamp:    time.Now().UTC(),
		Type:         DefaultQueue,
		Body:         body,
	}, nil
}
