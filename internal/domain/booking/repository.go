package booking

import "context"

// HistoryStore はユーザーごとの予約履歴を永続化するインターフェース
type HistoryStore interface {
	// Append はユーザーの履歴にチケットを追加する
	Append(ctx context.Context, username string, ticket *Ticket) error

	// List はユーザーの履歴を追加順に取得する
	List(ctx context.Context, username string) ([]*Ticket, error)
}
