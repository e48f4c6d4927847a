package user

import (
	"context"
	"strings"
)

// Provider は現在のユーザー名を解決するインターフェース
// 認証は外部に任せ、予約処理はこのインターフェースだけを参照する
type Provider interface {
	CurrentUsername(ctx context.Context) (string, bool)
}

type contextKey struct{}

// WithUsername はユーザー名をコンテキストに設定する
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKey{}, strings.TrimSpace(username))
}

// FromContext はコンテキストからユーザー名を取り出す
func FromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(contextKey{}).(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// ContextProvider はコンテキストに設定されたユーザー名を返す Provider
type ContextProvider struct{}

// CurrentUsername は現在のユーザー名を返す
func (ContextProvider) CurrentUsername(ctx context.Context) (string, bool) {
	return FromContext(ctx)
}

var _ Provider = ContextProvider{}
