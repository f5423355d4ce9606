package ctxkeys

import (
	"context"

	"github.com/templui/magiclink/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	AccountKey   contextKey = "account"
	RequestIDKey contextKey = "request_id"
)

func Account(ctx context.Context) *model.Account {
	account, _ := ctx.Value(AccountKey).(*model.Account)
	return account
}

func WithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
