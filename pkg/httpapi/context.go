package httpapi

import "context"

type contextKey string

const aidContextKey contextKey = "companion.aid"

func withAID(ctx context.Context, aid string) context.Context {
	return context.WithValue(ctx, aidContextKey, aid)
}

func aidFrom(ctx context.Context) string {
	aid, _ := ctx.Value(aidContextKey).(string)
	return aid
}
