package state

import (
	"context"
)

const (
	CurrentUserId = "CurrentUserId"
	CurrentUserIP = "CurrentIP"
	RequestID     = "RequestID"
)

// CurrentUser returns the owner id (the token subject) stored on the
// context, or "" when the request is anonymous.
func CurrentUser(ctx context.Context) string {
	value := ctx.Value(CurrentUserId)
	if value == nil {
		return ""
	}

	userID, ok := value.(string)
	if !ok {
		return ""
	}

	return userID
}

func SetCurrentUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CurrentUserId, userID)
}
