package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/certtracker/certtracker-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID   contextKey = "auth.user_id"
	ctxEmail    contextKey = "auth.email"
	ctxPlan     contextKey = "auth.plan"
	ctxAccessID contextKey = "auth.access_id"
)

func WithIdentity(ctx context.Context, userID uuid.UUID, email string, plan enums.Plan, accessID string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxEmail, email)
	ctx = context.WithValue(ctx, ctxPlan, plan)
	return context.WithValue(ctx, ctxAccessID, accessID)
}

// UserIDFromContext returns the authenticated user's ID, or uuid.Nil when the
// request was not authenticated.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func EmailFromContext(ctx context.Context) string {
	if email, ok := ctx.Value(ctxEmail).(string); ok {
		return email
	}
	return ""
}

func PlanFromContext(ctx context.Context) enums.Plan {
	if plan, ok := ctx.Value(ctxPlan).(enums.Plan); ok {
		return plan
	}
	return enums.PlanFree
}

// AccessIDFromContext returns the jti of the presented access token.
func AccessIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxAccessID).(string); ok {
		return id
	}
	return ""
}
