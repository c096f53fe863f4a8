package upkeep

import (
	"context"

	"github.com/google/uuid"
)

var auditCtxKey = &contextKey{"audit"}

type contextKey struct {
	name string
}

// AuditContext is the ambient identity attributed to every mutation performed
// within one request. It is created per request and carried as an explicit
// context value, never as process-global state, so concurrent requests cannot
// bleed into each other's audit trail.
//
// The actor may be set (or corrected) after writes are recorded: drafts
// resolve the actor when they are flushed, which lets registration attribute
// the new user's own creation to the id assigned during the save.
type AuditContext struct {
	userID    *uuid.UUID
	username  string
	ip        string
	userAgent string
	changes   *changeSet
}

// NewAuditContext creates the per-request audit context
func NewAuditContext(ip, userAgent string) *AuditContext {
	return &AuditContext{
		ip:        ip,
		userAgent: userAgent,
		changes:   &changeSet{},
	}
}

// SetActor records who is performing the request's mutations. userID may be
// nil for anonymous actions such as registration.
func (a *AuditContext) SetActor(userID *uuid.UUID, username string) {
	a.userID = userID
	a.username = username
}

// Actor returns the current acting user id and username
func (a *AuditContext) Actor() (*uuid.UUID, string) {
	return a.userID, a.username
}

// IP returns the client address attributed to the request
func (a *AuditContext) IP() string {
	return a.ip
}

// UserAgent returns the client's user agent string
func (a *AuditContext) UserAgent() string {
	return a.userAgent
}

// WithAuditContext attaches the audit context to ctx
func WithAuditContext(ctx context.Context, ac *AuditContext) context.Context {
	return context.WithValue(ctx, auditCtxKey, ac)
}

// AuditContextFrom extracts the audit context from ctx
func AuditContextFrom(ctx context.Context) (*AuditContext, bool) {
	ac, ok := ctx.Value(auditCtxKey).(*AuditContext)
	return ac, ok
}
