// Package upkeep implements the credential and session lifecycle core of the
// household maintenance tracker: password verification, short-lived signed
// access tokens, server-side rotating refresh tokens, and a change-audit
// pipeline that soft-deletes and records every entity mutation.
//
// Session lifecycle:
//   - Auther composes the pieces into register, login, refresh, and revoke
//     operations. Registration atomically provisions the user together with a
//     default organization, a first house, and an owner membership.
//   - RefreshTokenLedger persists refresh tokens, enforces the per-user
//     retention cap, and rotates tokens with an atomic conditional revoke so
//     concurrent rotation of the same token value fails safely.
//
// Change auditing:
//   - Every repository write is stamped through the Auditable and
//     SoftDeletable capability contracts, hard deletes are converted into
//     soft deletes, and an AuditLog row is written for each mutation after
//     the primary save commits. The audit trail attributes mutations with the
//     request's AuditContext (user, ip, user agent).
//
// The HTTP boundary in http_controller.go exposes the operations under
// /v1/auth and carries the refresh token in an HttpOnly cookie, never in a
// response body.
package upkeep
