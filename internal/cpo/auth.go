package cpo

import (
	"context"

	"go.uber.org/zap"

	"chargebridge/internal/models"
	"chargebridge/internal/oioi"
)

// AuthDecision is the outcome of an authorization request.
type AuthDecision int

const (
	// Authorized means the partner confirmed the token.
	Authorized AuthDecision = iota
	// NotAuthorized covers unknown tokens, partner rejections, and
	// transport failures alike. The caller owns any retry policy.
	NotAuthorized
	// AuthAdminDown means authorization is administratively disabled.
	AuthAdminDown
)

// String returns the decision name used in logs.
func (d AuthDecision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case NotAuthorized:
		return "not-authorized"
	case AuthAdminDown:
		return "admin-down"
	default:
		return "unknown"
	}
}

// AuthorizeStart decides whether a charging session may start for the
// given token. A token that cannot be represented in the partner's
// identifier space is denied without a network call. A single
// verification attempt is made; no retries.
func (a *Adapter) AuthorizeStart(ctx context.Context, token models.AuthToken) AuthDecision {
	return a.authorize(ctx, token, "start")
}

// AuthorizeStop decides whether a charging session may be stopped for
// the given token. Same single-attempt semantics as AuthorizeStart.
func (a *Adapter) AuthorizeStop(ctx context.Context, token models.AuthToken) AuthDecision {
	return a.authorize(ctx, token, "stop")
}

func (a *Adapter) authorize(ctx context.Context, token models.AuthToken, action string) AuthDecision {
	if !a.auth.Load() {
		return AuthAdminDown
	}

	rfid := token.Normalized()
	if rfid == "" {
		decision := NotAuthorized
		a.obs.authorization(token, decision)
		return decision
	}

	decision := NotAuthorized
	resp, err := a.uploader.api.VerifyRFID(ctx, oioi.RFIDVerify{RFID: rfid})
	switch {
	case err != nil:
		a.logger.Info("rfid verification failed",
			zap.String("action", action), zap.Error(err))
	case resp.Success():
		decision = Authorized
	default:
		a.logger.Debug("rfid rejected by partner",
			zap.String("action", action),
			zap.Int("code", int(resp.Result.Code)))
	}

	a.obs.authorization(token, decision)
	return decision
}
