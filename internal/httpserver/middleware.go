package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"maktaba-storefront/internal/identity"
	"maktaba-storefront/internal/logging"
	cartsvc "maktaba-storefront/internal/service/cart"
	"maktaba-storefront/internal/service/session"
)

const (
	sessionHeader = "X-Session-Token"

	engineKey = "cart.engine"
	mergeKey  = "cart.merge"
)

// sessionMiddleware resolves the session token to the session's cart engine.
func sessionMiddleware(sessions SessionService, carts CartSessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(sessionHeader))
		if token == "" {
			abortError(c, http.StatusUnauthorized, "missing_session", "missing "+sessionHeader+" header")
			return
		}
		sessionID, err := sessions.LookupByToken(c.Request.Context(), token)
		if errors.Is(err, session.ErrInvalidToken) {
			abortError(c, http.StatusUnauthorized, "invalid_session", "unknown or expired session")
			return
		}
		if err != nil {
			abortDomainError(c, err)
			return
		}
		e, release := carts.Acquire(sessionID)
		defer release()
		c.Set(engineKey, e)
		c.Next()
	}
}

// ownerMiddleware aligns the engine owner with the bearer token: a newly seen
// user triggers the sign-in merge, a missing token on a signed-in engine signs out.
func ownerMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		e := engineFrom(c)
		ctx := c.Request.Context()
		logger := logging.FromCtx(ctx, logging.Discard())

		userID := ""
		raw, err := identity.FromHeader(c.GetHeader("Authorization"))
		if err == nil {
			userID, err = verifier.Verify(raw)
		}
		if err != nil && !errors.Is(err, identity.ErrMissingToken) {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			abortError(c, http.StatusUnauthorized, "invalid_token", "invalid bearer token")
			return
		}

		owner := e.Owner()
		switch {
		case userID == "" && owner.IsAuthenticated():
			e.SignOut(ctx)
		case userID != "" && (!owner.IsAuthenticated() || owner.UserID != userID):
			if owner.IsAuthenticated() {
				logger.Info("session switched user", "from", owner.UserID, "to", userID)
				e.SignOut(ctx)
			}
			_, res, err := e.MergeOnSignIn(ctx, userID)
			if err != nil {
				abortDomainError(c, err)
				return
			}
			c.Set(mergeKey, res)
		}
		c.Next()
	}
}

func engineFrom(c *gin.Context) *cartsvc.Engine {
	return c.MustGet(engineKey).(*cartsvc.Engine)
}

func mergeFrom(c *gin.Context) *cartsvc.MergeResult {
	v, ok := c.Get(mergeKey)
	if !ok {
		return nil
	}
	res := v.(cartsvc.MergeResult)
	return &res
}
