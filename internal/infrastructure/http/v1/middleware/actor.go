package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "bookledger/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// ActorContext extracts the acting user from request headers and makes it
// available to the domain layer. Movements and transfer transitions stamp
// this identity into the ledger.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actorID == "" {
			c.Next()
			return
		}

		actor := &appctx.ActorContext{
			ActorID: actorID,
			Name:    strings.TrimSpace(c.GetHeader(HeaderActorName)),
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Set("actor_id", actorID)

		c.Next()
	}
}
