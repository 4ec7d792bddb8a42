// Package wsgateway exposes the rehearsal channel: it authenticates
// WebSocket handshakes, parses inbound commands into the session
// manager, and feeds synthesized leaves back when a transport drops.
package wsgateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/domain/principal"
	"rehearsal-api/internal/domain/session"
	"rehearsal-api/internal/infrastructure/metrics"
	"rehearsal-api/internal/utils/idgen"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway upgrades authenticated requests into rehearsal connections.
type Gateway struct {
	resolver principal.Resolver
	manager  *session.Manager
	log      zerolog.Logger
}

// New creates a gateway over the given resolver and session manager.
func New(resolver principal.Resolver, manager *session.Manager, log zerolog.Logger) *Gateway {
	return &Gateway{
		resolver: resolver,
		manager:  manager,
		log:      log.With().Str("component", "ws-gateway").Logger(),
	}
}

// Handle authenticates and upgrades one connection. The credential is
// verified before the upgrade, so an invalid token is rejected before
// any event exchange.
func (g *Gateway) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}

	p, err := g.resolver.Resolve(c.Request.Context(), token)
	if err != nil {
		g.log.Debug().Err(err).Msg("handshake rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return
	}

	connID, err := idgen.GenerateSecureID("conn", 24)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Error().Err(err).Msg("ws upgrade")
		return
	}

	g.log.Info().
		Str("connection_id", connID).
		Str("user_id", p.UserID).
		Msg("new connection")

	conn := newConn(ws, connID, *p, g.manager, g.log)
	metrics.ActiveConnections.Inc()

	go conn.writePump()
	conn.readPump()
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
