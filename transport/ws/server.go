// Package ws exposes the sync engine over a websocket endpoint plus the
// health and debug surfaces.
package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"duplex/contract"
	"duplex/domain"
	"duplex/observability"
	"duplex/services"
	"duplex/sink"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Server struct {
	log        *slog.Logger
	svc        services.ISyncService
	auth       contract.Authenticator
	stats      *observability.Stats
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewServer(log *slog.Logger, svc services.ISyncService, auth contract.Authenticator,
	stats *observability.Stats, allowedOrigins []string, bufferSize int) *Server {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	return &Server{
		log:   log,
		svc:   svc,
		auth:  auth,
		stats: stats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
		bufferSize: bufferSize,
	}
}

// Router builds the HTTP surface: the websocket endpoint, a liveness probe
// and the stats snapshot.
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/ws", s.handleWebsocket)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/debug/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.stats.GetLatest())
	})
	return router
}

// handleWebsocket authenticates the handshake, upgrades, and serves the
// connection until it dies. Authentication happens before the upgrade so a
// bad token costs one HTTP response, not a socket.
func (s *Server) handleWebsocket(c *gin.Context) {
	userID, err := s.auth.IdentityForConnection(credentialsFrom(c))
	if err != nil {
		s.log.Debug("Handshake rejected", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication failed"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "user_id", userID, "error", err)
		return
	}

	id := domain.ConnectionID(uuid.NewString())
	buffered := sink.NewBuffered(s.log, s.bufferSize)
	connection := NewConnection(id, userID, conn, buffered, s.svc, s.log)

	s.svc.Connect(c.Request.Context(), userID, id, buffered)
	// Serve blocks for the lifetime of the socket; returning from the
	// handler would cancel the request context under the pumps.
	connection.Serve(c.Request.Context())
}

// credentialsFrom reads the token from the Authorization header or, for
// browser clients that cannot set headers on websocket dials, the token
// query parameter.
func credentialsFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
