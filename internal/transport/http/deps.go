package http

import (
	"github.com/go-notification-service/internal/application/notification"
	"github.com/go-notification-service/internal/application/ownership"
	jwtinfra "github.com/go-notification-service/internal/infrastructure/jwt"
	appmiddleware "github.com/go-notification-service/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Notifications notification.Service
	Guard         *ownership.Guard
	// JWTProvider verifies caller tokens. When nil every protected route answers 401.
	JWTProvider *jwtinfra.Provider
	// Gatherer backs /metrics; nil falls back to the default registry.
	Gatherer prometheus.Gatherer
	// TrustedProxies may set X-Forwarded-For and X-Real-Ip. Empty trusts no one.
	TrustedProxies appmiddleware.ProxyList
	Logger         *zap.Logger
}
