package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "vmail/backend/internal/auth/jwt"
	"vmail/backend/internal/config"
	"vmail/backend/internal/health"
	"vmail/backend/internal/middleware"
	"vmail/backend/internal/monitoring"
	"vmail/backend/internal/service"
)

// RouterDependencies collects what the router wires together.
type RouterDependencies struct {
	Config     *config.Config
	Directory  *service.DirectoryService
	JWTManager *jwtpkg.Manager
	Health     *health.HealthChecker
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// NewRouter builds the gin engine.
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitor.PanicRecovery())
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	corsConfig := gincors.Config{
		AllowOrigins:  deps.Config.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowCredentials = true
	}
	router.Use(gincors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		results := deps.Health.CheckHealth()
		status := http.StatusOK
		for _, k := range []string{"database", "redis"} {
			if v := results[k]; v != "OK" && v != "NOT_CONFIGURED" {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, results)
	})
	router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	limiter := middleware.NewClientRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: deps.Config.RateLimit.RequestsPerSecond,
		Burst:             deps.Config.RateLimit.Burst,
	}, deps.Metrics)

	domains := NewDomainHandler(deps.Directory, log)
	mailboxes := NewMailboxHandler(deps.Directory, log)
	aliases := NewAliasHandler(deps.Directory, log)
	auth := NewAuthHandler(deps.Directory, log)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, log)

	v1 := router.Group("/v1")
	v1.Use(limiter.Handler())
	{
		v1.POST("/auth/verify", auth.Verify)

		admin := v1.Group("/admin")
		admin.Use(jwtAuth.RequireAdmin())
		{
			admin.GET("/domains", domains.List)
			admin.POST("/domains", domains.Create)
			admin.GET("/domains/:fqdn", domains.Get)
			admin.PATCH("/domains/:fqdn", domains.SetActive)
			admin.DELETE("/domains/:fqdn", domains.Delete)

			admin.GET("/mailboxes", mailboxes.List)
			admin.POST("/mailboxes", mailboxes.Create)
			admin.GET("/mailboxes/:email", mailboxes.Get)
			admin.PATCH("/mailboxes/:email", mailboxes.SetActive)
			admin.DELETE("/mailboxes/:email", mailboxes.Delete)
			admin.PUT("/mailboxes/:email/password", mailboxes.SetPassword)
			admin.POST("/mailboxes/:email/password/change", mailboxes.ChangePassword)

			admin.GET("/aliases", aliases.List)
			admin.POST("/aliases", aliases.Create)
			admin.GET("/aliases/:id", aliases.Get)
			admin.PATCH("/aliases/:id", aliases.SetActive)
			admin.DELETE("/aliases/:id", aliases.Delete)
		}
	}

	return router
}
