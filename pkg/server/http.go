package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/waconnect/app/api/routes"
	_ "github.com/waconnect/docs"
	"github.com/waconnect/pkg/config"
	"github.com/waconnect/pkg/domains/connection"
	"github.com/waconnect/pkg/logger"
	"github.com/waconnect/pkg/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxGoroutines = 10000

// Deps is what the HTTP layer serves.
type Deps struct {
	Connections connection.Service
	Lifecycle   connection.Options
	// Ready checks gate /ready, keyed by name.
	Ready map[string]healthcheck.Check
}

func NewRouter(appc config.App, allows config.Allows, deps Deps) *gin.Engine {
	if appc.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	app := gin.New()
	app.Use(middleware.RequestLogging())
	app.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	app.Use(gin.Recovery())
	app.Use(otelgin.Middleware(appc.Name))
	app.Use(middleware.ClaimIp())
	app.Use(cors.New(corsConfig(allows)))

	p := ginprom.New(
		ginprom.Engine(app),
		ginprom.Subsystem("gin"),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/docs/*any"),
	)
	app.Use(p.Instrument())

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	for name, check := range deps.Ready {
		health.AddReadinessCheck(name, healthcheck.Timeout(check, 3*time.Second))
	}
	app.GET("/live", gin.WrapF(health.LiveEndpoint))
	app.GET("/ready", gin.WrapF(health.ReadyEndpoint))

	api := app.Group("/api/v1")
	routes.ConnectionRoutes(api.Group("/connections"), deps.Connections, deps.Lifecycle)
	routes.AdminRoutes(api.Group("/admin"), deps.Connections)

	return app
}

func corsConfig(allows config.Allows) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Origin", "Accept"},
		AllowOrigins:     []string{"*"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(allows.Methods) > 0 {
		c.AllowMethods = upper(allows.Methods)
	}
	if len(allows.Origins) > 0 {
		c.AllowOrigins = allows.Origins
	}
	if len(allows.Headers) > 0 {
		c.AllowHeaders = allows.Headers
	}
	return c
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

// LaunchHttpServer serves until ctx is cancelled, then drains in-flight
// requests.
func LaunchHttpServer(ctx context.Context, appc config.App, handler http.Handler) error {
	log := logger.Get()
	srv := &http.Server{
		Addr:              net.JoinHostPort(appc.Host, appc.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
