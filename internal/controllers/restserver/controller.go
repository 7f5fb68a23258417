// Package restserver serves the yield API over HTTP.
package restserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/soheilhy/cmux"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/chrissnell/pvyield/internal/observability"
	"github.com/chrissnell/pvyield/internal/yield"
	"github.com/chrissnell/pvyield/pkg/config"
)

// HealthService is the name the yield API reports under in grpc.health.v1.
const HealthService = "pvyield.v1.Yield"

const shutdownTimeout = 10 * time.Second

// YieldCalculator runs yield calculations for the handlers.
type YieldCalculator interface {
	CalculateRequest(ctx context.Context, req yield.Request) (yield.Result, error)
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.ServerData
	Server     http.Server
	grpcServer *grpc.Server
	health     *health.Server
	metrics    *observability.Collector
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller. metrics may be nil,
// in which case /metrics is not served.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.ServerData, calc YieldCalculator, metrics *observability.Collector, logger *zap.SugaredLogger) (*Controller, error) {
	if calc == nil {
		return nil, errors.New("REST server needs a yield calculator")
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = config.DefaultListenAddr
	}

	// Set default HTTP port if not specified
	if rc.HTTPPort == 0 {
		logger.Infof("server.http_port not provided; defaulting to %d", config.DefaultHTTPPort)
		rc.HTTPPort = config.DefaultHTTPPort
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		metrics:    metrics,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(calc, logger)

	ctrl.Server.Addr = net.JoinHostPort(rc.ListenAddr, fmt.Sprint(rc.HTTPPort))
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	if rc.GRPCHealth {
		if ctrl.tlsEnabled() {
			logger.Warn("server.grpc_health is not available with TLS; serving HTTP only")
		} else {
			ctrl.setupGRPC()
		}
	}

	return ctrl, nil
}

func (c *Controller) tlsEnabled() bool {
	return c.restConfig.TLSCertPath != "" && c.restConfig.TLSKeyPath != ""
}

func (c *Controller) setupGRPC() {
	c.health = health.NewServer()
	c.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)

	c.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(c.grpcServer, c.health)
	reflection.Register(c.grpcServer)
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)

	if c.grpcServer != nil {
		lis, err := net.Listen("tcp", c.Server.Addr)
		if err != nil {
			return fmt.Errorf("REST server could not listen on %s: %w", c.Server.Addr, err)
		}
		return c.Serve(lis)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if c.tlsEnabled() {
			if err := c.Server.ListenAndServeTLS(c.restConfig.TLSCertPath, c.restConfig.TLSKeyPath); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go c.shutdownOnDone()
	return nil
}

// Serve splits lis between the gRPC health service and HTTP and serves
// both until the controller's context is canceled.
func (c *Controller) Serve(lis net.Listener) error {
	if c.grpcServer == nil {
		c.setupGRPC()
	}

	m := cmux.New(lis)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	c.wg.Add(3)
	go func() {
		defer c.wg.Done()
		if err := c.grpcServer.Serve(grpcL); err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, cmux.ErrListenerClosed) {
			c.logger.Errorf("gRPC health server error: %v", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(httpL); err != nil && err != http.ErrServerClosed && !errors.Is(err, cmux.ErrListenerClosed) {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debugf("connection multiplexer stopped: %v", err)
		}
	}()

	go func() {
		c.shutdownOnDone()
		lis.Close()
	}()
	return nil
}

func (c *Controller) shutdownOnDone() {
	<-c.ctx.Done()
	c.logger.Info("Shutting down the REST server...")

	if c.health != nil {
		c.health.Shutdown()
	}
	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Server.Shutdown(ctx); err != nil {
		c.logger.Warnf("REST server shutdown: %v", err)
	}
}

// Handler returns the complete HTTP handler: routes wrapped in CORS, access
// logging and panic recovery.
func (c *Controller) Handler() http.Handler {
	router := c.setupRouter()

	origins := c.restConfig.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	}
	if origins[0] != "*" {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	var h http.Handler = router
	h = handlers.CORS(corsOptions...)(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, c.logRequest)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{c.logger}), handlers.PrintRecoveryStack(true))(h)
	return h
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(c.metricsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/yield", c.handlers.PostYield).Methods(http.MethodPost)
	api.HandleFunc("/keepalive", c.handlers.GetKeepAlive).Methods(http.MethodGet)
	api.HandleFunc("/gridcell", c.handlers.GetGridCell).Methods(http.MethodGet)

	if c.metrics != nil {
		router.Handle("/metrics", c.metrics.Handler()).Methods(http.MethodGet)
	}

	return router
}

func (c *Controller) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	c.logger.Infow("http request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"remote_addr", p.Request.RemoteAddr,
		"request_id", p.Request.Header.Get(requestIDHeader),
		"duration", time.Since(p.TimeStamp),
	)
}

type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (r recoveryLogger) Println(v ...interface{}) {
	r.logger.Error(v...)
}
