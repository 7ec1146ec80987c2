package restservice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vigil-btc/vigild/internal/core/application"
	interfaces "github.com/vigil-btc/vigild/internal/interface"
	"github.com/vigil-btc/vigild/internal/interface/rest/handlers"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Config struct {
	Port   uint32
	NoCORS bool
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	return nil
}

type service struct {
	config Config
	appSvc application.Service
	server *http.Server
}

func NewService(
	svcConfig Config, appSvc application.Service,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}

	return &service{config: svcConfig, appSvc: appSvc}, nil
}

func (s *service) Start() error {
	if err := s.appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	router := gin.New()
	router.Use(gin.Recovery())

	if !s.config.NoCORS {
		// the web client is served from another origin
		router.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"Authorization", "Content-Type"},
			MaxAge:          12 * time.Hour,
		}))
	}

	handlers.NewSwitchHandler(s.appSvc).RegisterRoutes(router)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("rest server exited")
		}
	}()
	log.Infof("started listening at %s", s.server.Addr)

	return nil
}

func (s *service) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// nolint:errcheck
		s.server.Shutdown(ctx)
		log.Info("stopped rest server")
	}
	s.appSvc.Stop()
	log.Info("stopped app service")
}
