package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ShutdownTimeout bounds how long in-flight requests get on shutdown
const ShutdownTimeout = 10 * time.Second

type APIServer struct {
	app           *fiber.App
	listenAddress string
	logger        *slog.Logger
}

func NewAPIServer(listenAddress string, logger *slog.Logger) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:      "Placement Pulse API",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			BodyLimit:    1 * 1024 * 1024,
		}),
		listenAddress: listenAddress,
		logger:        logger,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *APIServer) Run(ctx context.Context) error {
	s.logger.Info("Starting API Server", "address", s.listenAddress)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.listenAddress)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down API Server")
		return s.app.ShutdownWithTimeout(ShutdownTimeout)
	}
}
