// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/orchestrator"
	"github.com/xkilldash9x/riskgate/internal/reporting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Runner is the single-assessment entry point.
type Runner interface {
	Run(ctx context.Context, company, software string) (*schemas.AssessmentOutput, error)
}

// AssessRequest is the body of POST /api/assess.
type AssessRequest struct {
	Company  string `json:"company"`
	Software string `json:"software"`
}

// ErrorResponse is returned for every non-2xx answer from the API group.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server wraps a fiber app bound to one pipeline.
type Server struct {
	app    *fiber.App
	runner Runner
	logger *zap.Logger
}

// New builds the app and registers its routes.
func New(runner Runner, logger *zap.Logger) *Server {
	s := &Server{
		runner: runner,
		logger: logger.Named("server"),
		app: fiber.New(fiber.Config{
			AppName:               "riskgate",
			DisableStartupMessage: true,
			JSONEncoder:           json.Marshal,
			JSONDecoder:           json.Unmarshal,
		}),
	}
	s.routes()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) routes() {
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Service is up and running!")
	})

	api := s.app.Group("/api")
	api.Post("/assess", s.assessHandler())

	s.app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("Not Found!")
	})
}

// assessHandler runs one assessment. ?format=table answers with a plain-text
// summary table instead of JSON.
func (s *Server) assessHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req AssessRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body: " + err.Error()})
		}
		req.Company, req.Software = strings.TrimSpace(req.Company), strings.TrimSpace(req.Software)
		if req.Company == "" || req.Software == "" {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "both company and software are required"})
		}

		start := time.Now()
		out, err := s.runner.Run(c.UserContext(), req.Company, req.Software)
		if err != nil {
			if errors.Is(err, orchestrator.ErrInvalidInput) {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
			}
			s.logger.Error("Assessment failed", zap.String("company", req.Company), zap.String("software", req.Software), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "assessment failed: " + err.Error()})
		}

		s.logger.Info("Assessment served",
			zap.String("company", req.Company),
			zap.String("software", req.Software),
			zap.String("decision", out.Decision.Upper()),
			zap.Duration("elapsed", time.Since(start)))

		if c.Query("format") == "table" {
			return c.Status(fiber.StatusOK).SendString(reporting.RenderSummaryTable(out))
		}
		return c.Status(fiber.StatusOK).JSON(out)
	}
}

// Listen serves on address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, address string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", zap.String("address", address))
		errCh <- s.app.Listen(address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP API")
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			return err
		}
		return <-errCh
	}
}
