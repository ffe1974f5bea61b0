package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"certissuer/internal/api"
	"certissuer/internal/config"
	"certissuer/internal/logging"
	"certissuer/internal/records"
	"certissuer/internal/runlock"
)

const shutdownTimeout = 5 * time.Second

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	app    *fiber.App

	listener net.Listener
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Daemon.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	app := fiber.New(fiber.Config{
		AppName:               "certissuer",
		DisableStartupMessage: true,
		ErrorHandler:          srv.handleError,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	group := app.Group("/api", authMiddleware(strings.TrimSpace(cfg.Daemon.APIToken)))
	group.Post("/batch", srv.handleBatch)
	group.Get("/schedule", srv.handleSchedule)
	group.Get("/certificates", srv.handleCertificates)
	group.Get("/health", srv.handleHealth)
	srv.app = app
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.app.Listener(listener); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check daemon.api_bind"),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.app.ShutdownWithTimeout(shutdownTimeout)
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s.listener == nil {
		return
	}
	_ = s.app.ShutdownWithTimeout(shutdownTimeout)
	s.listener = nil
}

func (s *apiServer) address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleBatch(c *fiber.Ctx) error {
	res, err := s.daemon.TriggerBatch()
	if errors.Is(err, runlock.ErrBatchInProgress) {
		return c.Status(fiber.StatusConflict).JSON(api.ErrorResponse{Error: "a batch is already in progress"})
	}
	if err != nil {
		return err
	}
	return c.JSON(api.BatchResponse{Batch: api.FromBatchResult(res)})
}

func (s *apiServer) handleSchedule(c *fiber.Ctx) error {
	st := s.daemon.Status()
	resp := api.ScheduleResponse{
		Spec:     st.Schedule,
		Timezone: s.daemon.cfg.Schedule.Timezone,
		NextRun:  st.NextRun.Format(time.RFC3339),
		Running:  st.BatchRunning,
	}
	if st.LastRun != nil {
		summary := api.FromBatchResult(*st.LastRun)
		resp.LastRun = &summary
	}
	return c.JSON(resp)
}

func (s *apiServer) handleCertificates(c *fiber.Ctx) error {
	var filter records.Filter
	for _, raw := range c.Context().QueryArgs().PeekMulti("status") {
		for _, value := range strings.Split(string(raw), ",") {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			status, ok := records.ParseStatus(value)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Error: fmt.Sprintf("unknown status %q", value)})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	filter.Limit = c.QueryInt("limit", 0)
	if filter.Limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Error: "limit must not be negative"})
	}

	rows, counts, err := s.daemon.ListCertificates(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(api.CertificateListResponse{
		Items:  api.FromCertificates(rows),
		Counts: api.FromStatusCounts(counts),
	})
}

func (s *apiServer) handleHealth(c *fiber.Ctx) error {
	health, dirs := s.daemon.Health(c.UserContext())
	resp := api.HealthResponse{
		Ready:   true,
		PID:     s.daemon.Status().PID,
		Stages:  api.FromStageHealth(health),
		Staging: api.FromStagingDirs(dirs),
	}
	for _, h := range health {
		if !h.Ready {
			resp.Ready = false
		}
	}
	status := fiber.StatusOK
	if !resp.Ready {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

func (s *apiServer) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "api request failed", "api_request_failed",
			logging.String("method", c.Method()),
			logging.String("path", c.Path()),
			logging.Error(err),
		)
	}
	return c.Status(code).JSON(api.ErrorResponse{Error: err.Error()})
}
