package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// Init sets up echo with middlewares and routes.
func (s *Server) Init() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Err(v.Error).
				Msg("HTTP request")
			return nil
		},
	}))

	if s.Metrics != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:  "twap",
			Subsystem:  "http",
			Registerer: s.Metrics.Registry,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		}))
	}

	s.Echo = e
	s.Router = &Router{
		Routes:     nil,
		Root:       e.Group(""),
		Management: e.Group("/-"),
		APIV1:      e.Group("/api/v1"),
	}

	s.Router.Routes = append(s.Router.Routes,
		s.Router.Management.GET("/healthy", getHealthyHandler(s)),
		s.Router.Management.GET("/ready", getReadyHandler(s)),
		s.Router.APIV1.GET("/progress", getProgressHandler(s)),
	)

	if s.Metrics != nil {
		s.Router.Routes = append(s.Router.Routes,
			s.Router.Root.GET("/metrics", echo.WrapHandler(s.Metrics.Handler())),
		)
	}
}

func getHealthyHandler(_ *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy.")
	}
}

// statusNotReady is answered by /-/ready while the server is not ready.
const statusNotReady = 521

func getReadyHandler(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.Ready() {
			return c.String(statusNotReady, "Not ready.")
		}

		return c.String(http.StatusOK, "Ready.")
	}
}

type progressResponse struct {
	RunID         string     `json:"runId"`
	State         string     `json:"state"`
	Step          int        `json:"step"`
	StepCount     int        `json:"stepCount"`
	LastCompleted int        `json:"lastCompleted"`
	LastTxHash    string     `json:"lastTxHash,omitempty"`
	NextStepAt    *time.Time `json:"nextStepAt,omitempty"`
	Error         string     `json:"error,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func getProgressHandler(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.Progress == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no rebalance run attached")
		}

		p := s.Progress.Progress()

		res := progressResponse{
			RunID:         p.RunID,
			State:         string(p.State),
			Step:          p.Step,
			StepCount:     p.StepCount,
			LastCompleted: p.LastCompleted,
			NextStepAt:    p.NextStepAt,
			Error:         p.Error,
			UpdatedAt:     p.UpdatedAt,
		}
		if p.LastCompleted > 0 {
			res.LastTxHash = p.LastTxHash.Hex()
		}

		return c.JSON(http.StatusOK, res)
	}
}
