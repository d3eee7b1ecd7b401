package server

import (
	"math"
	"net/http"

	"github.com/avilanova/metermux2mqtt/pkg/meterbus"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/version", s.VersionHandler)
	e.GET("/registers", s.RegistersHandler)
	e.GET("/measurements", s.MeasurementsHandler)
	e.POST("/suspend", s.SuspendHandler)
	e.POST("/resume", s.ResumeHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	if s.poller == nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	caps := s.schema.Capabilities()
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"meter":         s.schema.Name(),
		"phases":        s.schema.Phases(),
		"devices":       s.schema.DeviceCount(),
		"cycles":        s.store.Cycles(),
		"suspended":     s.store.Busy(),
		"dropped_users": s.schema.DroppedUsers(),
		"capabilities": map[string]bool{
			"voltage_available":   caps.VoltageAvailable,
			"current_available":   caps.CurrentAvailable,
			"common_voltage":      caps.CommonVoltage,
			"common_frequency":    caps.CommonFrequency,
			"total_authoritative": caps.TotalAuthoritative,
		},
	})
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"version":  versioninfo.Version,
		"revision": versioninfo.Revision,
		"short":    versioninfo.Short(),
	})
}

type userRegisterRow struct {
	JSONName string     `json:"json_name"`
	GUIName  string     `json:"gui_name"`
	GUIUnit  string     `json:"gui_unit,omitempty"`
	Decimals uint8      `json:"decimals"`
	PerPhase bool       `json:"per_phase"`
	Values   []*float64 `json:"values"`
}

// RegistersHandler renders the user-register presentation table. Phases
// without data are null.
func (s *Server) RegistersHandler(c echo.Context) error {
	readings := s.schema.UserReadings(s.store)
	rows := make([]userRegisterRow, 0, len(readings))
	for _, r := range readings {
		row := userRegisterRow{
			JSONName: r.JSONName,
			GUIName:  r.GUIName,
			GUIUnit:  r.GUIUnit,
			Decimals: r.Decimals,
			PerPhase: r.PerPhase,
			Values:   make([]*float64, len(r.Values)),
		}
		for i, v := range r.Values {
			if !math.IsNaN(v) {
				value := v
				row.Values[i] = &value
			}
		}
		rows = append(rows, row)
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) MeasurementsHandler(c echo.Context) error {
	snap := s.store.Snapshot()
	out := make(map[string][]*float64, meterbus.BuiltinRegisterCount)
	for q := meterbus.Quantity(0); q < meterbus.BuiltinRegisterCount; q++ {
		values := make([]*float64, s.schema.Phases())
		hasData := false
		for p := 0; p < s.schema.Phases(); p++ {
			if snap.HasValue(q, p) {
				value := snap.Values[q][p]
				values[p] = &value
				hasData = true
			}
		}
		if hasData {
			out[q.String()] = values
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"cycles":       snap.Cycles,
		"last_cycle":   snap.LastCycle,
		"measurements": out,
	})
}

func (s *Server) SuspendHandler(c echo.Context) error {
	s.store.Suspend()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ResumeHandler(c echo.Context) error {
	s.store.Resume()
	return c.NoContent(http.StatusNoContent)
}
