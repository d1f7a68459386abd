package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vortex/internal/errors"
	"vortex/internal/logger"
	"vortex/internal/orchestrator"
)

// ErrorResponse is the JSON error body returned by the API
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// errorHandler maps typed errors onto HTTP statuses
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	resp := ErrorResponse{Code: string(errors.ErrInternal), Message: err.Error()}

	if ve, ok := err.(*errors.VortexError); ok {
		status = ve.GetHTTPStatus()
		resp = ErrorResponse{
			Code:    string(ve.Code),
			Message: ve.Message,
			Details: ve.Details,
		}
	} else if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		resp.Message = http.StatusText(status)
	}

	if jsonErr := c.JSON(status, resp); jsonErr != nil {
		logger.GetLogger(c).WithError(jsonErr).Error("Failed to write error response")
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListWorkspaces(c echo.Context) error {
	records, err := s.wsOps.ListWorkspaces(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// serviceResultJSON flattens an orchestrator result for the wire
type serviceResultJSON struct {
	Service string `json:"service"`
	VM      string `json:"vm"`
	State   string `json:"state"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

func toResultJSON(results []orchestrator.ServiceResult) []serviceResultJSON {
	out := make([]serviceResultJSON, 0, len(results))
	for _, res := range results {
		item := serviceResultJSON{
			Service: res.ServiceName,
			VM:      res.VMIdentity,
			State:   string(res.State),
			Skipped: res.Skipped,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		out = append(out, item)
	}
	return out
}

func (s *Server) handleStartWorkspace(c echo.Context) error {
	results, err := s.wsOps.StartWorkspace(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResultJSON(results))
}

func (s *Server) handleStopWorkspace(c echo.Context) error {
	results, err := s.wsOps.StopWorkspace(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResultJSON(results))
}

func (s *Server) handleDeleteWorkspace(c echo.Context) error {
	results, err := s.wsOps.DeleteWorkspace(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResultJSON(results))
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.sessOps.ListSessions(c.Request().Context(), c.QueryParam("workspace"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleOrphans(c echo.Context) error {
	orphans, err := s.sessOps.DetectOrphans(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]ErrorResponse, 0, len(orphans))
	for _, orphan := range orphans {
		out = append(out, ErrorResponse{
			Code:    string(orphan.Code),
			Message: orphan.Message,
			Details: orphan.Details,
		})
	}
	return c.JSON(http.StatusOK, out)
}
