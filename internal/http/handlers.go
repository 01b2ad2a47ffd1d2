package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/project"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "projectd"})
}

// handleStatus reports stored counts.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  statusSuccess,
		Version: s.version,
		Counts:  CountFromStore(c.Request().Context(), s.store),
	})
}

// handleCreate stores a new project.
func (s *Server) handleCreate(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid create request", zap.Error(err))
		return newAPIError(http.StatusBadRequest, msgInvalidBody, err)
	}

	sub := req.Submission()
	id, err := s.store.Create(withCaller(c, sub.OwnerID), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CreateResponse{Status: statusSuccess, ProjectID: id})
}

// handleList returns a newest-first page of projects.
func (s *Server) handleList(c echo.Context) error {
	opts, err := listOptions(c)
	if err != nil {
		return err
	}

	page, err := s.store.List(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{
		Status:         statusSuccess,
		Projects:       page.Projects,
		Total:          page.Total,
		NextStartAfter: page.NextStartAfter,
	})
}

// handleLegacyList serves GET /projects, which pages by cursor only.
func (s *Server) handleLegacyList(c echo.Context) error {
	page, err := s.store.List(c.Request().Context(), project.ListOptions{
		StartAfter: c.QueryParam("startAfter"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Status: statusSuccess, Projects: page.Projects})
}

// handleInfo returns the public view of one project.
func (s *Server) handleInfo(c echo.Context) error {
	info, err := s.store.Info(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, InfoResponse{Status: statusSuccess, Project: info})
}

// handleRename changes a project's display name.
func (s *Server) handleRename(c echo.Context) error {
	var req RenameRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, msgInvalidBody, err)
	}

	if err := s.store.Rename(c.Request().Context(), c.Param("id"), req.NewName); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Project renamed."})
}

// handleVerify marks a project verified.
func (s *Server) handleVerify(c echo.Context) error {
	if err := s.store.Verify(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Project verified."})
}

// handleIncrement records one download.
func (s *Server) handleIncrement(c echo.Context) error {
	n, err := s.store.IncrementDownload(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DownloadResponse{
		Status:        statusSuccess,
		DownloadCount: strconv.FormatUint(n, 10),
	})
}

// handleLegacyIncrease serves GET /increase?projectId=.
func (s *Server) handleLegacyIncrease(c echo.Context) error {
	id := c.QueryParam("projectId")
	if id == "" {
		return newAPIError(http.StatusBadRequest, msgMissingID, nil)
	}

	n, err := s.store.IncrementDownload(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LegacyDownloadResponse{
		Status:   statusSuccess,
		Download: strconv.FormatUint(n, 10),
	})
}

// handleDelete removes a project owned by the caller.
func (s *Server) handleDelete(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, msgInvalidBody, err)
	}
	return s.deleteProject(c, c.Param("id"), req.CallerID)
}

// handleLegacyDelete serves DELETE /delete with a {projectId, uid} body.
func (s *Server) handleLegacyDelete(c echo.Context) error {
	var req LegacyDeleteRequest
	if err := c.Bind(&req); err != nil {
		return newAPIError(http.StatusBadRequest, msgInvalidBody, err)
	}
	if req.ProjectID == "" {
		return newAPIError(http.StatusBadRequest, msgMissingID, nil)
	}
	return s.deleteProject(c, req.ProjectID, req.UID)
}

func (s *Server) deleteProject(c echo.Context, id, callerID string) error {
	if err := s.store.Delete(withCaller(c, callerID), id, callerID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Project deleted."})
}

// handleListByOwner returns every project of one owner.
func (s *Server) handleListByOwner(c echo.Context) error {
	projects, err := s.store.ListByOwner(c.Request().Context(), c.Param("ownerId"))
	if errors.Is(err, project.ErrNotFound) {
		return newAPIError(http.StatusNotFound, msgOwnerNotFound, err)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Status: statusSuccess, Projects: projects})
}

// handleSearch matches projects by name, owner name, or contact email.
func (s *Server) handleSearch(c echo.Context) error {
	projects, err := s.store.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Status: statusSuccess, Projects: projects})
}

// handleLeaderboard returns the most downloaded projects.
func (s *Server) handleLeaderboard(c echo.Context) error {
	projects, err := s.store.Leaderboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Status: statusSuccess, Projects: projects})
}

func (s *Server) handleListBans(c echo.Context) error {
	users, err := s.store.BannedUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BansResponse{Status: statusSuccess, Users: users})
}

func (s *Server) handleBan(c echo.Context) error {
	if err := s.store.Ban(c.Request().Context(), c.Param("userId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "User banned."})
}

func (s *Server) handleUnban(c echo.Context) error {
	if err := s.store.Unban(c.Request().Context(), c.Param("userId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "User unbanned."})
}

// handlePurge deletes every project and resets the ID counter.
func (s *Server) handlePurge(c echo.Context) error {
	n, err := s.store.PurgeAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PurgeResponse{
		Status:  statusSuccess,
		Message: "Database cleaned.",
		Deleted: n,
	})
}

// listOptions parses offset, limit, and startAfter query parameters.
func listOptions(c echo.Context) (project.ListOptions, error) {
	var opts project.ListOptions
	err := echo.QueryParamsBinder(c).
		Int("offset", &opts.Offset).
		Int("limit", &opts.Limit).
		String("startAfter", &opts.StartAfter).
		BindError()
	if err != nil {
		return opts, newAPIError(http.StatusBadRequest, "offset and limit must be integers.", err)
	}
	return opts, nil
}

// withCaller tags the request context with the acting user so store logs
// and the access log carry caller.id.
func withCaller(c echo.Context, callerID string) context.Context {
	req := c.Request()
	ctx := logging.WithCallerID(req.Context(), callerID)
	c.SetRequest(req.WithContext(ctx))
	return ctx
}
