package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reelcast/internal/logging"
	"reelcast/internal/pipeline"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

func (h *handler) createProject(c *gin.Context) {
	var req pipeline.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, services.Wrap(services.ErrValidation, "", "create project", "invalid request body", err))
		return
	}
	project, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: project.ID})
}

func (h *handler) listProjects(c *gin.Context) {
	projects, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if projects == nil {
		projects = []*store.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

func (h *handler) getProject(c *gin.Context) {
	view, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) deleteProject(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeletedResponse{Deleted: true})
}

func (h *handler) startStage(start func(context.Context, string) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		processID, err := start(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, ProcessResponse{ProcessID: processID})
	}
}

func (h *handler) startCaption(c *gin.Context) {
	raw := c.Param("segmentId")
	segmentID, err := strconv.Atoi(raw)
	if err != nil || segmentID < 1 {
		h.fail(c, services.Wrap(services.ErrValidation, "caption", "parse segment",
			fmt.Sprintf("segment id %q must be a positive integer", raw), nil))
		return
	}
	processID, err := h.svc.StartCaption(c.Request.Context(), c.Param("id"), segmentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ProcessResponse{ProcessID: processID})
}

func (h *handler) startCaptionBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, services.Wrap(services.ErrValidation, "caption", "caption batch", "invalid request body", err))
		return
	}
	batch, err := h.svc.StartCaptionBatch(c.Request.Context(), c.Param("id"), req.Segments)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, batch)
}

func (h *handler) cancelProject(c *gin.Context) {
	n, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CancelResponse{Canceled: n})
}

func (h *handler) listSegments(c *gin.Context) {
	segments, err := h.svc.Segments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if segments == nil {
		segments = []*store.Segment{}
	}
	c.JSON(http.StatusOK, segments)
}

func (h *handler) deleteSegments(c *gin.Context) {
	if err := h.svc.DeleteSegments(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeletedResponse{Deleted: true})
}

func (h *handler) getHealth(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: "unknown", Dependencies: []DependencyStatus{}})
		return
	}
	report := h.health(c.Request.Context())
	code := http.StatusOK
	if report.StoreError != "" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

func (h *handler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(c.Request.Context(), h.logger), "api handler failed", "api_error",
			logging.String("route", c.FullPath()),
			logging.Error(err),
		)
	}
	c.JSON(code, ErrorResponse{Error: err.Error(), Kind: services.FailureKind(err)})
}
