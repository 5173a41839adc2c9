package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"reelcast/internal/logging"
	"reelcast/internal/pipeline"
	"reelcast/internal/store"
)

// Service is the slice of the pipeline controller the HTTP surface drives.
type Service interface {
	Create(ctx context.Context, req pipeline.CreateRequest) (*store.Project, error)
	List(ctx context.Context) ([]*store.Project, error)
	Status(ctx context.Context, projectID string) (pipeline.ProjectView, error)
	Delete(ctx context.Context, projectID string) error
	StartDownload(ctx context.Context, projectID string) (string, error)
	StartMerge(ctx context.Context, projectID string) (string, error)
	StartSplit(ctx context.Context, projectID string) (string, error)
	StartCaption(ctx context.Context, projectID string, segmentID int) (string, error)
	StartCaptionBatch(ctx context.Context, projectID string, ids []int) (pipeline.BatchStart, error)
	Cancel(ctx context.Context, projectID string) (int, error)
	Segments(ctx context.Context, projectID string) ([]*store.Segment, error)
	DeleteSegments(ctx context.Context, projectID string) error
}

// HealthFunc gathers the health payload on demand.
type HealthFunc func(ctx context.Context) HealthResponse

// Options configures the router.
type Options struct {
	// Token, when non-empty, is required as a bearer token on every route.
	Token  string
	Health HealthFunc
	Logger *slog.Logger
}

type handler struct {
	svc    Service
	health HealthFunc
	logger *slog.Logger
}

// NewRouter builds the gin engine serving the project API.
func NewRouter(svc Service, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "api")
	h := &handler{svc: svc, health: opts.Health, logger: logger}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestContext(logger))

	api := engine.Group("/api")
	api.Use(bearerAuth(opts.Token))
	{
		api.GET("/health", h.getHealth)

		projects := api.Group("/projects")
		{
			projects.POST("", h.createProject)
			projects.GET("", h.listProjects)
			projects.GET("/:id", h.getProject)
			projects.DELETE("/:id", h.deleteProject)
			projects.POST("/:id/download", h.startStage(svc.StartDownload))
			projects.POST("/:id/merge", h.startStage(svc.StartMerge))
			projects.POST("/:id/split", h.startStage(svc.StartSplit))
			projects.POST("/:id/segments/:segmentId/caption", h.startCaption)
			projects.POST("/:id/captions", h.startCaptionBatch)
			projects.POST("/:id/cancel", h.cancelProject)
			projects.GET("/:id/segments", h.listSegments)
			projects.DELETE("/:id/segments", h.deleteSegments)
		}
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found", Kind: "not_found"})
	})
	return engine
}
