// Package httpapi exposes the board over HTTP: REST endpoints for
// projects, tasks and comments plus a server-sent event stream of comment
// notifications per project.
package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/docstore"
)

// Config wires the router to the application.
type Config struct {
	Board *board.Service

	// Store feeds the notification streams.
	Store          docstore.Subscriber
	AllowedOrigins []string

	// QueueSize bounds the notifications buffered per stream.
	QueueSize int
	Logger    *slog.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handler{
		board:     cfg.Board,
		store:     cfg.Store,
		queueSize: cfg.QueueSize,
		log:       log,
	}

	v1 := r.Group("/api/v1")
	v1.Use(Identify())
	{
		v1.GET("/projects", h.listProjects)
		v1.POST("/projects", h.createProject)
		v1.DELETE("/projects/:project", h.deleteProject)
		v1.GET("/projects/:project/notifications", h.streamNotifications)

		v1.GET("/projects/:project/tasks", h.listTasks)
		v1.POST("/projects/:project/tasks", h.createTask)
		v1.GET("/projects/:project/tasks/:task", h.getTask)
		v1.PUT("/projects/:project/tasks/:task", h.updateTask)
		v1.DELETE("/projects/:project/tasks/:task", h.deleteTask)

		v1.GET("/projects/:project/tasks/:task/comments", h.listComments)
		v1.POST("/projects/:project/tasks/:task/comments", h.postComment)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", headerUserID, headerUserName},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
