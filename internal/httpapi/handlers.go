package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/docstore"
)

type handler struct {
	board     *board.Service
	store     docstore.Subscriber
	queueSize int
	log       *slog.Logger
}

type projectBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type taskBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type commentBody struct {
	Text string `json:"text"`
}

func (h *handler) listProjects(c *gin.Context) {
	projects, err := h.board.ListProjects(c.Request.Context())
	if err != nil {
		h.writeError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *handler) createProject(c *gin.Context) {
	var body projectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	id, err := h.board.CreateProject(c.Request.Context(), IdentityFromContext(c), body.Name, body.Description)
	h.respond(c, board.OpCreateProject, http.StatusCreated, gin.H{"id": id}, err)
}

func (h *handler) deleteProject(c *gin.Context) {
	err := h.board.DeleteProject(c.Request.Context(), c.Param("project"))
	h.respond(c, board.OpDeleteProject, http.StatusOK, gin.H{}, err)
}

func (h *handler) listTasks(c *gin.Context) {
	tasks, err := h.board.ListTasks(c.Request.Context(), c.Param("project"))
	if err != nil {
		h.writeError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *handler) createTask(c *gin.Context) {
	var body taskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	id, err := h.board.CreateTask(c.Request.Context(), IdentityFromContext(c), c.Param("project"), body.Title, body.Description)
	h.respond(c, board.OpCreateTask, http.StatusCreated, gin.H{"id": id}, err)
}

func (h *handler) getTask(c *gin.Context) {
	task, err := h.board.GetTask(c.Request.Context(), c.Param("project"), c.Param("task"))
	if err != nil {
		h.writeError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handler) updateTask(c *gin.Context) {
	var body board.TaskUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	err := h.board.UpdateTask(c.Request.Context(), c.Param("project"), c.Param("task"), body)
	h.respond(c, board.OpUpdateTask, http.StatusOK, gin.H{}, err)
}

func (h *handler) deleteTask(c *gin.Context) {
	err := h.board.DeleteTask(c.Request.Context(), c.Param("project"), c.Param("task"))
	h.respond(c, board.OpDeleteTask, http.StatusOK, gin.H{}, err)
}

func (h *handler) listComments(c *gin.Context) {
	comments, err := h.board.ListComments(c.Request.Context(), c.Param("project"), c.Param("task"))
	if err != nil {
		h.writeError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *handler) postComment(c *gin.Context) {
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	id, err := h.board.PostComment(c.Request.Context(), IdentityFromContext(c), c.Param("project"), c.Param("task"), body.Text)
	h.respond(c, board.OpPostComment, http.StatusCreated, gin.H{"id": id}, err)
}

// respond writes the outcome of op. Successful responses carry the alert
// text the board would show, when there is one.
func (h *handler) respond(c *gin.Context, op board.Op, status int, body gin.H, err error) {
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	if n, ok := board.Describe(op, nil); ok {
		body["message"] = n.Message
	}
	c.JSON(status, body)
}

func (h *handler) writeError(c *gin.Context, op board.Op, err error) {
	n, _ := board.Describe(op, err)
	switch {
	case board.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": n.Message})
	case errors.Is(err, docstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, docstore.ErrInvalidPath), errors.Is(err, docstore.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": n.Message})
	}
}
