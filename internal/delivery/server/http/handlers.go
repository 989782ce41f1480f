package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Amit95688/TDS/internal/delivery/server/app"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

const welcomeMessage = "Welcome to LLM Code Deployment API. See /health for service status."

// APIHandler serves the lifecycle endpoints.
type APIHandler struct {
	build       *app.BuildService
	revise      *app.ReviseService
	receiver    *app.ResultReceiver
	queries     *app.QueryService
	serviceName string
	now         func() time.Time
	logger      logging.Logger
}

// NewAPIHandler wires the services behind the HTTP surface.
func NewAPIHandler(build *app.BuildService, revise *app.ReviseService, receiver *app.ResultReceiver, queries *app.QueryService, serviceName string) *APIHandler {
	return &APIHandler{
		build:       build,
		revise:      revise,
		receiver:    receiver,
		queries:     queries,
		serviceName: serviceName,
		now:         time.Now,
		logger:      logging.NewComponentLogger("APIHandler"),
	}
}

// HandleBuild runs round 1 and reports the published artifact.
func (h *APIHandler) HandleBuild(c *gin.Context) {
	var body buildRequestBody
	if !bindJSON(c, &body) {
		return
	}
	outcome, err := h.build.SubmitBuild(c.Request.Context(), body.toRequest())
	if err != nil {
		writeMappedError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// HandleRevise runs round 2 against the existing repository.
func (h *APIHandler) HandleRevise(c *gin.Context) {
	var body reviseRequestBody
	if !bindJSON(c, &body) {
		return
	}
	outcome, err := h.revise.SubmitRevise(c.Request.Context(), body.toRequest())
	if err != nil {
		writeMappedError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// HandleWebhook ingests an evaluator callback.
func (h *APIHandler) HandleWebhook(c *gin.Context) {
	var body webhookBody
	if !bindJSON(c, &body) {
		return
	}
	ack, err := h.receiver.Ingest(c.Request.Context(), body.toResult())
	if err != nil {
		writeMappedError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// HandleResults lists stored evaluation results for a task round.
func (h *APIHandler) HandleResults(c *gin.Context) {
	taskID := c.Param("task_id")
	roundNo, ok := roundQuery(c)
	if !ok {
		return
	}
	results, err := h.queries.ListResults(c.Request.Context(), taskID, roundNo)
	if err != nil {
		writeMappedError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resultsResponse{TaskID: taskID, Round: roundNo, Results: results})
}

// HandleTasks lists every round submitted by an email address.
func (h *APIHandler) HandleTasks(c *gin.Context) {
	email := strings.TrimSpace(c.Param("email"))
	tasks, err := h.queries.ListTasks(c.Request.Context(), email)
	if err != nil {
		writeMappedError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasksResponse{Email: email, Tasks: tasks, Count: len(tasks)})
}

// HandleHistory returns the status audit log for a task round.
func (h *APIHandler) HandleHistory(c *gin.Context) {
	taskID := c.Param("task_id")
	roundNo, ok := roundQuery(c)
	if !ok {
		return
	}
	transitions, err := h.queries.History(c.Request.Context(), taskID, roundNo)
	if err != nil {
		writeMappedError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, historyResponse{TaskID: taskID, Round: roundNo, Transitions: transitions})
}

// HandleHealth reports service status with a UTC timestamp.
func (h *APIHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Service:   h.serviceName,
	})
}

// HandleRoot returns the welcome message.
func (h *APIHandler) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
}

// roundQuery parses ?round=, defaulting to 1.
func roundQuery(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("round"))
	if raw == "" {
		return 1, true
	}
	roundNo, err := strconv.Atoi(raw)
	if err != nil || roundNo < 1 {
		writeJSONError(c, http.StatusBadRequest, "round must be a positive integer")
		return 0, false
	}
	return roundNo, true
}
