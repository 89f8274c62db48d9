package router

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/infra/server/appstate"
	"github.com/compozy/docbuddy/engine/session"
	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RespondProblem writes an RFC 7807 error response and aborts the chain.
func RespondProblem(c *gin.Context, problem *core.Problem) {
	problem = problem.Normalize()
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	writeProblemResponse(c, problem, problem.Body())
}

// RespondProblemWithCode writes a problem response embedding a code and detail.
func RespondProblemWithCode(c *gin.Context, status int, code string, detail string) {
	RespondProblem(c, &core.Problem{Status: status, Code: code, Detail: detail})
}

// RespondWithError maps domain errors onto HTTP statuses. Unknown errors are
// reported as 500.
func RespondWithError(c *gin.Context, err error) {
	problem := core.ProblemFromError(StatusForError(err), err)
	if problem.Code == "" {
		problem.Code = ErrInternalCode
	}
	RespondProblem(c, problem)
}

// StatusForError returns the HTTP status for a domain error.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, session.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrConnection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetAppState resolves the application state or writes a 500 problem.
func GetAppState(c *gin.Context) *appstate.State {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		RespondProblemWithCode(c, http.StatusInternalServerError, ErrInternalCode, ErrMsgAppStateNotInitialized)
		return nil
	}
	return state
}

// GetURLParam reads a path parameter or writes a 400 problem when it is blank.
func GetURLParam(c *gin.Context, key string) string {
	value := c.Param(key)
	if value == "" {
		RespondProblemWithCode(c, http.StatusBadRequest, ErrBadRequestCode, key+" is required")
		return ""
	}
	return value
}

func writeProblemResponse(c *gin.Context, problem *core.Problem, body map[string]any) {
	logProblem(c, problem)
	payload, err := json.Marshal(body)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("failed to marshal problem", "err", err)
		fallback := []byte(`{"status":500,"error":"Internal Server Error"}`)
		c.Data(http.StatusInternalServerError, "application/problem+json", fallback)
		c.Abort()
		return
	}
	c.Data(problem.Status, "application/problem+json", payload)
	c.Abort()
}

func logProblem(c *gin.Context, problem *core.Problem) {
	log := logger.FromContext(c.Request.Context())
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := []any{
		"status", problem.Status,
		"title", problem.Title,
		"detail", problem.Detail,
		"route", route,
		"path", c.Request.URL.Path,
	}
	if problem.Code != "" {
		fields = append(fields, "code", problem.Code)
	}
	if requestID := c.Request.Header.Get("X-Request-ID"); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if problem.Status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Warn("request failed", fields...)
}
