package sessionsrouter

import (
	"errors"
	"net/http"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/infra/server/router"
	"github.com/compozy/docbuddy/engine/infra/server/routes"
	"github.com/compozy/docbuddy/engine/session"
	"github.com/gin-gonic/gin"
)

// multipart framing allowance on top of the document limit
const multipartOverhead = 1 << 20

// createSession handles POST /sessions.
//
// @Summary Create session
// @Tags sessions
// @Produce json
// @Success 201 {object} router.Response{data=sessionsrouter.SessionResponse}
// @Failure 500 {object} core.ProblemDocument
// @Router /sessions [post]
func createSession(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	sess, err := state.Sessions.Create(c.Request.Context())
	if err != nil {
		router.RespondWithError(c, err)
		return
	}
	router.RespondCreated(c, "session created", SessionResponse{Session: toSessionDTO(sess)})
}

// getSession handles GET /sessions/{session_id}.
//
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} router.Response{data=sessionsrouter.SessionResponse}
// @Failure 404 {object} core.ProblemDocument
// @Router /sessions/{session_id} [get]
func getSession(c *gin.Context) {
	sess := lookupSession(c)
	if sess == nil {
		return
	}
	router.RespondOK(c, "session retrieved", SessionResponse{Session: toSessionDTO(sess)})
}

// deleteSession handles DELETE /sessions/{session_id}.
//
// @Summary Delete session
// @Description Removes staged files and releases the shared vector store.
// @Tags sessions
// @Param session_id path string true "Session ID"
// @Success 204
// @Failure 404 {object} core.ProblemDocument
// @Router /sessions/{session_id} [delete]
func deleteSession(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := state.Sessions.Close(c.Request.Context(), id); err != nil {
		router.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// uploadDocument handles POST /sessions/{session_id}/document.
//
// @Summary Upload document
// @Description Stages a PDF, TXT, DOCX, PPTX or CSV file, replacing the previous upload.
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param session_id path string true "Session ID"
// @Param file formData file true "Document"
// @Success 201 {object} router.Response{data=sessionsrouter.DocumentResponse}
// @Failure 400 {object} core.ProblemDocument
// @Failure 404 {object} core.ProblemDocument
// @Failure 413 {object} core.ProblemDocument
// @Router /sessions/{session_id}/document [post]
func uploadDocument(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	sess := lookupSession(c)
	if sess == nil {
		return
	}
	limit := state.Config.Session.MaxUploadBytes + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			router.RespondProblemWithCode(c, http.StatusRequestEntityTooLarge, router.ErrPayloadTooLargeCode, err.Error())
			return
		}
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "multipart field \"file\" is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, err.Error())
		return
	}
	defer file.Close()
	doc, err := sess.Stage(header.Filename, file)
	if err != nil {
		router.RespondWithError(c, err)
		return
	}
	router.RespondCreated(c, "document uploaded", DocumentResponse{Document: doc})
}

// createEmbeddings handles POST /sessions/{session_id}/embeddings.
//
// @Summary Create embeddings
// @Description Clears the collection, then indexes the staged document.
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} router.Response{data=sessionsrouter.EmbeddingsResponse}
// @Failure 404 {object} core.ProblemDocument
// @Failure 409 {object} core.ProblemDocument "No document uploaded"
// @Failure 415 {object} core.ProblemDocument "Unsupported format"
// @Failure 422 {object} core.ProblemDocument "Document produced no text"
// @Failure 502 {object} core.ProblemDocument "Vector store unreachable"
// @Router /sessions/{session_id}/embeddings [post]
func createEmbeddings(c *gin.Context) {
	sess := lookupSession(c)
	if sess == nil {
		return
	}
	result, err := sess.CreateEmbeddings(c.Request.Context())
	if err != nil {
		router.RespondWithError(c, err)
		return
	}
	router.RespondOK(c, result.Message, toEmbeddingsResponse(result))
}

// listMessages handles GET /sessions/{session_id}/messages.
//
// @Summary List messages
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} router.Response{data=sessionsrouter.MessagesResponse}
// @Failure 404 {object} core.ProblemDocument
// @Router /sessions/{session_id}/messages [get]
func listMessages(c *gin.Context) {
	sess := lookupSession(c)
	if sess == nil {
		return
	}
	router.RespondOK(c, "messages retrieved", MessagesResponse{Messages: sess.Messages()})
}

// sendMessage handles POST /sessions/{session_id}/messages.
//
// @Summary Send message
// @Description Runs one chat turn. Failures are returned as the reply text.
// @Tags sessions
// @Accept json
// @Produce json
// @Param session_id path string true "Session ID"
// @Param payload body sessionsrouter.SendMessageRequest true "Question"
// @Success 200 {object} router.Response{data=sessionsrouter.SendMessageResponse}
// @Failure 400 {object} core.ProblemDocument
// @Failure 404 {object} core.ProblemDocument
// @Router /sessions/{session_id}/messages [post]
func sendMessage(c *gin.Context) {
	sess := lookupSession(c)
	if sess == nil {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "content is required")
		return
	}
	reply := sess.Send(c.Request.Context(), req.Content)
	router.RespondOK(c, "message processed", SendMessageResponse{Reply: reply, Ready: sess.Ready()})
}

func sessionID(c *gin.Context) (core.ID, bool) {
	raw := router.GetURLParam(c, routes.SessionParam)
	if raw == "" {
		return "", false
	}
	id, err := core.ParseID(raw)
	if err != nil {
		router.RespondWithError(c, session.ErrNotFound)
		return "", false
	}
	return id, true
}

func lookupSession(c *gin.Context) *session.Session {
	state := router.GetAppState(c)
	if state == nil {
		return nil
	}
	id, ok := sessionID(c)
	if !ok {
		return nil
	}
	sess, err := state.Sessions.Get(id)
	if err != nil {
		router.RespondWithError(c, err)
		return nil
	}
	return sess
}
