package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/service"
	"github.com/stemsi/exstem-client/internal/validator"
)

const (
	maxPayloadBytes  = 4 << 20
	contextKeyEngine = "session_engine"
)

// ExamSessionHandler exposes the session engine to the local exam UI.
type ExamSessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewExamSessionHandler creates a new ExamSessionHandler.
func NewExamSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *ExamSessionHandler {
	return &ExamSessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "exam_session_handler").Logger(),
	}
}

// RequireEngine resolves the running engine for :session_id and aborts with
// SESSION_NOT_ACTIVE when there is none.
func (h *ExamSessionHandler) RequireEngine() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, fields := validator.BindSession(c)
		if fields != nil {
			c.Abort()
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}

		engine, err := h.sessionService.Get(sessionID)
		if err != nil {
			response.AbortFail(c, http.StatusNotFound, response.ErrSessionNotActive)
			return
		}
		c.Set(contextKeyEngine, engine)
		c.Next()
	}
}

func getEngine(c *gin.Context) *service.ExamSessionEngine {
	v, _ := c.Get(contextKeyEngine)
	engine, _ := v.(*service.ExamSessionEngine)
	return engine
}

// StagePayload godoc
// PUT /api/v1/sessions/:session_id/payload
// Stores the session payload handed over by the exam-start flow.
func (h *ExamSessionHandler) StagePayload(c *gin.Context) {
	sessionID, fields := validator.BindSession(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrInvalidPayload)
			return
		}
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("Read payload error")
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	sess, err := h.sessionService.Stage(c.Request.Context(), sessionID, payload)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id":      sess.SessionID,
		"total_questions": len(sess.Questions),
	})
}

// EnterSession godoc
// POST /api/v1/sessions/:session_id/enter
// Loads the staged session and starts its engine (idempotent).
func (h *ExamSessionHandler) EnterSession(c *gin.Context) {
	sessionID, fields := validator.BindSession(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	engine, err := h.sessionService.Enter(c.Request.Context(), sessionID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, engine.Snapshot())
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *ExamSessionHandler) GetSession(c *gin.Context) {
	response.Success(c, http.StatusOK, getEngine(c).Snapshot())
}

// SelectAnswer godoc
// PUT /api/v1/sessions/:session_id/answers
// Records the answer letter for a question and schedules the best-effort sync.
func (h *ExamSessionHandler) SelectAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	engine := getEngine(c)
	letter, err := engine.SelectAnswer(req.QuestionID, req.OptionID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	snap := engine.Snapshot()
	response.Success(c, http.StatusOK, gin.H{
		"question_id":    req.QuestionID,
		"answer":         letter,
		"answered_count": snap.AnsweredCount,
		"progress":       snap.Progress,
	})
}

// ToggleFlag godoc
// POST /api/v1/sessions/:session_id/flags/:question_id/toggle
func (h *ExamSessionHandler) ToggleFlag(c *gin.Context) {
	questionID := c.Param("question_id")

	flagged, err := getEngine(c).ToggleFlag(questionID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"question_id": questionID,
		"flagged":     flagged,
	})
}

// Navigate godoc
// POST /api/v1/sessions/:session_id/navigate
// Moves to the next, previous or a given question; the index is clamped.
func (h *ExamSessionHandler) Navigate(c *gin.Context) {
	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	engine := getEngine(c)
	switch req.Action {
	case "next":
		engine.Next()
	case "previous":
		engine.Previous()
	case "goto":
		if req.Index == nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"index": "index is required for goto"})
			return
		}
		engine.GoTo(*req.Index)
	}

	response.Success(c, http.StatusOK, engine.Snapshot())
}

// SubmitExam godoc
// POST /api/v1/sessions/:session_id/submit
// Manual submission. A failure can be retried with the same call.
func (h *ExamSessionHandler) SubmitExam(c *gin.Context) {
	result, err := getEngine(c).Submit(c.Request.Context())
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// LeaveSession godoc
// DELETE /api/v1/sessions/:session_id
// Stops the timer and discards in-memory state; the staged payload stays.
func (h *ExamSessionHandler) LeaveSession(c *gin.Context) {
	sessionID, fields := validator.BindSession(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Leave(sessionID); err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Session closed"})
}

// GetResult godoc
// GET /api/v1/sessions/:session_id/result
// Returns the final result once; later reads get RESULT_NOT_FOUND.
func (h *ExamSessionHandler) GetResult(c *gin.Context) {
	sessionID, fields := validator.BindSession(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.TakeResult(c.Request.Context(), sessionID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// failFromError maps engine errors onto response codes.
func (h *ExamSessionHandler) failFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, model.ErrSessionCorrupt):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrSessionCorrupt)
	case errors.Is(err, model.ErrSessionNotActive):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
	case errors.Is(err, model.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case errors.Is(err, model.ErrUnknownOption):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownOption)
	case errors.Is(err, model.ErrNoAnswerLetter):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoAnswerLetter)
	case errors.Is(err, model.ErrSubmissionInFlight):
		response.Fail(c, http.StatusConflict, response.ErrSubmissionInProgress)
	case errors.Is(err, model.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, model.ErrSubmissionLocked):
		response.Fail(c, http.StatusConflict, response.ErrSubmissionLocked)
	case errors.Is(err, model.ErrSubmissionFailed):
		// Only manual submissions reach this handler, and those stay retryable.
		response.FailRetryable(c, http.StatusBadGateway, response.ErrSubmissionFailed, true)
	case errors.Is(err, model.ErrResultNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled session error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
