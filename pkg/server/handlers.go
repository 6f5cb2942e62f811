package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/efortin/vllm-toolparser/pkg/adapter"
	"github.com/efortin/vllm-toolparser/pkg/pythonic"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// ParseRequest is the body of POST /v1/parse
type ParseRequest struct {
	Text   string `json:"text"`
	Engine string `json:"engine,omitempty"`
}

// ParseResponse lists parsed calls in tagged form
type ParseResponse struct {
	Calls []toolcall.ToolCall `json:"calls"`
	Count int                 `json:"count"`
}

// ExtractRequest is the body of the extract endpoints
type ExtractRequest struct {
	Text string `json:"text"`
}

// ChunkRequest is the body of POST /v1/sessions/:id/chunks. With Snapshot
// set, Text is the whole output so far rather than a delta.
type ChunkRequest struct {
	Text     string `json:"text"`
	Snapshot bool   `json:"snapshot,omitempty"`
}

// SessionResponse identifies a streaming session
type SessionResponse struct {
	ID string `json:"id"`
}

// SessionState mirrors pythonic.State for JSON clients
type SessionState struct {
	Committed int    `json:"committed"`
	Retained  int    `json:"retained"`
	Trimmed   int    `json:"trimmed"`
	OpenDepth int    `json:"open_depth"`
	Marker    string `json:"marker"`
}

// CallsResponse carries the calls of a session step
type CallsResponse struct {
	Calls []toolcall.ToolCall `json:"calls"`
	State *SessionState       `json:"state,omitempty"`
}

func errorResponse(c *gin.Context, status int, errType string, err error) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": err.Error(),
			"type":    errType,
		},
	})
}

// HealthHandler reports liveness
func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ParseHandler parses text with the requested or configured engine
func (s *Server) ParseHandler(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	engine := s.cfg.Engine
	if req.Engine != "" {
		engine = req.Engine
	}
	kind, err := pythonic.ParseEngineKind(engine)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "unknown_engine", err)
		return
	}

	calls := s.parsers[kind].Parse(req.Text)
	c.JSON(http.StatusOK, ParseResponse{Calls: calls, Count: len(calls)})
}

// ExtractHandler returns calls in OpenAI tool_calls form
func (s *Server) ExtractHandler(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	c.JSON(http.StatusOK, s.extractor.ExtractToolCalls(req.Text))
}

// ExtractStreamHandler answers 501; clients stream through sessions instead
func (s *Server) ExtractStreamHandler(c *gin.Context) {
	_, err := s.extractor.ExtractToolCallsStreaming("", "", "", nil, nil, nil)
	if errors.Is(err, adapter.ErrUnsupported) {
		errorResponse(c, http.StatusNotImplemented, "unsupported_operation", err)
		return
	}
	errorResponse(c, http.StatusInternalServerError, "internal_error", err)
}

// CreateSessionHandler opens a streaming session
func (s *Server) CreateSessionHandler(c *gin.Context) {
	session := s.sessions.Create()
	if s.cfg.Debug {
		log.Printf("[SERVER] Session %s opened (%d live)", session.ID, s.sessions.Len())
	}
	c.JSON(http.StatusCreated, SessionResponse{ID: session.ID})
}

func (s *Server) session(c *gin.Context) (*Session, bool) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "session_not_found", err)
		return nil, false
	}
	return session, true
}

// ChunkHandler feeds a chunk to a session and returns the newly completed calls
func (s *Server) ChunkHandler(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req ChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	calls, err := session.Feed(req.Text, req.Snapshot)
	if err != nil {
		if errors.Is(err, pythonic.ErrInputContract) {
			errorResponse(c, http.StatusBadRequest, "input_contract", err)
			return
		}
		errorResponse(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	c.JSON(http.StatusOK, CallsResponse{Calls: calls})
}

// CallsHandler lists every call a session has released
func (s *Server) CallsHandler(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	calls, state := session.Calls()
	c.JSON(http.StatusOK, CallsResponse{
		Calls: calls,
		State: &SessionState{
			Committed: state.Committed,
			Retained:  state.Retained,
			Trimmed:   state.Trimmed,
			OpenDepth: state.OpenDepth,
			Marker:    state.Marker.String(),
		},
	})
}

// FinishHandler ends a session's stream and returns the pending calls
func (s *Server) FinishHandler(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, CallsResponse{Calls: session.Finish()})
}

// DeleteSessionHandler drops a session
func (s *Server) DeleteSessionHandler(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		errorResponse(c, http.StatusNotFound, "session_not_found", err)
		return
	}
	c.Status(http.StatusNoContent)
}
