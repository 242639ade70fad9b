package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/model"
	"go.uber.org/zap"
)

// HandleChat runs one chat turn of a flow. In streaming mode the response is
// a server-sent event stream: workflow_started, message chunks as the reply
// node produces them, workflow_finished or error, then a [DONE] marker.
// In blocking mode the full answer is returned in one JSON body.
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	flowId, err := strconv.ParseInt(vars["flowId"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow id")
		return
	}
	var request model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if request.Query == "" {
		respondWithError(w, http.StatusBadRequest, "query is required")
		return
	}
	if request.User == "" {
		respondWithError(w, http.StatusBadRequest, "user is required")
		return
	}

	if request.ResponseMode == model.ResponseModeBlocking {
		s.chatBlocking(w, r, flowId, request)
		return
	}
	s.chatStreaming(w, r, flowId, request)
}

func (s *Server) chatBlocking(w http.ResponseWriter, r *http.Request, flowId int64, request model.ChatRequest) {
	result, err := s.runner.Run(r.Context(), flowId, request, nil)
	if err != nil {
		logger.Error("chat run failed", zap.Int64("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"conversationId": result.ConversationId,
		"flowInstanceId": result.FlowInstanceId,
		"answer":         result.Answer,
		"usage":          result.Usage,
	})
}

func (s *Server) chatStreaming(w http.ResponseWriter, r *http.Request, flowId int64, request model.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := &sseWriter{w: w, flusher: flusher}
	sse.sendEvent("workflow_started", map[string]any{
		"flowId":    flowId,
		"createdAt": time.Now().Unix(),
	})

	result, err := s.runner.Run(r.Context(), flowId, request, func(eventType, nodeId string, data string) error {
		if eventType != "message" {
			return nil
		}
		return sse.send(map[string]any{
			"event":     "message",
			"createdAt": time.Now().Unix(),
			"answer":    data,
			"metadata":  map[string]any{"node_id": nodeId},
		})
	})
	if err != nil {
		logger.Error("chat run failed", zap.Int64("flowId", flowId), zap.Error(err))
		sse.sendEvent("error", map[string]any{
			"flowId":    flowId,
			"error":     err.Error(),
			"createdAt": time.Now().Unix(),
		})
	} else {
		sse.sendEvent("workflow_finished", map[string]any{
			"conversationId": result.ConversationId,
			"flowInstanceId": result.FlowInstanceId,
			"usage":          result.Usage,
			"createdAt":      time.Now().Unix(),
		})
	}
	sse.sendDone()
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) sendEvent(eventType string, data any) {
	err := s.send(map[string]any{"event": eventType, "data": data})
	if err != nil {
		logger.Error("error writing sse event", zap.String("event", eventType), zap.Error(err))
	}
}

func (s *sseWriter) sendDone() {
	fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}
