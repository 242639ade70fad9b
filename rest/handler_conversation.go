package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		respondWithError(w, http.StatusBadRequest, "user is required")
		return
	}
	conversations, err := s.store.ListConversations(r.Context(), user)
	if err != nil {
		logger.Error("error listing conversations", zap.String("user", user), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing conversations")
		return
	}
	respondWithJSON(w, http.StatusOK, conversations)
}

func (s *Server) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	user, conversationId, ok := conversationParams(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteConversation(r.Context(), user, conversationId); err != nil {
		logger.Error("error deleting conversation", zap.String("conversationId", conversationId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error deleting conversation")
		return
	}
	if err := s.store.DeleteMessages(r.Context(), conversationId); err != nil {
		logger.Error("error deleting conversation messages", zap.String("conversationId", conversationId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error deleting conversation")
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleRenameConversation(w http.ResponseWriter, r *http.Request) {
	user, conversationId, ok := conversationParams(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		respondWithError(w, http.StatusBadRequest, "name is required")
		return
	}
	defer r.Body.Close()
	s.updateConversation(w, r, user, conversationId, func(conv *model.Conversation) {
		conv.Title = body.Name
	})
}

func (s *Server) HandlePinConversation(w http.ResponseWriter, r *http.Request) {
	user, conversationId, ok := conversationParams(w, r)
	if !ok {
		return
	}
	var body struct {
		IsTop bool `json:"isTop"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	s.updateConversation(w, r, user, conversationId, func(conv *model.Conversation) {
		conv.IsTop = body.IsTop
	})
}

func (s *Server) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationId := mux.Vars(r)["conversationId"]
	limit := int64(20)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	messages, err := s.store.LatestMessages(r.Context(), conversationId, limit)
	if err != nil {
		logger.Error("error listing messages", zap.String("conversationId", conversationId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing messages")
		return
	}
	respondWithJSON(w, http.StatusOK, messages)
}

func (s *Server) updateConversation(w http.ResponseWriter, r *http.Request, user, conversationId string, mutate func(*model.Conversation)) {
	conv, err := s.store.GetConversation(r.Context(), user, conversationId)
	if err != nil {
		logger.Error("error loading conversation", zap.String("conversationId", conversationId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error loading conversation")
		return
	}
	if conv == nil {
		respondWithError(w, http.StatusBadRequest, "conversation does not exist")
		return
	}
	mutate(conv)
	conv.UpdatedAt = time.Now()
	if err := s.store.SaveConversation(r.Context(), *conv); err != nil {
		logger.Error("error updating conversation", zap.String("conversationId", conversationId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error updating conversation")
		return
	}
	respondOKWithoutBody(w)
}

func conversationParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	user := r.URL.Query().Get("user")
	if user == "" {
		respondWithError(w, http.StatusBadRequest, "user is required")
		return "", "", false
	}
	return user, mux.Vars(r)["conversationId"], true
}
