package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var fl model.Flow
	if err := json.NewDecoder(r.Body).Decode(&fl); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if err := s.metadataService.SaveFlow(r.Context(), fl); err != nil {
		logger.Error("error creating flow", zap.Int64("flowId", fl.Id), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"created": true})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	flowId, err := pathInt64(r, "flowId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow id")
		return
	}
	_, record, err := s.metadataService.GetDefinition(r.Context(), flowId)
	if err != nil {
		logger.Info("flow does not exist", zap.Int64("flowId", flowId))
		respondWithError(w, http.StatusBadRequest, "flow does not exist")
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.metadataService.ListFlows(r.Context())
	if err != nil {
		logger.Error("error listing flows", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing flows")
		return
	}
	respondWithJSON(w, http.StatusOK, flows)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	flowId, err := pathInt64(r, "flowId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow id")
		return
	}
	if err := s.metadataService.DeleteFlow(r.Context(), flowId); err != nil {
		logger.Error("error deleting flow", zap.Int64("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error deleting flow")
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var provider model.LLMProvider
	if err := json.NewDecoder(r.Body).Decode(&provider); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if provider.PlatformName == "" {
		respondWithError(w, http.StatusBadRequest, "platformName is required")
		return
	}
	if err := s.store.SaveProvider(r.Context(), provider); err != nil {
		logger.Error("error creating provider", zap.Int64("providerId", provider.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error creating provider")
		return
	}
	respondOK(w, map[string]any{"created": true})
}

func (s *Server) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.store.ListProviders(r.Context())
	if err != nil {
		logger.Error("error listing providers", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing providers")
		return
	}
	// api keys never leave the server
	for i := range providers {
		providers[i].APIKey = ""
	}
	respondWithJSON(w, http.StatusOK, providers)
}

func (s *Server) HandleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	providerId, err := pathInt64(r, "providerId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	if err := s.store.DeleteProvider(r.Context(), providerId); err != nil {
		logger.Error("error deleting provider", zap.Int64("providerId", providerId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error deleting provider")
		return
	}
	respondOKWithoutBody(w)
}

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}
