package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/metadata"
	"github.com/superflowai/superflow/persistence"
	"github.com/superflowai/superflow/service"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	metadataService metadata.MetadataService
	runner          service.FlowRunner
	store           persistence.Storage
}

func NewServer(httpPort int, metadataService metadata.MetadataService, runner service.FlowRunner, store persistence.Storage) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		metadataService: metadataService,
		runner:          runner,
		store:           store,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/chat-messages/{flowId}", s.HandleChat).Methods(http.MethodPost)

	router.HandleFunc("/metadata/flow", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/metadata/flow", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/metadata/flow/{flowId}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/metadata/flow/{flowId}", s.HandleDeleteFlow).Methods(http.MethodDelete)

	router.HandleFunc("/metadata/provider", s.HandleCreateProvider).Methods(http.MethodPost)
	router.HandleFunc("/metadata/provider", s.HandleListProviders).Methods(http.MethodGet)
	router.HandleFunc("/metadata/provider/{providerId}", s.HandleDeleteProvider).Methods(http.MethodDelete)

	router.HandleFunc("/conversations", s.HandleListConversations).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{conversationId}", s.HandleDeleteConversation).Methods(http.MethodDelete)
	router.HandleFunc("/conversations/{conversationId}/name", s.HandleRenameConversation).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{conversationId}/pin", s.HandlePinConversation).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{conversationId}/messages", s.HandleListMessages).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	res, _ := json.Marshal(message)
	w.Write(res)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
