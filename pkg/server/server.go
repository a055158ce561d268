package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/inclusion"
)

/*
Server exposes an inclusion.Service over HTTP. Every body is JSON.

	GET  /health       Server status and the hasher proofs are built with
	POST /prove/leaf   Prove leaves of a posted leaf set (ProveLeafRequest)
	POST /prove/tx     Prove a Bitcoin transaction in a block from the block source (ProveTxRequest)
	POST /verify       Verify a posted or stored proof (VerifyRequest)
	GET  /proofs       List stored proofs under ?root=

Errors come back as ErrorResponse. A proof that fails verification is not an error:
/verify answers 200 with valid=false and the computed root.
*/
type Server struct {
	service    *inclusion.Service
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates a server listening on port. Nothing is served until Start.
func NewServer(service *inclusion.Service, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/prove/leaf", s.handleProveLeaf)
	mux.HandleFunc("/prove/tx", s.handleProveTx)
	mux.HandleFunc("/verify", s.handleVerify)
	mux.HandleFunc("/proofs", s.handleListProofs)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves in the background
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "addr", s.httpServer.Addr, "error", err)
		}
	}()
	return nil
}

// Stop waits for in-flight requests until ctx is done
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
