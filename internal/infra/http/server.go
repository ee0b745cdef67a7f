package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lms-enrollment-engine/internal/config"
	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/infra/adapters/payment"
	"lms-enrollment-engine/internal/infra/logging"
	"lms-enrollment-engine/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// Server is the provider-facing webhook listener. It is deliberately tiny:
// verify, record, apply, ACK. The provider retries on anything but a 2xx, so
// the response code is part of the delivery contract.
type Server struct {
	cfg       *config.Config
	reconcile usecase.ReconcileUseCase
	log       *zerolog.Logger
	server    *http.Server
}

func NewServer(cfg *config.Config, reconcile usecase.ReconcileUseCase, logger *zerolog.Logger) *Server {
	return &Server{cfg: cfg, reconcile: reconcile, log: logger}
}

func (s *Server) Start() error {
	path := s.cfg.Webhook.Path
	if path == "" {
		path = "/webhook/payments"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handlePaymentWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Webhook.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", s.server.Addr).Str("path", path).Msg("webhook server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handlePaymentWebhook accepts one provider event per request.
//
// Responses:
//
//	400  malformed or badly signed; the provider must not retry
//	500  the event could not be durably recorded; the provider retries
//	200  recorded (and usually applied); duplicates and failed application
//	     also ACK, the sweeper and operators own what happens next
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Unreadable body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get(payment.WebhookSignatureHeader)
	if err := payment.VerifySignature(s.cfg.Provider.WebhookSecret, body, sig); err != nil {
		s.log.Warn().Msg("webhook signature rejected")
		http.Error(w, "Bad signature", http.StatusBadRequest)
		return
	}

	ev, err := payment.ParseWebhook(s.cfg.Provider.Name, body, time.Now())
	if err != nil {
		http.Error(w, "Malformed event", http.StatusBadRequest)
		return
	}
	ctx = logging.WithEventID(ctx, ev.EventID)

	if err := s.reconcile.Apply(ctx, ev); err != nil {
		// Only a failure to record is retryable. Application failures are
		// stored on the event row and ACKed; retrying the delivery would just
		// dedupe.
		if errors.Is(err, domain.ErrOperationFailed) {
			s.log.Error().Err(err).Str("event_id", ev.EventID).Msg("failed to record provider event")
			http.Error(w, "Event not recorded", http.StatusInternalServerError)
			return
		}
		s.log.Warn().Err(err).Str("event_id", ev.EventID).Msg("event recorded but not applied")
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"received":true}`)
}
