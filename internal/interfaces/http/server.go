package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/tradebot-network/tradebot-daemon/internal/core/application/session"
	"github.com/tradebot-network/tradebot-daemon/internal/core/application/trade"
	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
)

// Server exposes the operator control surface of the daemon: trade dispatch,
// session inspection, health and metrics.
type Server struct {
	sessions *session.Service
	trades   *trade.Service
	port     int
}

func NewServer(
	sessions *session.Service, trades *trade.Service, port int,
) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("missing session service")
	}
	if trades == nil {
		return nil, fmt.Errorf("missing trade service")
	}
	return &Server{sessions: sessions, trades: trades, port: port}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/trades", s.handleSendTrade)
		v1.Get("/accounts", s.handleListAccounts)
	})

	return r
}

// ListenAndServe runs the HTTP interface until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		// nolint:errcheck
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSendTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetID    string `json:"asset_id"`
		MarketName string `json:"market_name"`
		TradeURL   string `json:"trade_url"`
		UserID     int64  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AssetID == "" || req.TradeURL == "" || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "missing asset id, trade url or user id")
		return
	}

	item := domain.TradeItem{AssetID: req.AssetID, MarketName: req.MarketName}

	// fail fast on unknown accounts, then run the pipeline detached: sending
	// and confirming can take minutes under retry
	if _, ok := s.sessions.ManagerByUserID(req.UserID); !ok {
		writeError(w, http.StatusNotFound, domain.ErrUnknownAccount.Error())
		return
	}

	go func() {
		outcome, err := s.trades.SendOffer(
			context.Background(), item, req.TradeURL, req.UserID,
		)
		if err != nil {
			log.WithError(err).Warn("trade dispatch failed")
			return
		}
		log.Debugf(
			"trade for asset %s ended with outcome %s", item.AssetID, outcome.Code,
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "dispatched",
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, _ *http.Request) {
	sessions := s.sessions.ListSessions()
	list := make([]map[string]interface{}, 0, len(sessions))
	for _, info := range sessions {
		list = append(list, map[string]interface{}{
			"account_name":  info.AccountName,
			"user_id":       info.UserID,
			"status":        info.Status.String(),
			"accept_offers": info.AcceptOffers,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": list})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint:errcheck
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
