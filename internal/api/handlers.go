package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/common"
	"github.com/Noospaceio/v19/internal/features/posting"
	"github.com/Noospaceio/v19/internal/storage"
)

type walletRequest struct {
	Wallet string `json:"wallet"`
}

type postRequest struct {
	Wallet string `json:"wallet"`
	Text   string `json:"text"`
	Intent bool   `json:"intent"`
}

// handleHarvest — POST /api/harvest {wallet}.
func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req walletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "Missing wallet")
		return
	}

	if !s.deps.Remote.RemoteConfigured() {
		writeError(w, http.StatusOK, "remote store not configured; settle locally")
		return
	}

	res, err := s.deps.Harvest.Settle(r.Context(), wallet)
	if err != nil {
		log.WithError(err).WithField("wallet", wallet).Error("Ошибка сбора урожая через API")
		writeError(w, http.StatusInternalServerError, serverErrorMessage)
		return
	}

	writeOK(w, http.StatusOK, map[string]any{
		"awarded": res.Awarded,
		"balance": res.Balance,
		"receipt": res.Receipt,
	})
}

// handleCreatePost — POST /api/posts.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := s.deps.Posting.Post(r.Context(), posting.Request{
		Wallet:    req.Wallet,
		ContextID: strings.TrimSpace(r.Header.Get(headerSessionID)),
		Text:      req.Text,
		Intent:    req.Intent,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		OK bool `json:"ok"`
		*posting.Result
	}{OK: true, Result: res})
}

// handleListPosts — GET /api/posts?limit=N.
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit := storage.MaxPosts
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit должен быть числом")
			return
		}
		limit = n
	}

	posts, err := s.deps.Feed.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"posts": posts})
}

// handleResonate — POST /api/posts/{id}/resonate.
func (s *Server) handleResonate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Feed.Resonate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// handleSacrifice — POST /api/posts/{id}/sacrifice {wallet}.
func (s *Server) handleSacrifice(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	balance, err := s.deps.Feed.Sacrifice(r.Context(), strings.TrimSpace(req.Wallet), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"balance": balance})
}

// handleWallet — GET /api/wallets/{wallet}.
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if wallet == "" {
		writeServiceError(w, r, common.ErrWalletRequired)
		return
	}

	balance, err := s.deps.Ledger.Read(r.Context(), wallet, storage.FieldBalance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	unclaimed, err := s.deps.Ledger.Read(r.Context(), wallet, storage.FieldUnclaimed)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	farmed, err := s.deps.Feed.FarmedTotal(r.Context(), wallet)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, map[string]any{
		"wallet":    wallet,
		"balance":   balance,
		"unclaimed": unclaimed,
		"farmed":    farmed,
		"display":   common.FormatBalance(balance),
	})
}

// handleQuota — GET /api/quota.
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Posting.Status(r.Context(), strings.TrimSpace(r.Header.Get(headerSessionID)))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*posting.Status
	}{OK: true, Status: st})
}

// handleSweep — POST /api/admin/sweep.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.VerifyPassword(clientIP(r), r.Header.Get(headerAdminPassword)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, err := s.deps.Harvest.Sweep(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.WithField("client", clientIP(r)).Info("Пакетный сбор урожая запущен администратором")
	writeOK(w, http.StatusOK, map[string]any{"report": report})
}
