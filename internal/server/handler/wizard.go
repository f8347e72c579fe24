package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/present"
	"github.com/alanyoungcy/liqguard/internal/service"
	"github.com/alanyoungcy/liqguard/internal/wizard"
)

// DefaultMaxUpload bounds evidence uploads.
const DefaultMaxUpload int64 = 2 << 20

// WizardService is what the wizard handler needs from the service layer.
type WizardService interface {
	Create(ctx context.Context, address string) (*service.Live, error)
	Resume(ctx context.Context, id string) (*service.Live, error)
	View(id, lang string) (present.View, error)
	Dispatch(id string, a wizard.Action) (wizard.State, error)
	Upload(id, fileName string, data []byte) (wizard.State, error)
	ClearEvidence(id string) (wizard.State, error)
	Submit(ctx context.Context, id string) (wizard.State, error)
	Challenge(ctx context.Context, id, address string) (domain.AuthChallenge, error)
	CompleteSignIn(ctx context.Context, id, address, signature, nonce string) (domain.AuthState, error)
	SignIn(ctx context.Context, id string) (domain.AuthState, error)
	WalletChanged(id, address string, chainChanged bool) (domain.AuthState, error)
	Close(id string) error
}

// WizardHandler serves the wizard session endpoints. Every mutating call
// answers with the rendered view of the resulting state.
type WizardHandler struct {
	wizards   WizardService
	maxUpload int64
	logger    *slog.Logger
}

// NewWizardHandler creates a WizardHandler. A maxUpload of zero means
// DefaultMaxUpload.
func NewWizardHandler(wizards WizardService, maxUpload int64, logger *slog.Logger) *WizardHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &WizardHandler{wizards: wizards, maxUpload: maxUpload, logger: logger}
}

type createRequest struct {
	Address string `json:"address"`
}

// Create opens a wizard session.
// POST /api/wizards
func (h *WizardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	live, err := h.wizards.Create(r.Context(), req.Address)
	if err != nil {
		h.fail(w, r, "create wizard", err)
		return
	}
	id := live.Wizard.ID()
	w.Header().Set("Location", "/api/wizards/"+id)
	writeJSON(w, http.StatusCreated, present.New(language(r)).View(id, live.Wizard.State()))
}

// Resume reopens a wizard whose in-memory session expired, restoring any
// persisted sign-in.
// POST /api/wizards/{id}/resume
func (h *WizardHandler) Resume(w http.ResponseWriter, r *http.Request) {
	live, err := h.wizards.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "resume wizard", err)
		return
	}
	h.writeView(w, r, live.Wizard.ID(), live.Wizard.State())
}

// Get renders a wizard.
// GET /api/wizards/{id}
func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.wizards.View(r.PathValue("id"), language(r))
	if err != nil {
		h.fail(w, r, "get wizard", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete closes a wizard.
// DELETE /api/wizards/{id}
func (h *WizardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.wizards.Close(r.PathValue("id")); err != nil {
		h.fail(w, r, "close wizard", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type actionRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Action applies one selection edit.
// POST /api/wizards/{id}/actions {"type":"set_pair","value":"BTC-USDT-SWAP"}
func (h *WizardHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	action, err := service.ParseAction(req.Type, req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Type))
		return
	}
	id := r.PathValue("id")
	st, err := h.wizards.Dispatch(id, action)
	if err != nil {
		h.fail(w, r, "dispatch action", err)
		return
	}
	h.writeView(w, r, id, st)
}

// UploadEvidence accepts an evidence file as a multipart "file" field or as
// the raw request body (name from ?name=).
// PUT /api/wizards/{id}/evidence
func (h *WizardHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	name, data, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "evidence file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read evidence file")
		return
	}

	id := r.PathValue("id")
	st, err := h.wizards.Upload(id, name, data)
	if err != nil {
		h.fail(w, r, "upload evidence", err)
		return
	}
	h.writeView(w, r, id, st)
}

func readUpload(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		return baseName(header.Filename), data, err
	}
	data, err := io.ReadAll(r.Body)
	return baseName(r.URL.Query().Get("name")), data, err
}

// baseName strips any client-supplied directory from a file name.
func baseName(name string) string {
	if name == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// ClearEvidence discards the wizard's evidence.
// DELETE /api/wizards/{id}/evidence
func (h *WizardHandler) ClearEvidence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := h.wizards.ClearEvidence(id)
	if err != nil {
		h.fail(w, r, "clear evidence", err)
		return
	}
	h.writeView(w, r, id, st)
}

// Submit sends the verification request. Outcomes, failures included, are
// part of the returned view; an unknown wizard is a 404 and a rate-limited
// submission a 429.
// POST /api/wizards/{id}/submit
func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := h.wizards.Submit(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrRateLimited) {
		h.fail(w, r, "submit", err)
		return
	}
	h.writeView(w, r, id, st)
}

type challengeRequest struct {
	Address string `json:"address"`
}

// Challenge starts a browser-wallet sign-in.
// POST /api/wizards/{id}/challenge {"address":"0x..."}
func (h *WizardHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Address == "" {
		writeError(w, http.StatusBadRequest, "address required")
		return
	}
	challenge, err := h.wizards.Challenge(r.Context(), r.PathValue("id"), req.Address)
	if err != nil {
		h.fail(w, r, "sign-in challenge", err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

type signInRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

type authResponse struct {
	Address   string     `json:"address,omitempty"`
	SignedIn  bool       `json:"signed_in"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SignIn completes a browser-wallet sign-in, or signs in with the server
// wallet when the body carries no signature.
// POST /api/wizards/{id}/signin
func (h *WizardHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	id := r.PathValue("id")
	var (
		st  domain.AuthState
		err error
	)
	if req.Signature != "" {
		st, err = h.wizards.CompleteSignIn(r.Context(), id, req.Address, req.Signature, req.Nonce)
	} else {
		st, err = h.wizards.SignIn(r.Context(), id)
	}
	if err != nil {
		h.fail(w, r, "sign in", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Address:   st.Address,
		SignedIn:  st.TokenValid(time.Now()),
		ExpiresAt: st.TokenExpiresAt,
	})
}

type walletEventRequest struct {
	Address      string `json:"address"`
	ChainChanged bool   `json:"chain_changed"`
}

// WalletChanged relays an account or chain switch from the browser wallet.
// POST /api/wizards/{id}/wallet {"address":"0x...","chain_changed":false}
func (h *WizardHandler) WalletChanged(w http.ResponseWriter, r *http.Request) {
	var req walletEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	st, err := h.wizards.WalletChanged(r.PathValue("id"), req.Address, req.ChainChanged)
	if err != nil {
		h.fail(w, r, "wallet event", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Address:   st.Address,
		SignedIn:  st.TokenValid(time.Now()),
		ExpiresAt: st.TokenExpiresAt,
	})
}

func (h *WizardHandler) writeView(w http.ResponseWriter, r *http.Request, id string, st wizard.State) {
	writeJSON(w, http.StatusOK, present.New(language(r)).View(id, st))
}

func (h *WizardHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("wizard_id", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, http.StatusText(status))
}
