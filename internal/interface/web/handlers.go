package web

import (
	"net/http"
	"strings"

	"github.com/cityofzion/faucetd/internal/core/application"
	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type handler struct {
	svc application.Service
}

func newHandler(svc application.Service) *handler {
	return &handler{svc: svc}
}

type indexView struct {
	Status   *application.Status
	Error    string
	Addr     string
	ComeBack bool
}

type successView struct {
	Txid string
	JSON string
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, "", "")
}

func (h *handler) ask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderIndex(w, r, http.StatusBadRequest, "Could not read the submitted form.", "")
		return
	}

	addr := strings.TrimSpace(r.FormValue("coz_addr"))
	req := domain.NewClaimRequest(
		addr,
		clientKey(r),
		r.FormValue("do_agree") == "on",
	)

	if _, err := h.svc.Claim(r.Context(), req); err != nil {
		typedErr, ok := err.(errors.Error)
		if !ok {
			claimsTotal.WithLabelValues("internal_error").Inc()
			log.WithError(err).Error("claim failed")
			h.renderIndex(w, r, http.StatusInternalServerError,
				"Could not process your request. Try again later.", addr)
			return
		}

		claimsTotal.WithLabelValues(strings.ToLower(typedErr.CodeName())).Inc()
		typedErr.Log().Debug("claim refused")
		h.renderIndex(w, r, typedErr.HTTPStatus(), userMessage(typedErr), addr)
		return
	}

	claimsTotal.WithLabelValues("ok").Inc()
	http.Redirect(w, r, "/success", http.StatusSeeOther)
}

func (h *handler) success(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.TakeResult(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to fetch disbursement result")
		http.Error(w, http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)
		return
	}
	// Nothing pending: the slot was already consumed or never filled.
	if tx == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	txJSON, err := tx.JSON()
	if err != nil {
		log.WithError(err).Error("failed to render disbursement result")
		http.Error(w, http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)
		return
	}

	if err := templates.ExecuteTemplate(w, "success.html", successView{
		Txid: tx.ID,
		JSON: txJSON,
	}); err != nil {
		log.WithError(err).Error("failed to render success page")
	}
}

func (h *handler) about(w http.ResponseWriter, r *http.Request) {
	if err := templates.ExecuteTemplate(w, "about.html", nil); err != nil {
		log.WithError(err).Error("failed to render about page")
	}
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	// nolint
	w.Write([]byte("ok"))
}

func (h *handler) renderIndex(
	w http.ResponseWriter, r *http.Request, statusCode int, errMsg, addr string,
) {
	view := indexView{
		Error:    errMsg,
		Addr:     addr,
		ComeBack: r.URL.Path == "/index.html",
	}

	status, err := h.svc.GetStatus(r.Context())
	if err != nil {
		log.WithError(err).Warn("failed to fetch faucet status")
		if view.Error == "" {
			view.Error = "The faucet is temporarily unavailable. Try again later."
		}
	} else {
		view.Status = status
		observeStatus(status)
		if status.LowFunds() {
			log.Warn("faucet balances no longer cover the drip amounts")
		}
	}

	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	if err := templates.ExecuteTemplate(w, "index.html", view); err != nil {
		log.WithError(err).Error("failed to render index page")
	}
}

func userMessage(err errors.Error) string {
	md := err.Metadata()
	switch err.Code() {
	case errors.INVALID_INPUT.Code:
		if md["field"] == "agreement" {
			return "You must agree to the guidelines to proceed."
		}
		return "The address provided is not valid."
	case errors.RATE_LIMITED.Code:
		if md["by"] == "address" {
			return "Already requested today. Come back tomorrow."
		}
		return "Too many requests today. Come back tomorrow."
	case errors.INSUFFICIENT_FUNDS.Code:
		return "The faucet is running low on funds. Try again later."
	case errors.INCOMPLETE_SIGNATURE.Code:
		return "The transaction signature is incomplete. The transfer was discarded, try again later."
	case errors.WALLET_UNAVAILABLE.Code, errors.RELAY_FAILURE.Code:
		return "The faucet could not complete the transfer. Try again later."
	default:
		return "Could not process your request. Try again later."
	}
}
