package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sipeed/picobridge/internal/logger"
	"github.com/sipeed/picobridge/internal/oracle"
	"github.com/sipeed/picobridge/internal/registry"
)

type registerBody struct {
	Captcha          string `json:"captcha"`
	UseVoice         bool   `json:"use_voice"`
	OwnershipSecret  string `json:"ownership_secret"`
	Model            string `json:"model"`
	SystemPrompt     string `json:"system_prompt"`
	Username         string `json:"username"`
	Description      string `json:"description"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	if err := s.rlGlobal.Check("register"); err != nil {
		writeRateLimited(w, err)
		return
	}
	if err := s.rlPerNumber.Check(number); err != nil {
		writeRateLimited(w, err)
		return
	}

	var body registerBody
	decodeBodyIgnoringAbsence(r, &body)

	decision, err := s.registry.Claim(r.Context(), number, registry.ClaimRequest{
		OwnershipSecret:      body.OwnershipSecret,
		ModelID:              body.Model,
		SystemPromptOverride: body.SystemPrompt,
		Username:             body.Username,
		Description:          body.Description,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_phone_number", err.Error())
		return
	}

	if decision.OK() {
		if err := s.transport.RegisterNumber(r.Context(), number, body.UseVoice, body.Captcha); err != nil {
			logger.WarnCF("httpapi", "register_number passthrough failed", map[string]interface{}{"number": number, "error": err.Error()})
		}
	}

	writeJSON(w, statusForDecision(decision.Kind), decisionBody(decision))
}

type verifyBody struct {
	Pin             string `json:"pin"`
	OwnershipSecret string `json:"ownership_secret"`
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	code := r.PathValue("code")

	var body verifyBody
	decodeBodyIgnoringAbsence(r, &body)

	decision, err := s.registry.Verify(r.Context(), number, registry.VerifyRequest{OwnershipSecret: body.OwnershipSecret})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_phone_number", err.Error())
		return
	}

	if decision.OK() {
		if err := s.transport.VerifyCode(r.Context(), number, code, body.Pin); err != nil {
			logger.WarnCF("httpapi", "verify_code passthrough failed", map[string]interface{}{"number": number, "error": err.Error()})
		}
		if decision.Record.Username != "" {
			if err := s.transport.SetUsername(r.Context(), number, decision.Record.Username); err != nil {
				logger.WarnCF("httpapi", "set_username passthrough failed", map[string]interface{}{"number": number, "error": err.Error()})
			}
		}
	}

	writeJSON(w, statusForDecision(decision.Kind), decisionBody(decision))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	rec, ok := s.registry.Lookup(number)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no registration for this number")
		return
	}
	writeJSON(w, http.StatusOK, publicRecord(rec))
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	out := make([]map[string]interface{}, 0, len(snap))
	for _, rec := range snap {
		out = append(out, publicRecord(rec))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": out})
}

func (s *Server) handleBots(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()

	// Enrich with the identity-key fingerprint from C7 when available
	// (spec §4.8); a failed or unreachable transport just means every
	// bot's fingerprint stays empty, not a failed request.
	fingerprints := make(map[string]string)
	if accounts, err := s.transport.Accounts(r.Context()); err != nil {
		logger.WarnCF("httpapi", "could not fetch signal accounts for fingerprint enrichment", map[string]interface{}{"error": err.Error()})
	} else {
		for _, acc := range accounts {
			fingerprints[acc.Number] = acc.IdentityKeyFingerprint
		}
	}

	out := make([]map[string]interface{}, 0)
	for _, rec := range snap {
		if rec.Status != registry.StatusVerified {
			continue
		}
		if fp, ok := fingerprints[rec.PhoneNumber]; ok {
			rec.IdentityKeyFingerprint = fp
		}
		out = append(out, publicRecord(rec))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bots": out})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	var body struct {
		OwnershipSecret string `json:"ownership_secret"`
	}
	decodeBodyIgnoringAbsence(r, &body)

	decision, err := s.registry.Unregister(r.Context(), number, registry.MutateRequest{OwnershipSecret: body.OwnershipSecret})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persistence_failure", err.Error())
		return
	}
	writeJSON(w, statusForDecision(decision.Kind), decisionBody(decision))
}

func (s *Server) handleSetUsername(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	var body struct {
		Username        string `json:"username"`
		OwnershipSecret string `json:"ownership_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "could not parse request body")
		return
	}

	decision, err := s.registry.SetUsername(r.Context(), number, body.OwnershipSecret, body.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persistence_failure", err.Error())
		return
	}
	if decision.OK() {
		if err := s.transport.SetUsername(r.Context(), number, body.Username); err != nil {
			logger.WarnCF("httpapi", "set_username passthrough failed", map[string]interface{}{"number": number, "error": err.Error()})
		}
	}
	writeJSON(w, statusForDecision(decision.Kind), decisionBody(decision))
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	var body struct {
		Name            string `json:"name"`
		About           string `json:"about"`
		OwnershipSecret string `json:"ownership_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "could not parse request body")
		return
	}

	decision, err := s.registry.SetDescription(r.Context(), number, body.OwnershipSecret, body.About)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persistence_failure", err.Error())
		return
	}
	if decision.OK() {
		if err := s.transport.SetProfile(r.Context(), number, body.Name, body.About); err != nil {
			logger.WarnCF("httpapi", "set_profile passthrough failed", map[string]interface{}{"number": number, "error": err.Error()})
		}
	}
	writeJSON(w, statusForDecision(decision.Kind), decisionBody(decision))
}

func (s *Server) handleAttestation(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	if challenge == "" {
		writeError(w, http.StatusBadRequest, "missing_challenge", "challenge query parameter is required")
		return
	}

	reportData := oracle.BuildReportData([]byte(challenge))
	inTEE := s.oracle.InTEE(r.Context())

	resp := map[string]interface{}{
		"in_tee":      inTEE,
		"report_data": fmt.Sprintf("%x", reportData),
	}

	if !inTEE {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	appInfo, err := s.oracle.GetAppInfo(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "oracle_unreachable", err.Error())
		return
	}
	quote, err := s.oracle.GetQuote(r.Context(), reportData)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "oracle_unreachable", err.Error())
		return
	}

	resp["app_id"] = appInfo.AppID
	resp["compose_hash"] = appInfo.ComposeHash
	resp["tdx_quote_base64"] = base64Encode(quote.QuoteBytes)
	resp["verification_url"] = "https://ra-quote-explorer.phala.network/"
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"registry_count":    len(snap),
		"signal_api_healthy": s.transport.HealthCheck(r.Context()),
	})
}

func (s *Server) handleDebugForceUnregister(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	decision, err := s.registry.ForceUnregister(r.Context(), number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persistence_failure", err.Error())
		return
	}
	writeJSON(w, statusForDecision(decision.Kind), decisionBody(decision))
}

func (s *Server) handleDebugSignalAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.transport.Accounts(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "transport_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}
