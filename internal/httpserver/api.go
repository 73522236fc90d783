package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/radiusdt/game-ads/internal/ads"
	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

const maxEventBody = 16 << 10

// flexID accepts an ad id sent either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("adId must be a string or a number")
	}
	*f = flexID(n.String())
	return nil
}

// eventRequest is the body of /api/impression and /api/click (also served under /api/ads/). adType is
// accepted in place of type.
type eventRequest struct {
	AdID   flexID `json:"adId"`
	Type   string `json:"type"`
	AdType string `json:"adType"`
}

func (e eventRequest) adType() string {
	if e.Type != "" {
		return e.Type
	}
	return e.AdType
}

// ---- Ads ----

func (s *Server) handleListAds(typ string) http.HandlerFunc {
	t := models.AdType(typ)
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.adService.Available() {
			s.errorResponse(w, ads.ErrBackendUnavailable.Error(), http.StatusServiceUnavailable)
			return
		}
		s.jsonResponse(w, s.adService.List(r.Context(), t))
	}
}

func (s *Server) handleLegacyListAds(w http.ResponseWriter, r *http.Request) {
	t, err := models.ParseAdType(chi.URLParam(r, "type"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.adService.Available() {
		s.errorResponse(w, ads.ErrBackendUnavailable.Error(), http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]interface{}{"ads": s.adService.List(r.Context(), t)})
}

// ---- Events ----

func (s *Server) handleEvent(kind string) http.HandlerFunc {
	k := models.EventKind(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxEventBody)

		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}

		err := s.eventService.Record(r.Context(), req.adType(), strings.TrimSpace(string(req.AdID)), k)
		if err != nil {
			code, msg := serviceError(err)
			if code >= 500 {
				s.logger.Error("event not recorded", zap.String("kind", kind), zap.Error(err))
			}
			s.errorResponse(w, msg, code)
			return
		}

		s.jsonResponse(w, map[string]bool{"success": true})
	}
}

// ---- Metrics ----

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reportingService.Snapshot(r.Context())
	if err != nil {
		code, msg := serviceError(err)
		s.errorResponse(w, msg, code)
		return
	}
	s.jsonResponse(w, snap)
}
