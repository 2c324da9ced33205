package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sbiochat/dashboard/internal/logger"
	"github.com/sbiochat/dashboard/internal/stats"
)

const statsDefaultLimit = 20

// dateFormat is the wire format for from/to query parameters.
const dateFormat = "2006-01-02"

// parsePageParams reads offset/limit query parameters. Absent parameters
// take defaults; malformed or out-of-range values reject the request.
func parsePageParams(r *http.Request, defaultLimit int) (stats.PageParams, error) {
	p := stats.PageParams{Offset: 0, Limit: defaultLimit}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, &stats.RangeError{Param: "offset", Reason: "must be an integer"}
		}
		p.Offset = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, &stats.RangeError{Param: "limit", Reason: "must be an integer"}
		}
		p.Limit = v
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// respondStatsError maps store failures to wire errors. Validation problems
// surface as 400 invalid_range; anything else is a 500 from the database.
func respondStatsError(w http.ResponseWriter, r *http.Request, err error) {
	var rangeErr *stats.RangeError
	if errors.As(err, &rangeErr) {
		respondError(w, http.StatusBadRequest, "invalid_range", rangeErr.Error())
		return
	}
	logger.Ctx(r.Context()).Error("stats query failed", "error", err)
	respondError(w, http.StatusInternalServerError, "store_unavailable", "failed to query statistics")
}

// cacheStats marks a stats response as briefly cacheable. Aggregates move
// slowly, so shared caches may hold them for a minute.
func cacheStats(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "public, max-age=60")
}

func (s *Server) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.stats.GetOverview(r.Context())
	if err != nil {
		respondStatsError(w, r, err)
		return
	}
	cacheStats(w)
	respondJSON(w, http.StatusOK, overview)
}

// parseDailyRange resolves the from/to query parameters. to defaults to
// today in the server's calendar; from defaults to the trailing 30-day
// window ending at to, so a past to without a from asks for the 30 days
// leading up to it.
func (s *Server) parseDailyRange(r *http.Request, now time.Time) (from, to time.Time, err error) {
	from, to = s.stats.DefaultDailyRange(now)

	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.ParseInLocation(dateFormat, raw, s.loc)
		if err != nil {
			return from, to, &stats.RangeError{Param: "to", Reason: "must be YYYY-MM-DD"}
		}
		// The default window trails the effective end date, not today.
		from = to.AddDate(0, 0, -29)
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.ParseInLocation(dateFormat, raw, s.loc)
		if err != nil {
			return from, to, &stats.RangeError{Param: "from", Reason: "must be YYYY-MM-DD"}
		}
	}

	if err := stats.ValidateDateRange(from, to); err != nil {
		return from, to, err
	}
	return from, to, nil
}

func (s *Server) handleStatsDaily(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseDailyRange(r, time.Now())
	if err != nil {
		respondStatsError(w, r, err)
		return
	}

	points, err := s.stats.GetDaily(r.Context(), from, to)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}
	cacheStats(w)
	respondJSON(w, http.StatusOK, map[string]any{
		"from":   from.Format(dateFormat),
		"to":     to.Format(dateFormat),
		"points": points,
	})
}

func (s *Server) handleWorkspaceRanking(w http.ResponseWriter, r *http.Request) {
	p, err := parsePageParams(r, statsDefaultLimit)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}

	page, err := s.stats.GetWorkspaceRanking(r.Context(), p)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}
	cacheStats(w)
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleDeveloperRanking(w http.ResponseWriter, r *http.Request) {
	p, err := parsePageParams(r, statsDefaultLimit)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}

	page, err := s.stats.GetDeveloperRanking(r.Context(), p)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}
	cacheStats(w)
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGroupRanking(w http.ResponseWriter, r *http.Request) {
	p, err := parsePageParams(r, statsDefaultLimit)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}

	page, err := s.stats.GetGroupRanking(r.Context(), p)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}
	cacheStats(w)
	respondJSON(w, http.StatusOK, page)
}
