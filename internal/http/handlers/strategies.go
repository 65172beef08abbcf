package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"reelforge/internal/strategy"
)

type strategyRequest struct {
	WebsiteURL  string `json:"website_url"`
	Description string `json:"description"`
}

type strategyResponse struct {
	Profile *strategy.CompanyProfile `json:"profile"`
	Plan    *strategy.Plan           `json:"plan"`
	Report  string                   `json:"report"`
}

// StrategiesCreate profiles the company from its website or the provided
// description, then plans per-platform content strategies.
func (a *App) StrategiesCreate(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	var (
		profile *strategy.CompanyProfile
		err     error
	)
	switch {
	case strings.TrimSpace(req.WebsiteURL) != "":
		profile, err = a.Profiler.FromURL(r.Context(), req.WebsiteURL)
	case strings.TrimSpace(req.Description) != "":
		profile, err = a.Profiler.FromDescription(r.Context(), req.Description)
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "website_url or description is required")
		return
	}
	if err != nil {
		a.failure(w, err)
		return
	}

	plan, err := a.Planner.Plan(r.Context(), strategy.PlanRequest{
		CompanyDescription: profile.CompanyDescription,
		TargetAudience:     profile.TargetAudience,
	})
	if err != nil {
		a.failure(w, err)
		return
	}

	a.json(w, http.StatusOK, strategyResponse{Profile: profile, Plan: plan, Report: plan.Report()})
}
