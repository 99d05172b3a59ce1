// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/veracity/pkg/logging"
	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/metrics"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
	"github.com/AleutianAI/veracity/services/orchestrator/datatypes"
	"github.com/AleutianAI/veracity/services/orchestrator/jobs"
	"github.com/AleutianAI/veracity/services/orchestrator/sessions"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	log := logging.New(logging.Config{Quiet: true})
	engine, err := pipeline.NewEngine(pipeline.Config{}, metrics.NewCollector(10), log)
	require.NoError(t, err)
	return &Deps{
		Engine:    engine,
		Sessions:  sessions.NewManager(sessions.Config{}, nil, log),
		Jobs:      jobs.NewStore(),
		Collector: metrics.NewCollector(10),
		Log:       log,
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *Deps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(t)
	router := gin.New()
	router.POST("/v1/claims/extract", ExtractClaims(deps))
	router.POST("/v1/claims/detect-contradictions", DetectContradictions(deps))
	router.POST("/v1/validate-timeline", ValidateTimeline(deps))
	router.GET("/v1/ledger/:sessionId", GetLedger(deps))
	router.GET("/v1/verified-claims/:sessionId", GetVerifiedClaims(deps))
	router.GET("/v1/dashboard/:sessionId", GetDashboard(deps))
	router.GET("/v1/report/:sessionId", GetReport(deps))
	router.DELETE("/v1/sessions/:sessionId", DeleteSession(deps))
	router.GET("/v1/job/:jobId", GetJob(deps))
	router.GET("/health", HealthCheck)
	return router, deps
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func extractRequest() datatypes.ExtractRequest {
	quote := "revenue grew 12 percent in the third quarter"
	return datatypes.ExtractRequest{
		Sources: []datatypes.SourceUpload{
			{Name: "report.txt", Provider: "INTERNAL", Content: quote},
		},
		Documents: []pipeline.DocumentClaims{
			{DocumentName: "report.txt", Claims: []claim.RawClaim{{
				Text: "Revenue grew 12 percent.", ClaimType: "financial", Origin: "explicit",
				Confidence: 0.9, Quote: quote, StartChar: 0, EndChar: utf8.RuneCountInString(quote),
			}}},
		},
	}
}

func TestExtractClaims(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/v1/claims/extract", extractRequest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, resp.Result.Success)
	assert.Len(t, resp.Result.Verified, 1)
}

func TestExtractClaimsBadBody(t *testing.T) {
	router, _ := newTestRouter(t)
	w := postJSON(t, router, "/v1/claims/extract", gin.H{"documents": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractClaimsInvalidInput(t *testing.T) {
	router, _ := newTestRouter(t)

	req := extractRequest()
	// Explicit origin with no quote is rejected by extraction.
	req.Documents[0].Claims[0].Quote = ""
	w := postJSON(t, router, "/v1/claims/extract", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractClaimsUnknownSession(t *testing.T) {
	router, _ := newTestRouter(t)

	req := extractRequest()
	req.SessionID = "ghost"
	w := postJSON(t, router, "/v1/claims/extract", req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetectContradictions(t *testing.T) {
	router, _ := newTestRouter(t)

	quoteA := "the rollout takes 90 days"
	quoteB := "the rollout takes 30 days"
	req := datatypes.DetectRequest{
		Sources: []datatypes.SourceUpload{
			{Name: "plan.txt", Content: quoteA},
			{Name: "memo.txt", Content: quoteB},
		},
		Documents: []pipeline.DocumentClaims{
			{DocumentName: "plan.txt", Claims: []claim.RawClaim{{
				Text: "The rollout takes 90 days.", ClaimType: "duration", Origin: "explicit",
				Confidence: 0.9, Quote: quoteA, StartChar: 0, EndChar: utf8.RuneCountInString(quoteA),
			}}},
			{DocumentName: "memo.txt", Claims: []claim.RawClaim{{
				Text: "The rollout takes 30 days.", ClaimType: "duration", Origin: "explicit",
				Confidence: 0.9, Quote: quoteB, StartChar: 0, EndChar: utf8.RuneCountInString(quoteB),
			}}},
		},
	}

	w := postJSON(t, router, "/v1/claims/detect-contradictions", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Claims)
	require.Len(t, resp.Contradictions, 1)
	assert.Equal(t, claim.ContradictionNumerical, resp.Contradictions[0].Type)
}

func TestSessionReports(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/v1/claims/extract", extractRequest())
	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := resp.SessionID

	t.Run("ledger", func(t *testing.T) {
		w := get(t, router, "/v1/ledger/"+id)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Ledger-Digest"))
		assert.Contains(t, w.Body.String(), `"claims"`)
	})

	t.Run("verified claims", func(t *testing.T) {
		w := get(t, router, "/v1/verified-claims/"+id)
		require.Equal(t, http.StatusOK, w.Code)
		var vc datatypes.VerifiedClaimsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vc))
		assert.Len(t, vc.Verified, 1)
		assert.Empty(t, vc.Disputed)
	})

	t.Run("dashboard", func(t *testing.T) {
		w := get(t, router, "/v1/dashboard/"+id)
		require.Equal(t, http.StatusOK, w.Code)
		var dash datatypes.DashboardResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
		assert.True(t, dash.Success)
		assert.Equal(t, 1, dash.Claims)
		assert.Equal(t, 1.0, dash.CitationCoverage)
	})

	t.Run("report", func(t *testing.T) {
		w := get(t, router, "/v1/report/"+id)
		require.Equal(t, http.StatusOK, w.Code)
		var rep datatypes.ReportResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
		assert.Len(t, rep.Digest, 64)
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+id, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		if got := get(t, router, "/v1/report/"+id); got.Code != http.StatusNotFound {
			t.Errorf("deleted session report = %d, want 404", got.Code)
		}
	})
}

func TestReportUnknownSession(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/v1/report/ghost").Code)
}

func TestReportBeforeValidation(t *testing.T) {
	router, deps := newTestRouter(t)
	s := deps.Sessions.Create(claim.SourceSet{})
	assert.Equal(t, http.StatusConflict, get(t, router, "/v1/report/"+s.ID).Code)
}

func TestValidateTimelineAsync(t *testing.T) {
	router, deps := newTestRouter(t)

	quote := "the migration phase takes 90 days"
	timeline := datatypes.TimelineRequest{Tasks: []*claim.TimelineTask{{
		ID: "t1", Name: "migration", Origin: claim.OriginExplicit, Confidence: 0.9,
		Duration: &claim.FieldValue{
			Value: "90 days", Confidence: 0.9, Origin: claim.OriginExplicit,
			Citations: []claim.Citation{{
				DocumentName: "plan.txt", StartChar: 0,
				EndChar: utf8.RuneCountInString(quote), ExactQuote: quote,
			}},
		},
	}}}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("timeline", "timeline.json")
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(part).Encode(timeline))
	doc, err := form.CreateFormFile("documents", "plan.txt")
	require.NoError(t, err)
	_, err = doc.Write([]byte(quote))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/validate-timeline", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted datatypes.JobAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)

	deps.Jobs.Wait()

	jw := get(t, router, "/v1/job/"+accepted.JobID)
	require.Equal(t, http.StatusOK, jw.Code)
	var job jobs.Job
	require.NoError(t, json.Unmarshal(jw.Body.Bytes(), &job))
	assert.Equal(t, jobs.StatusComplete, job.Status)
	assert.Equal(t, 1.0, job.Progress)
	require.NotNil(t, job.Result)
	assert.True(t, job.Result.Success)

	// The result also landed on the session.
	rw := get(t, router, "/v1/report/"+accepted.SessionID)
	assert.Equal(t, http.StatusOK, rw.Code)
}

func TestValidateTimelineRejectsMissingPart(t *testing.T) {
	router, _ := newTestRouter(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/validate-timeline", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobUnknown(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/v1/job/ghost").Code)
}
