package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/internal/analysis"
	"github.com/Hanishchow/Biocore-agent/internal/logging"
	"github.com/Hanishchow/Biocore-agent/internal/store"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 100
)

func (s *Server) handleBiocore(c *gin.Context) {
	log := requestLogger(c, s.log)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Warn("error reading request body", zap.Error(err))
		c.PureJSON(http.StatusBadRequest, errorBody("No JSON body received"))
		return
	}

	req, err := analysis.ParseRequest(body)
	if err != nil {
		s.fail(c, err)
		return
	}

	// Each outbound stage runs to its own timeout even if the caller goes away.
	ctx := logging.WithContext(context.WithoutCancel(c.Request.Context()), log)
	resp, err := s.analyzer.Run(ctx, req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.PureJSON(http.StatusOK, resp)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var vErr *analysis.ValidationError
	if errors.As(err, &vErr) {
		status = http.StatusBadRequest
	}

	requestLogger(c, s.log).Warn("biocore request failed", zap.Int("status", status), zap.Error(err))
	c.PureJSON(status, errorBody(err.Error()))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "BioCore agent running",
		"model":       s.analyzer.Model(),
		"api_key_set": s.analyzer.APIKeySet(),
	})
}

func (s *Server) handleGetReport(c *gin.Context) {
	a, err := s.reports.FindAnalysisBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("report not found"))
		return
	}
	if err != nil {
		requestLogger(c, s.log).Error("error loading report", zap.String("slug", c.Param("slug")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("could not load report"))
		return
	}
	c.PureJSON(http.StatusOK, a)
}

func (s *Server) handleListReports(c *gin.Context) {
	pdbID := analysis.NormalizePDBID(c.Query("pdb_id"))
	if !analysis.ValidPDBID(pdbID) {
		c.JSON(http.StatusBadRequest, errorBody("Provide a valid 4-char pdb_id e.g. 1EQG"))
		return
	}

	limit := defaultReportLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = min(n, maxReportLimit)
	}

	list, err := s.reports.ListAnalysesByPDBID(c.Request.Context(), pdbID, limit)
	if err != nil {
		requestLogger(c, s.log).Error("error listing reports", zap.String("pdb_id", pdbID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("could not list reports"))
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"status": "success", "reports": list})
}
