package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"caratdash/api/logger"
	"caratdash/api/models"
	"caratdash/api/store"
	"caratdash/api/utils"
)

// Reports is the engine surface the handlers call. *store.ReportStore implements it.
type Reports interface {
	MediaAnalysis(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.MediaRow], error)
	ExitPages(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.ExitPageRow], error)
	BookingReferralPaths(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.AttributionSegment], error)
	UserSankey(ctx context.Context, f models.Filter) (models.DataEnvelope[models.NavigationGraph], error)
	BrowserDistribution(ctx context.Context, f models.Filter) (models.DataEnvelope[[]models.BrowserRow], error)
	AdwordsComparison(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.AdwordsComparisonRow], error)
	AdwordsBookingInfo(ctx context.Context, f models.Filter, p models.Paging) (models.TableEnvelope[models.AdwordsBookingRow], error)
}

type ReportHandlers struct {
	reports Reports
	log     *logger.Logger
}

func NewReportHandlers(r Reports, log *logger.Logger) *ReportHandlers {
	return &ReportHandlers{reports: r, log: log}
}

func (h *ReportHandlers) MediaAnalysis(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	resp, err := h.reports.MediaAnalysis(c.Request.Context(), f, parsePaging(c, store.DefaultLength))
	h.respond(c, "media-analysis", resp, err)
}

func (h *ReportHandlers) ExitPageTable(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	resp, err := h.reports.ExitPages(c.Request.Context(), f, parsePaging(c, store.DefaultLength))
	h.respond(c, "exit-page-table", resp, err)
}

func (h *ReportHandlers) BookingReferralPathTable(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	resp, err := h.reports.BookingReferralPaths(c.Request.Context(), f, parsePaging(c, store.DefaultJourneyLength))
	h.respond(c, "booking-referral-path-table", resp, err)
}

func (h *ReportHandlers) UserSankeyDiagram(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	resp, err := h.reports.UserSankey(c.Request.Context(), f)
	h.respond(c, "user-sankey-diagram", resp, err)
}

func (h *ReportHandlers) BrowserDistribution(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	resp, err := h.reports.BrowserDistribution(c.Request.Context(), f)
	h.respond(c, "browser-distribution", resp, err)
}

func (h *ReportHandlers) ReferralComparisonAdwordsGroup(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	resp, err := h.reports.AdwordsComparison(c.Request.Context(), f, parsePaging(c, store.DefaultLength))
	h.respond(c, "referral-comparison-table-adwords-group", resp, err)
}

func (h *ReportHandlers) BookingInfoAdwordsGroup(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	resp, err := h.reports.AdwordsBookingInfo(c.Request.Context(), f, parsePaging(c, store.DefaultLength))
	h.respond(c, "booking-info-table-adwords-group", resp, err)
}

func (h *ReportHandlers) respond(c *gin.Context, report string, body any, err error) {
	if err != nil {
		status := StatusFor(err)
		h.log.Error("report request failed", "report", report, "status", status, "error", err)
		c.JSON(status, gin.H{"error": "Failed to retrieve " + strings.ReplaceAll(report, "-", " ")})
		return
	}
	c.JSON(http.StatusOK, body)
}

// StatusFor maps engine error kinds to HTTP status codes.
func StatusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindConnection:
		return http.StatusServiceUnavailable
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case models.KindQuery:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func parseFilter(c *gin.Context) (models.Filter, bool) {
	domain := strings.TrimSpace(c.Query("domain"))
	if domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain query parameter is required (e.g. 'nissan')"})
		return models.Filter{}, false
	}

	from, err := utils.ParseDay("from", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Filter{}, false
	}
	to, err := utils.ParseDay("to", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Filter{}, false
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must not be before 'from'"})
		return models.Filter{}, false
	}

	return models.Filter{
		Domain: domain,
		From:   from,
		To:     to,
		Device: utils.ParseDevice(c.Query("device")),
		Cohort: utils.ParseCohort(c.Query("group")),
	}, true
}

func parsePaging(c *gin.Context, defaultLength int) models.Paging {
	start := utils.IntOrDefault(c.Query("start"), 0)
	return models.Paging{
		Draw:   utils.IntOrDefault(c.Query("draw"), 0),
		Start:  start,
		Length: utils.IntOrDefault(c.Query("length"), defaultLength),
	}
}
