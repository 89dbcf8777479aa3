package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/types"
	"palmledger/internal/domain/reports"
	"palmledger/internal/infrastructure/export"
	"palmledger/internal/infrastructure/http/v1/dto"
)

// ReportService computes reports.
type ReportService interface {
	NetPosition(ctx context.Context, filter reports.NetPositionFilter) (*reports.NetPositionReport, error)
}

var _ ReportService = (*reports.Service)(nil)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service     ReportService
	companyName string
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service ReportService, companyName string) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
		companyName: companyName,
	}
}

// NetPosition handles GET /reports/net-position
func (h *ReportsHandler) NetPosition(c *gin.Context) {
	report, _, ok := h.netPosition(c)
	if !ok {
		return
	}
	h.OK(c, report)
}

// ExportNetPosition handles GET /reports/net-position/export?format=csv|xlsx|pdf&table=
func (h *ReportsHandler) ExportNetPosition(c *gin.Context) {
	report, q, ok := h.netPosition(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(q.Format)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc := reports.NetPositionDocument(report, h.companyName)
	file, err := export.Render(doc, format, exportBaseName(report.Filter), q.Table)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Attachment(c, file)
}

func (h *ReportsHandler) netPosition(c *gin.Context) (*reports.NetPositionReport, *dto.NetPositionQuery, bool) {
	var q dto.NetPositionQuery
	if !h.BindQuery(c, &q) {
		return nil, nil, false
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return nil, nil, false
	}

	report, err := h.service.NetPosition(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return nil, nil, false
	}
	return report, &q, true
}

// exportBaseName is net-position, suffixed with the period bounds that are set.
func exportBaseName(f reports.NetPositionFilter) string {
	name := "net-position"
	if !f.From.IsZero() {
		name += "-" + f.From.Format(types.DateLayout)
	}
	if !f.To.IsZero() {
		name += "-" + f.To.Format(types.DateLayout)
	}
	return name
}
