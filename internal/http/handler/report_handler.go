package handler

import (
	"net/http"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/mapper"
	"github.com/garagedesk/workshop-api/internal/service"
	"go.uber.org/zap"
)

// ReportHandler serves the overrun report
type ReportHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// Overruns godoc
// @Summary Overrun report
// @Description Orders with a recorded overrun reason, newest report first, with the average delay, the completed-late count and the most frequent reasons
// @Tags Reports
// @Produce json
// @Success 200 {object} domain.OverrunReportResponse
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reports/overruns [get]
func (h *ReportHandler) Overruns(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportService.GetOverrunReport(r.Context())
	if err != nil {
		h.logger.Error("failed to build overrun report", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	rows := make([]domain.OverrunRowDTO, 0, len(report.Orders))
	for i := range report.Orders {
		rows = append(rows, mapper.ToOverrunRowDTO(&report.Orders[i]))
	}

	reasons := make([]domain.ReasonCountDTO, 0, len(report.TopReasons))
	for _, rc := range report.TopReasons {
		reasons = append(reasons, domain.ReasonCountDTO{
			Reason: rc.Reason,
			Count:  rc.Count,
		})
	}

	respondJSON(w, http.StatusOK, domain.OverrunReportResponse{
		Overruns:        rows,
		AvgDelayMinutes: report.AvgDelayMinutes,
		CompletedLate:   report.CompletedLate,
		TopReasons:      reasons,
	})
}
