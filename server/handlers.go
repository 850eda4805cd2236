package server

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mesdiag/datacontext"
	"mesdiag/diagnosis"
	apperrors "mesdiag/server/errors"
	"mesdiag/server/middleware"
)

// analysisRequest тело запроса анализа. Обязательные поля зависят от измерения.
type analysisRequest struct {
	OperatorID  string `json:"operator_id"`
	BatchID     string `json:"batch_id"`
	NodeCode    string `json:"node_code"`
	BlockCode   string `json:"block_code"`
	DateFrom    string `json:"date_from"` // YYYY-MM-DD
	DateTo      string `json:"date_to"`   // YYYY-MM-DD
	WindowDays  int    `json:"window_days"`
	Date        string `json:"date"` // workshop: календарный день
	Granularity string `json:"granularity"`
}

// respondError единообразно отвечает ошибкой и пишет ее в лог
func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromDomain(err)
	LogError(c.Request.Context(), err, "запрос завершился ошибкой",
		"path", c.Request.URL.Path, "status", appErr.Code)

	c.JSON(appErr.Code, gin.H{
		"error":      appErr.Message,
		"request_id": middleware.RequestIDFromGin(c),
	})
}

// handleAnalysis POST /api/analysis/:dimension — диагностика по измерению.
// ?format=markdown|csv|excel отдает отчет в выбранном виде вместо JSON.
func (s *Server) handleAnalysis(c *gin.Context) {
	dimension := c.Param("dimension")

	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("некорректное тело запроса", err))
		return
	}

	filters, err := req.toFilters()
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := s.analyzer.Analyze(c.Request.Context(), dimension, filters)
	if err != nil {
		respondError(c, err)
		return
	}

	LogInfo(c.Request.Context(), "анализ выполнен",
		"dimension", dimension, "analysis_id", report.AnalysisID, "status", report.OverallStatus)

	switch format := diagnosis.ExportFormat(c.Query("format")); format {
	case "", diagnosis.FormatJSON:
		c.JSON(http.StatusOK, report)
	case diagnosis.FormatMarkdown:
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.ToMarkdown()))
	case diagnosis.FormatCSV, diagnosis.FormatExcel:
		s.serveReportFile(c, report, format)
	default:
		respondError(c, apperrors.NewValidationError("неизвестный формат: "+string(format), nil))
	}
}

// serveReportFile выгружает отчет во временный файл и отдает его вложением
func (s *Server) serveReportFile(c *gin.Context, report *diagnosis.Report, format diagnosis.ExportFormat) {
	ext := ".csv"
	contentType := "text/csv; charset=utf-8"
	if format == diagnosis.FormatExcel {
		ext = ".xlsx"
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	tmp, err := os.CreateTemp("", "report-*"+ext)
	if err != nil {
		respondError(c, apperrors.NewInternalError("не удалось подготовить выгрузку", err))
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := s.exporter.Export(report, tmp.Name(), format); err != nil {
		respondError(c, apperrors.NewInternalError("не удалось выгрузить отчет", err))
		return
	}

	c.Header("Content-Type", contentType)
	c.FileAttachment(tmp.Name(), "report_"+report.AnalysisID+ext)
}

// toFilters переводит строковые поля запроса в фильтры измерения
func (r analysisRequest) toFilters() (datacontext.Filters, error) {
	filters := datacontext.Filters{
		OperatorID:  r.OperatorID,
		BatchID:     r.BatchID,
		NodeCode:    r.NodeCode,
		BlockCode:   r.BlockCode,
		WindowDays:  r.WindowDays,
		Date:        r.Date,
		Granularity: r.Granularity,
	}

	if r.DateFrom != "" {
		from, err := time.Parse("2006-01-02", r.DateFrom)
		if err != nil {
			return filters, apperrors.NewValidationError("date_from должен быть в формате YYYY-MM-DD", err)
		}
		filters.DateFrom = &from
	}
	if r.DateTo != "" {
		to, err := time.Parse("2006-01-02", r.DateTo)
		if err != nil {
			return filters, apperrors.NewValidationError("date_to должен быть в формате YYYY-MM-DD", err)
		}
		filters.DateTo = &to
	}

	return filters, nil
}

// handleDimensions GET /api/analysis/dimensions — доступные измерения анализа
func (s *Server) handleDimensions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dimensions": s.registry.Dimensions()})
}

// handleGenerateInstructions POST /api/instructions/generate — суточный журнал
func (s *Server) handleGenerateInstructions(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	// Пустое тело допустимо: генерация на сегодня
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperrors.NewValidationError("некорректное тело запроса", err))
			return
		}
	}

	result, err := s.generator.GenerateDaily(c.Request.Context(), req.Date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleListInstructions GET /api/instructions?role=&target_date=&status=
func (s *Server) handleListInstructions(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		respondError(c, apperrors.NewValidationError("параметр role обязателен", nil))
		return
	}

	targetDate := c.Query("target_date")
	if targetDate == "" {
		targetDate = time.Now().UTC().Format("2006-01-02")
	}

	instructions, err := s.db.InstructionsByRole(role, targetDate, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role":         role,
		"target_date":  targetDate,
		"total":        len(instructions),
		"instructions": instructions,
	})
}

// handleExportInstructions GET /api/instructions/export?role=&target_date= —
// суточный журнал роли книгой Excel
func (s *Server) handleExportInstructions(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		respondError(c, apperrors.NewValidationError("параметр role обязателен", nil))
		return
	}

	targetDate := c.Query("target_date")
	if targetDate == "" {
		targetDate = time.Now().UTC().Format("2006-01-02")
	}

	instructions, err := s.db.InstructionsByRole(role, targetDate, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	tmp, err := os.CreateTemp("", "instructions-*.xlsx")
	if err != nil {
		respondError(c, apperrors.NewInternalError("не удалось подготовить выгрузку", err))
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := s.exporter.ExportInstructions(instructions, tmp.Name()); err != nil {
		respondError(c, apperrors.NewInternalError("не удалось выгрузить журнал", err))
		return
	}

	c.FileAttachment(tmp.Name(), "instructions_"+targetDate+"_"+role+".xlsx")
}

// handleMarkRead POST /api/instructions/:id/read
func (s *Server) handleMarkRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.NewValidationError("идентификатор должен быть числом", err))
		return
	}

	if err := s.db.MarkInstructionRead(id); err != nil {
		respondError(c, apperrors.NewNotFoundError("указание не найдено", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": "Read"})
}

// handleMarkDone POST /api/instructions/:id/done
func (s *Server) handleMarkDone(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.NewValidationError("идентификатор должен быть числом", err))
		return
	}

	var req struct {
		Feedback string `json:"feedback"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperrors.NewValidationError("некорректное тело запроса", err))
			return
		}
	}

	if err := s.db.MarkInstructionDone(id, req.Feedback); err != nil {
		respondError(c, apperrors.NewNotFoundError("указание не найдено", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": "Done"})
}

// handleResetInstructions DELETE /api/instructions?target_date= — явный сброс журнала за дату
func (s *Server) handleResetInstructions(c *gin.Context) {
	targetDate := c.Query("target_date")
	if targetDate == "" {
		respondError(c, apperrors.NewValidationError("параметр target_date обязателен", nil))
		return
	}

	removed, err := s.db.ResetInstructions(targetDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"target_date": targetDate, "removed": removed})
}

// handleHealth GET /health — живость сервера и размер графа рисков
func (s *Server) handleHealth(c *gin.Context) {
	riskNodes, riskEdges, err := s.db.RiskGraphCounts()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"engine":     s.cfg.EngineMode,
		"dimensions": s.registry.Dimensions(),
		"risk_graph": gin.H{"nodes": riskNodes, "edges": riskEdges},
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
