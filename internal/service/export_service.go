package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/export"
)

// Statement export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type statementSource interface {
	Statement(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentStatement, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportFile is a rendered statement ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders enrollment account statements.
type ExportService struct {
	statements statementSource
	csv        documentRenderer
	pdf        documentRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(statements statementSource, csv, pdf documentRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{statements: statements, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Statement renders the account statement of an enrollment in the requested format.
func (s *ExportService) Statement(ctx context.Context, actor models.Actor, enrollmentID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatPDF
	}
	var (
		renderer    documentRenderer
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		renderer, contentType = s.csv, "text/csv"
	case ExportFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unsupported export format"),
			map[string]interface{}{"format": format})
	}

	statement, err := s.statements.Statement(ctx, actor, enrollmentID)
	if err != nil {
		return nil, err
	}
	data, err := renderer.Render(statementDocument(statement, s.now().UTC()))
	if err != nil {
		s.logger.Error("failed to render statement", zap.String("enrollment_id", enrollmentID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	name := statement.Enrollment.StudentCarnet
	if name == "" {
		name = statement.Enrollment.ID
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("estado-cuenta-%s.%s", name, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func statementDocument(st *dto.EnrollmentStatement, generatedAt time.Time) export.Document {
	e := st.Enrollment
	fields := []export.Field{
		{Label: "Estudiante", Value: fmt.Sprintf("%s (%s)", e.StudentName, e.StudentCarnet)},
		{Label: "Curso", Value: e.CourseName},
		{Label: "Estado", Value: string(e.Status)},
		{Label: "Precio base", Value: money(e.BaseCost)},
		{Label: "Descuento curso", Value: e.CourseDiscountPct.String() + "%"},
		{Label: "Descuento estudiante", Value: e.StudentDiscountPct.String() + "%"},
		{Label: "Precio final", Value: money(e.FinalPrice)},
		{Label: "Ajustes", Value: money(e.AdjustmentsTotal)},
		{Label: "Total a pagar", Value: money(e.TotalDue)},
		{Label: "Total pagado", Value: money(e.TotalPaid)},
		{Label: "Saldo pendiente", Value: money(e.BalanceDue)},
		{Label: "Generado", Value: generatedAt.Format("2006-01-02 15:04 MST")},
	}

	schedule := export.Dataset{Headers: []string{"Concepto", "Monto", "Estado"}}
	for _, item := range st.Schedule {
		schedule.Rows = append(schedule.Rows, map[string]string{
			"Concepto": item.Concept,
			"Monto":    money(item.Amount),
			"Estado":   item.Status,
		})
	}

	payments := export.Dataset{Headers: []string{"Fecha", "Concepto", "Transacción", "Monto", "Estado"}}
	for _, p := range st.Payments {
		status := string(p.Status)
		if p.ReversalID != nil {
			status += " (revertido)"
		}
		payments.Rows = append(payments.Rows, map[string]string{
			"Fecha":       p.SubmittedAt.Format("2006-01-02"),
			"Concepto":    p.Concept,
			"Transacción": p.TransactionNumber,
			"Monto":       money(p.Amount),
			"Estado":      status,
		})
	}

	sections := []export.Section{
		{Title: "Plan de pagos", Dataset: schedule},
		{Title: "Pagos registrados", Dataset: payments},
	}
	if len(st.Adjustments) > 0 {
		adjustments := export.Dataset{Headers: []string{"Fecha", "Tipo", "Monto", "Motivo"}}
		for _, a := range st.Adjustments {
			adjustments.Rows = append(adjustments.Rows, map[string]string{
				"Fecha":  a.CreatedAt.Format("2006-01-02"),
				"Tipo":   string(a.Kind),
				"Monto":  money(a.Amount),
				"Motivo": a.Reason,
			})
		}
		sections = append(sections, export.Section{Title: "Ajustes", Dataset: adjustments})
	}
	if e.FinalGrade.Valid {
		fields = append(fields, export.Field{Label: "Nota final", Value: e.FinalGrade.Decimal.StringFixed(2)})
	}
	fields = append(fields, export.Field{Label: "Requisitos", Value: requisitoProgress(e.Requisitos)})

	return export.Document{Title: "Estado de cuenta", Fields: fields, Sections: sections}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(models.MoneyScale)
}

func requisitoProgress(reqs models.Requisitos) string {
	approved := 0
	for _, r := range reqs {
		if r.Status == models.RequisitoAprobado {
			approved++
		}
	}
	return strconv.Itoa(approved) + "/" + strconv.Itoa(len(reqs)) + " aprobados"
}
