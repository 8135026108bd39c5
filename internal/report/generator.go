// Package report renders treatment analysis reports as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/miradorstack/water-ai/internal/models"
)

const (
	// DefaultTitle heads every report unless overridden.
	DefaultTitle = "Wastewater Treatment Report"
	// MaxSensorRows bounds the raw sensor table.
	MaxSensorRows = 50
	// MaxRecommendations bounds the summary recommendation list.
	MaxRecommendations = 5

	pageWidth = 180.0
	rowHeight = 7.0
)

type rgb struct{ r, g, b int }

var (
	titleColor     = rgb{30, 58, 138}
	headerColor    = rgb{59, 130, 246}
	primaryColor   = rgb{16, 185, 129}
	tertiaryColor  = rgb{245, 158, 11}
	rowShadeColor  = rgb{243, 244, 246}
	bodyTextColor  = rgb{17, 24, 39}
	headerTextTint = rgb{255, 255, 255}
)

// Input is everything a report can show. Nil sections are rendered as
// "not available" notes.
type Input struct {
	Prediction   *models.PredictionRecord
	Optimization *models.OptimizationResult
	Readings     []models.SensorReading
	SensorData   models.FeatureVector
}

// Generator renders reports.
type Generator struct {
	title string
	now   func() time.Time
}

// NewGenerator creates a generator. An empty title uses DefaultTitle.
func NewGenerator(title string) *Generator {
	if title == "" {
		title = DefaultTitle
	}
	return &Generator{title: title, now: time.Now}
}

// Render produces the PDF bytes for in.
func (g *Generator) Render(in Input) ([]byte, error) {
	generated := g.now().UTC()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(g.title, true)
	pdf.SetCreator("water-ai", true)
	pdf.SetCreationDate(generated)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("{nb}")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	w := &writer{pdf: pdf, tr: tr}
	w.cover(g.title, generated)
	w.summary(in)
	w.prediction(in.Prediction)
	w.treatment(in.Optimization)
	w.sensors(in.Readings, in.SensorData)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName builds the object name for a report generated at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("report_%s.pdf", t.UTC().Format("20060102_150405"))
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) cover(title string, generated time.Time) {
	pdf := w.pdf
	pdf.AddPage()
	pdf.Ln(60)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(titleColor.r, titleColor.g, titleColor.b)
	pdf.CellFormat(0, 14, w.tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(bodyTextColor.r, bodyTextColor.g, bodyTextColor.b)
	pdf.CellFormat(0, 10, "Industrial Wastewater Treatment Analysis", "", 1, "C", false, 0, "")
	pdf.Ln(20)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, "Generated on "+generated.Format("January 02, 2006 at 15:04 MST"), "", 1, "C", false, 0, "")
}

func (w *writer) summary(in Input) {
	w.section("Executive Summary")

	quality, contamination := 0.0, 0.0
	recovery, reuse := 0.0, "unknown"
	var steps []string
	switch {
	case in.Optimization != nil:
		quality, contamination = in.Optimization.QualityScore, in.Optimization.ContaminationIndex
	case in.Prediction != nil:
		quality, contamination = in.Prediction.QualityScore, in.Prediction.ContaminationIndex
	}
	if opt := in.Optimization; opt != nil {
		recovery = opt.ExpectedRecoveryPct
		reuse = string(opt.FinalReuse.ReuseType)
		steps = opt.ProcessSteps
	}

	w.table([]string{"Metric", "Value"}, [][]string{
		{"Quality Score", fmt.Sprintf("%.2f/100", quality)},
		{"Contamination Index", fmt.Sprintf("%.2f/100", contamination)},
		{"Expected Recovery", fmt.Sprintf("%.2f%%", recovery)},
		{"Reuse Type", reuse},
	}, []float64{90, 90}, headerColor)

	if len(steps) > 0 {
		w.subheading("Key Recommendations")
		if len(steps) > MaxRecommendations {
			steps = steps[:MaxRecommendations]
		}
		w.bullets(steps)
	}
	if in.Optimization != nil && len(in.Optimization.Advisories) > 0 {
		w.subheading("Advisories")
		w.bullets(in.Optimization.Advisories)
	}
}

func (w *writer) prediction(rec *models.PredictionRecord) {
	w.section("Model Prediction")
	if rec == nil {
		w.note("No prediction was supplied for this report.")
		return
	}
	w.table([]string{"Field", "Value"}, [][]string{
		{"Prediction ID", rec.ID},
		{"Model Name", rec.ModelName},
		{"Quality Score", fmt.Sprintf("%.2f/100", rec.QualityScore)},
		{"Contamination Index", fmt.Sprintf("%.2f/100", rec.ContaminationIndex)},
		{"Confidence", fmt.Sprintf("%.2f%%", rec.Confidence*100)},
		{"Timestamp", formatTime(rec.Timestamp)},
	}, []float64{90, 90}, headerColor)
}

func (w *writer) treatment(opt *models.OptimizationResult) {
	w.section("Recommended Treatment Flow")
	if opt == nil {
		w.note("No optimization results were supplied for this report.")
		return
	}

	w.subheading("Primary Treatment")
	w.table([]string{"Parameter", "Value"}, [][]string{
		{"Settling Time", fmt.Sprintf("%.1f minutes", opt.Primary.SettlingTimeMin)},
		{"Coagulant Dose", fmt.Sprintf("%.2f mL", opt.Primary.CoagulantDoseML)},
		{"Sludge Volume Index", fmt.Sprintf("%.2f mL/g", opt.Primary.SludgeVolumeIndex)},
	}, []float64{90, 90}, primaryColor)
	w.bullets(opt.Primary.Recommendations)

	w.subheading("Secondary Treatment")
	w.table([]string{"Parameter", "Value"}, [][]string{
		{"Aeration Time", fmt.Sprintf("%.1f minutes", opt.Secondary.AerationTimeMin)},
		{"DO Target", fmt.Sprintf("%.2f ppm", opt.Secondary.DOTargetPPM)},
		{"Blower Speed", fmt.Sprintf("%.0f RPM", opt.Secondary.BlowerSpeedRPM)},
		{"Sludge Age", fmt.Sprintf("%.1f days", opt.Secondary.SludgeAgeDays)},
	}, []float64{90, 90}, headerColor)
	w.bullets(opt.Secondary.Recommendations)

	ro := "No"
	if opt.Tertiary.ROTrigger {
		ro = "Yes"
	}
	w.subheading("Tertiary Treatment")
	w.table([]string{"Parameter", "Value"}, [][]string{
		{"Filtration Rate", fmt.Sprintf("%.2f LPM/m2", opt.Tertiary.FiltrationRateLPM)},
		{"Chlorine Dose", fmt.Sprintf("%.2f mL", opt.Tertiary.ChlorineDoseML)},
		{"RO Required", ro},
	}, []float64{90, 90}, tertiaryColor)
	w.bullets(opt.Tertiary.Recommendations)

	w.subheading("Chemical Dosing")
	w.table([]string{"Chemical", "Dose"}, [][]string{
		{"Coagulant", fmt.Sprintf("%.2f mL", opt.Dosing.Coagulant)},
		{"Chlorine", fmt.Sprintf("%.2f mL", opt.Dosing.Chlorine)},
	}, []float64{90, 90}, headerColor)

	w.subheading("Final Reuse")
	w.note(opt.FinalReuse.Description)
}

func (w *writer) sensors(readings []models.SensorReading, snapshot models.FeatureVector) {
	w.section("Raw Sensor Data")

	if len(readings) > 0 {
		if len(readings) > MaxSensorRows {
			readings = readings[:MaxSensorRows]
		}
		rows := make([][]string, 0, len(readings))
		for _, r := range readings {
			param := r.ParameterName
			if param == "" {
				param = r.SensorType
			}
			rows = append(rows, []string{formatTime(r.Timestamp), r.SensorID, param, fmt.Sprintf("%.2f", r.Value), orNA(r.Unit)})
		}
		w.table([]string{"Timestamp", "Sensor ID", "Parameter", "Value", "Unit"}, rows, []float64{45, 35, 40, 30, 30}, headerColor)
		return
	}

	if len(snapshot) > 0 {
		names := make([]string, 0, len(snapshot))
		for name := range snapshot {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, fmt.Sprintf("%.2f", snapshot[name])})
		}
		w.table([]string{"Parameter", "Value"}, rows, []float64{90, 90}, headerColor)
		return
	}

	w.note("No sensor data available.")
}

func (w *writer) section(title string) {
	pdf := w.pdf
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(headerColor.r, headerColor.g, headerColor.b)
	pdf.CellFormat(0, 10, w.tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (w *writer) subheading(title string) {
	pdf := w.pdf
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(bodyTextColor.r, bodyTextColor.g, bodyTextColor.b)
	pdf.CellFormat(0, 8, w.tr(title), "", 1, "L", false, 0, "")
}

func (w *writer) note(text string) {
	pdf := w.pdf
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(bodyTextColor.r, bodyTextColor.g, bodyTextColor.b)
	pdf.MultiCell(pageWidth, 6, w.tr(text), "", "L", false)
}

func (w *writer) bullets(items []string) {
	if len(items) == 0 {
		return
	}
	pdf := w.pdf
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(bodyTextColor.r, bodyTextColor.g, bodyTextColor.b)
	for _, item := range items {
		pdf.MultiCell(pageWidth, 5.5, w.tr("- "+item), "", "L", false)
	}
}

func (w *writer) table(header []string, rows [][]string, widths []float64, accent rgb) {
	pdf := w.pdf
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(accent.r, accent.g, accent.b)
	pdf.SetTextColor(headerTextTint.r, headerTextTint.g, headerTextTint.b)
	pdf.SetDrawColor(160, 160, 160)
	for i, h := range header {
		pdf.CellFormat(widths[i], rowHeight, w.tr(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(bodyTextColor.r, bodyTextColor.g, bodyTextColor.b)
	pdf.SetFillColor(rowShadeColor.r, rowShadeColor.g, rowShadeColor.b)
	for n, row := range rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], rowHeight, w.tr(cell), "1", 0, "L", n%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
