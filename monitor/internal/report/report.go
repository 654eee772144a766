package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/vitalwatch/vitalwatch/monitor/internal/window"
	"github.com/vitalwatch/vitalwatch/pkg/types"
)

const (
	reportSheet = "Report"
	chartsSheet = "Charts"

	headerColor = "#06B6D4"
	stripeColor = "#F1F5F9"

	// chartRowStride is the number of sheet rows each chart image spans.
	chartRowStride = 17
)

// TableHeader is the column layout of the readings table.
var TableHeader = []string{"Time", "SpO₂ (%)", "Heart Rate (bpm)", "Temperature (°C)"}

// Row positions on the report sheet.
const (
	rowTitle          = 1
	rowGenerated      = 3
	rowBanner         = 5
	rowRecommendation = 7
	rowTableHeader    = 9
)

// Options holds the fixed report text.
type Options struct {
	Title  string
	Footer string
}

// Input is everything the report is built from.
type Input struct {
	Readings       []types.Reading
	Classification *types.ClassificationResult
	GeneratedAt    time.Time
}

// Build renders in as an XLSX workbook. An empty window is valid and yields
// the header, banner and footer around an empty table.
func Build(opts Options, in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("report: rename sheet: %w", err)
	}

	b := &builder{f: f, sheet: reportSheet}
	b.writeHeader(opts.Title, in.GeneratedAt)
	b.writeBanner(in.Classification)
	footerRow := b.writeTable(in.Readings)
	b.writeFooter(footerRow, opts.Footer)
	if len(in.Readings) > 0 {
		b.writeCharts(window.SeriesOf(in.Readings))
	}
	b.setProps(opts.Title, in.GeneratedAt)
	if b.err != nil {
		return nil, b.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// builder accumulates the first error so each step can stay linear.
type builder struct {
	f     *excelize.File
	sheet string
	err   error
}

func (b *builder) fail(step string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("report: %s: %w", step, err)
	}
}

func (b *builder) style(s *excelize.Style) int {
	if b.err != nil {
		return 0
	}
	id, err := b.f.NewStyle(s)
	b.fail("create style", err)
	return id
}

func (b *builder) set(col, row int, v interface{}) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		b.fail("cell name", err)
		return
	}
	b.fail("set "+cell, b.f.SetCellValue(b.sheet, cell, v))
}

// band merges A:D on row, writes text and applies style.
func (b *builder) band(row int, text string, style int, height float64) {
	if b.err != nil {
		return
	}
	first := fmt.Sprintf("A%d", row)
	last := fmt.Sprintf("D%d", row)
	b.fail("merge "+first, b.f.MergeCell(b.sheet, first, last))
	b.set(1, row, text)
	b.fail("style "+first, b.f.SetCellStyle(b.sheet, first, last, style))
	b.fail("row height", b.f.SetRowHeight(b.sheet, row, height))
}

func (b *builder) writeHeader(title string, at time.Time) {
	titleStyle := b.style(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 18, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", Indent: 1},
	})
	b.band(rowTitle, title, titleStyle, 36)

	for i, w := range []float64{16, 16, 20, 20} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if b.err == nil {
			b.fail("column width", b.f.SetColWidth(b.sheet, col, col, w))
		}
	}

	b.set(1, rowGenerated, "Report Generated: "+at.Format("2006-01-02 15:04:05"))
}

func (b *builder) writeBanner(res *types.ClassificationResult) {
	tier := types.TierUnknown
	text := "No classification yet"
	advisory := "No valid reading has been received."
	if res != nil {
		tier = res.Tier
		text = "Risk Classification: " + tier.Label()
		advisory = res.Advisory
	}

	bannerStyle := b.style(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{tier.Color()}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", Indent: 1},
	})
	b.band(rowBanner, text, bannerStyle, 30)

	bold := b.style(&excelize.Style{Font: &excelize.Font{Bold: true}})
	b.set(1, rowRecommendation, "Recommendation:")
	if b.err == nil {
		a, bc, d := fmt.Sprintf("A%d", rowRecommendation), fmt.Sprintf("B%d", rowRecommendation), fmt.Sprintf("D%d", rowRecommendation)
		b.fail("style recommendation", b.f.SetCellStyle(b.sheet, a, a, bold))
		b.fail("merge recommendation", b.f.MergeCell(b.sheet, bc, d))
	}
	b.set(2, rowRecommendation, advisory)
}

// writeTable writes the header and one row per reading and returns the
// first row after the table.
func (b *builder) writeTable(readings []types.Reading) int {
	headStyle := b.style(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	for i, h := range TableHeader {
		b.set(i+1, rowTableHeader, h)
	}
	if b.err == nil {
		b.fail("style table header", b.f.SetCellStyle(b.sheet,
			fmt.Sprintf("A%d", rowTableHeader), fmt.Sprintf("D%d", rowTableHeader), headStyle))
	}

	oneDecimal := "0.0"
	center := &excelize.Alignment{Horizontal: "center"}
	stripe := excelize.Fill{Type: "pattern", Color: []string{stripeColor}, Pattern: 1}
	plain := b.style(&excelize.Style{Alignment: center})
	plainTemp := b.style(&excelize.Style{Alignment: center, CustomNumFmt: &oneDecimal})
	striped := b.style(&excelize.Style{Alignment: center, Fill: stripe})
	stripedTemp := b.style(&excelize.Style{Alignment: center, Fill: stripe, CustomNumFmt: &oneDecimal})

	row := rowTableHeader + 1
	for i, r := range readings {
		b.set(1, row, r.Label)
		b.set(2, row, r.SpO2)
		b.set(3, row, r.HeartRate)
		if b.err == nil {
			cell := fmt.Sprintf("D%d", row)
			b.fail("set "+cell, b.f.SetCellFloat(b.sheet, cell, r.Temperature, 1, 64))
		}

		rowStyle, tempStyle := plain, plainTemp
		if i%2 == 1 {
			rowStyle, tempStyle = striped, stripedTemp
		}
		if b.err == nil {
			b.fail("style row", b.f.SetCellStyle(b.sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), rowStyle))
			b.fail("style row", b.f.SetCellStyle(b.sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), tempStyle))
		}
		row++
	}
	return row
}

func (b *builder) writeFooter(afterTable int, footer string) {
	footStyle := b.style(&excelize.Style{Font: &excelize.Font{Size: 9, Italic: true, Color: "#64748B"}})
	row := afterTable + 1
	b.set(1, row, footer)
	if b.err == nil {
		cell := fmt.Sprintf("A%d", row)
		b.fail("style footer", b.f.SetCellStyle(b.sheet, cell, cell, footStyle))
	}
}

func (b *builder) writeCharts(s window.Series) {
	if b.err != nil {
		return
	}
	if _, err := b.f.NewSheet(chartsSheet); err != nil {
		b.fail("create charts sheet", err)
		return
	}
	for i, m := range Metrics {
		png, err := RenderChart(s, m)
		if err != nil {
			b.fail("chart", err)
			return
		}
		cell := fmt.Sprintf("A%d", 1+i*chartRowStride)
		b.fail("insert "+string(m)+" chart", b.f.AddPictureFromBytes(chartsSheet, cell, &excelize.Picture{
			Extension: ".png",
			File:      png,
			Format:    &excelize.GraphicOptions{AltText: m.Title()},
		}))
	}
}

func (b *builder) setProps(title string, at time.Time) {
	if b.err != nil {
		return
	}
	b.fail("doc props", b.f.SetDocProps(&excelize.DocProperties{
		Title:      title,
		Subject:    "Vital signs report",
		Creator:    "vitalwatch",
		Identifier: uuid.NewString(),
		Created:    at.UTC().Format(time.RFC3339),
		Keywords:   strings.Join([]string{"spo2", "heart_rate", "temperature"}, ","),
	}))
}
