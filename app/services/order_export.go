package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// ExportVariant selects the sections of an order workbook.
type ExportVariant string

const (
	// ExportAdmin adds the derived laser-cut table.
	ExportAdmin  ExportVariant = "admin"
	ExportClient ExportVariant = "client"
)

// XLSXContentType is the MIME type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	exportSheet   = "Resumen Pedido"
	emptyCell     = "-"
	figureColumn  = "Figura"
	qtyColumn     = "Cantidad"
	modelColumn   = "Modelo"
	maxColWidth   = 60
	minColWidth   = 10
	exportsFolder = "exports/"
)

// cutExcluded matches laser-spec keys that describe finish rather than cut.
var cutExcluded = regexp.MustCompile(`(?i)(color|colores|base|bases)`)

// columnAliases renames form fields whose names read badly as headers.
var columnAliases = map[string]string{
	"¿quieres_el_logo_de_tu_empresa?": "logo_grabado",
	"tipo-urna":                       "tipo-madera",
}

// CutInput is one line item paired with its product's laser spec.
type CutInput struct {
	Spec map[string]any
	Form map[string]any
}

// CutRow is one group of the cut table.
type CutRow struct {
	Values   []string
	Quantity int
}

// CutTable lists the distinct cut configurations of an order. Columns
// excludes the trailing quantity column.
type CutTable struct {
	Columns []string
	Rows    []CutRow
}

// DeriveCutTable takes each item's laser-spec keys (minus color and base
// keys, quantity and figure keys) with values from the item's form where
// present, adds the figure field once, and groups identical rows summing
// their quantities. Groups keep
// the order of their first item.
func DeriveCutTable(items []CutInput) CutTable {
	type rowFields map[string]string
	var (
		t      CutTable
		seen   = map[string]bool{}
		fields = make([]rowFields, 0, len(items))
		qty    = make([]int, 0, len(items))
	)
	for _, it := range items {
		keys := make([]string, 0, len(it.Spec))
		for k := range it.Spec {
			switch {
			case cutExcluded.MatchString(k),
				models.IsFieldName(k, models.QuantityFields),
				models.IsFieldName(k, models.FigureFields):
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		row := rowFields{}
		for _, k := range keys {
			v := it.Spec[k]
			if fv, ok := it.Form[k]; ok {
				v = fv
			}
			row[k] = cellText(v)
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		fig, _ := models.FormValue(it.Form, models.FigureFields...)
		row[figureColumn] = cellText(fig)
		fields = append(fields, row)
		qty = append(qty, models.Quantity(it.Form))
	}
	if len(items) == 0 {
		return t
	}
	t.Columns = append(t.Columns, figureColumn)

	index := map[string]int{}
	for i, row := range fields {
		values := make([]string, len(t.Columns))
		for c, col := range t.Columns {
			if v, ok := row[col]; ok {
				values[c] = v
			} else {
				values[c] = emptyCell
			}
		}
		key := strings.Join(values, "\x1f")
		if at, ok := index[key]; ok {
			t.Rows[at].Quantity += qty[i]
			continue
		}
		index[key] = len(t.Rows)
		t.Rows = append(t.Rows, CutRow{Values: values, Quantity: qty[i]})
	}
	return t
}

// cellText renders a form or spec value for a spreadsheet cell.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return emptyCell
	case string:
		if strings.TrimSpace(t) == "" {
			return emptyCell
		}
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int32, int64, bool:
		return fmt.Sprint(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = cellText(e)
		}
		return strings.Join(parts, ", ")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Export renders the order as an xlsx workbook and returns its file name
// and contents. A non-empty owner restricts the export to that client's
// orders. When an archive is configured a copy is written to exports/ in
// the background.
func (s *OrderService) Export(ctx context.Context, id string, variant ExportVariant, owner string) (string, []byte, error) {
	if variant != ExportAdmin && variant != ExportClient {
		return "", nil, fmt.Errorf("%w: export variant %q", models.ErrInvalidInput, variant)
	}
	view, err := s.GetByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if owner != "" && view.Owner != owner {
		return "", nil, fmt.Errorf("%w: order %s", models.ErrNotFound, id)
	}

	var cut *CutTable
	if variant == ExportAdmin {
		specs, err := s.laserSpecs(ctx, view.Products)
		if err != nil {
			return "", nil, err
		}
		items := make([]CutInput, 0, len(view.Products))
		for _, li := range view.Products {
			items = append(items, CutInput{Spec: specs[li.ProductID], Form: li.Form})
		}
		t := DeriveCutTable(items)
		cut = &t
	}

	data, err := renderOrderWorkbook(view, cut)
	if err != nil {
		return "", nil, fmt.Errorf("order: export: %w", err)
	}
	name := "orden_" + view.OrderID + ".xlsx"
	if variant == ExportClient {
		name = "orden_" + view.OrderID + "_cliente.xlsx"
	}
	s.archive(ctx, name, data)
	return name, data, nil
}

func (s *OrderService) laserSpecs(ctx context.Context, items []models.LineItemView) (map[primitive.ObjectID]map[string]any, error) {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, li := range items {
		ids = append(ids, li.ProductID)
	}
	products, err := s.store.Products().FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("order: products: %w", err)
	}
	var hashes []string
	for _, p := range products {
		if p.LaserHash != "" {
			hashes = append(hashes, p.LaserHash)
		}
	}
	blobs, err := s.blobs.GetMany(ctx, models.KindLaser, hashes)
	if err != nil {
		return nil, fmt.Errorf("order: laser specs: %w", err)
	}
	out := make(map[primitive.ObjectID]map[string]any, len(products))
	for id, p := range products {
		if b, ok := blobs[p.LaserHash]; ok {
			out[id] = b.Object()
		}
	}
	return out, nil
}

func (s *OrderService) archive(ctx context.Context, name string, data []byte) {
	if s.pool == nil || s.disk == nil {
		return
	}
	log := logger.WithCtx(ctx)
	err := s.pool.Submit(func(ctx context.Context) {
		if err := s.disk.Put(ctx, exportsFolder+name, data); err != nil {
			log.Warn("order: export archive failed", "file", name, "error", err)
		}
	})
	if err != nil {
		log.Warn("order: export archive skipped", "file", name, "error", err)
	}
}

// productColumns returns the form fields used across the line items,
// sorted, without product_id.
func productColumns(items []models.LineItemView) []string {
	seen := map[string]bool{}
	var keys []string
	for _, li := range items {
		for k := range li.Form {
			if k != "product_id" && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// ─── workbook rendering ──────────────────────────────────────────────────────

type sectionStyle struct {
	title, header int
}

type sheetWriter struct {
	f      *excelize.File
	row    int
	widths map[int]int
	cell   int
	number int
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
}

func newSection(f *excelize.File, titleColor, headerColor string) (sectionStyle, error) {
	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{titleColor}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return sectionStyle{}, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return sectionStyle{}, err
	}
	return sectionStyle{title: title, header: header}, nil
}

func (w *sheetWriter) cellName(col int) string {
	name, _ := excelize.CoordinatesToCellName(col, w.row)
	return name
}

func (w *sheetWriter) fit(col int, text string) {
	if n := utf8.RuneCountInString(text) + 2; n > w.widths[col] {
		w.widths[col] = n
	}
}

// section writes a merged title, a header row and the data rows, then
// leaves two empty rows. Empty sections are skipped.
func (w *sheetWriter) section(title string, style sectionStyle, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	first, last := w.cellName(1), w.cellName(len(columns))
	if err := w.f.SetCellValue(exportSheet, first, title); err != nil {
		return err
	}
	if len(columns) > 1 {
		if err := w.f.MergeCell(exportSheet, first, last); err != nil {
			return err
		}
	}
	if err := w.f.SetCellStyle(exportSheet, first, last, style.title); err != nil {
		return err
	}
	w.row++

	for i, c := range columns {
		if err := w.f.SetCellValue(exportSheet, w.cellName(i+1), c); err != nil {
			return err
		}
		w.fit(i+1, c)
	}
	if err := w.f.SetCellStyle(exportSheet, w.cellName(1), w.cellName(len(columns)), style.header); err != nil {
		return err
	}
	w.row++

	for _, r := range rows {
		for i, v := range r {
			cell := w.cellName(i + 1)
			styleID := w.cell
			if _, ok := v.(int); ok {
				styleID = w.number
			}
			if err := w.f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
			if err := w.f.SetCellStyle(exportSheet, cell, cell, styleID); err != nil {
				return err
			}
			w.fit(i+1, fmt.Sprint(v))
		}
		w.row++
	}
	w.row += 2
	return nil
}

func (w *sheetWriter) applyWidths() error {
	for col, n := range w.widths {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		width := min(max(n, minColWidth), maxColWidth)
		if err := w.f.SetColWidth(exportSheet, name, name, float64(width)); err != nil {
			return err
		}
	}
	return nil
}

func renderOrderWorkbook(v models.OrderView, cut *CutTable) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, row: 1, widths: map[int]int{}}
	var err error
	if w.cell, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Size: 11}, Border: thinBorder}); err != nil {
		return nil, err
	}
	if w.number, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 11},
		Border:    thinBorder,
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return nil, err
	}

	header, err := newSection(f, "#2F5597", "#D9E1F2")
	if err != nil {
		return nil, err
	}
	err = w.section("Información del Pedido", header,
		[]string{"Orden ID", "Cliente", "Fecha", "Estado", "Total Pedidos", "Total Urnas"},
		[][]any{{v.OrderID, v.ClientName, v.CreatedAt.Format(timestampLayout), string(v.Status), v.ItemCount, v.TotalQuantity}},
	)
	if err != nil {
		return nil, err
	}

	products, err := newSection(f, "#009688", "#B2DFDB")
	if err != nil {
		return nil, err
	}
	keys := productColumns(v.Products)
	columns := []string{modelColumn}
	for _, k := range keys {
		if alias, ok := columnAliases[k]; ok {
			k = alias
		}
		columns = append(columns, k)
	}
	rows := make([][]any, 0, len(v.Products))
	for _, li := range v.Products {
		row := []any{li.Model}
		for _, k := range keys {
			val, ok := li.Form[k]
			if !ok {
				row = append(row, emptyCell)
				continue
			}
			row = append(row, cellText(val))
		}
		rows = append(rows, row)
	}
	if err := w.section("Lista de Productos", products, columns, rows); err != nil {
		return nil, err
	}

	if cut != nil {
		laser, err := newSection(f, "#795548", "#D7CCC8")
		if err != nil {
			return nil, err
		}
		rows := make([][]any, 0, len(cut.Rows))
		for _, r := range cut.Rows {
			row := make([]any, 0, len(r.Values)+1)
			for _, val := range r.Values {
				row = append(row, val)
			}
			rows = append(rows, append(row, r.Quantity))
		}
		if err := w.section("Detalles de Corte Láser", laser, append(append([]string(nil), cut.Columns...), qtyColumn), rows); err != nil {
			return nil, err
		}
	}

	if err := w.applyWidths(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
