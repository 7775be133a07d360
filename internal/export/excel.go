package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urielssan/subite/internal/models"

	"github.com/xuri/excelize/v2"
)

var sheetHeaders = []string{
	"ID", "Referencia", "Ruta", "Fecha", "Hora", "Cantidad",
	"Nombre", "Teléfono", "Email", "Detalle", "Total", "Creada",
}

// sheetNames are excelize-safe tab titles per kind.
var sheetNames = map[models.BookingKind]string{
	models.KindShared:    "Compartidos",
	models.KindParcel:    "Encomiendas",
	models.KindAirport:   "Aeropuerto",
	models.KindExclusive: "Exclusivos",
	models.KindAnywhere:  "Cualquier destino",
}

// BookingsWorkbook builds a workbook with one sheet per booking kind.
func BookingsWorkbook(from, to time.Time, bookings []models.BookingSummary) (*excelize.File, error) {
	f := excelize.NewFile()

	byKind := make(map[models.BookingKind][]models.BookingSummary)
	for _, b := range bookings {
		byKind[b.Kind] = append(byKind[b.Kind], b)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating style: %w", err)
	}

	period := fmt.Sprintf("Período: %s - %s", from.Format("02/01/2006"), to.Format("02/01/2006"))
	for i, kind := range models.BookingKinds {
		name := sheetNames[kind]
		index, err := f.NewSheet(name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating sheet: %w", err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, name, kind.Label()+" - "+period, byKind[kind], headerStyle, titleStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func writeSheet(f *excelize.File, sheet, title string, rows []models.BookingSummary, headerStyle, titleStyle int) error {
	_ = f.SetCellValue(sheet, "A1", title)
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	for col, h := range sheetHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 2)
		_ = f.SetCellValue(sheet, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(sheetHeaders), 2)
	_ = f.SetCellStyle(sheet, "A2", lastHeader, headerStyle)

	for i, b := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		values := []interface{}{
			b.ID,
			b.Reference,
			string(b.Route),
			models.FormatDate(b.Date),
			b.Time,
			b.Count,
			b.Name,
			b.Phone,
			b.Email,
			b.Details,
			b.TotalPrice,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row: %w", err)
		}
	}

	_ = f.SetColWidth(sheet, "A", "F", 12)
	_ = f.SetColWidth(sheet, "G", "J", 24)
	_ = f.SetColWidth(sheet, "K", "L", 16)
	return nil
}

// WriteBookings streams the workbook as xlsx.
func WriteBookings(w io.Writer, from, to time.Time, bookings []models.BookingSummary) error {
	f, err := BookingsWorkbook(from, to, bookings)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("error encoding workbook: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// SaveBookings writes the workbook under dir and returns its path.
func SaveBookings(dir string, from, to time.Time, bookings []models.BookingSummary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := BookingsWorkbook(from, to, bookings)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func FileName(from, to time.Time) string {
	return fmt.Sprintf("reservas_%s_a_%s.xlsx", models.FormatDate(from), models.FormatDate(to))
}
