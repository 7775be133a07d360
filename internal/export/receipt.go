package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/urielssan/subite/internal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// ReceiptQRPayload is the text encoded in the receipt QR code.
func ReceiptQRPayload(b models.BookingSummary) string {
	return fmt.Sprintf("SUBITE|%s|%s", b.Key(), b.Reference)
}

// Receipt renders a one-page PDF receipt with a QR code that identifies the
// booking at boarding.
func Receipt(b models.BookingSummary) ([]byte, error) {
	png, err := qrcode.Encode(ReceiptQRPayload(b), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Comprobante de reserva", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("Subite - Comprobante de reserva"))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range receiptLines(b) {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("Total: $%.2f", b.TotalPrice))
	pdf.Ln(12)

	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions("qr", 10, pdf.GetY(), 50, 50, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetY(pdf.GetY() + 55)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, tr("Presentá este comprobante al abordar. El código QR identifica tu reserva."), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func ReceiptFileName(b models.BookingSummary) string {
	return fmt.Sprintf("comprobante_%s_%d.pdf", b.Kind, b.ID)
}

func receiptLines(b models.BookingSummary) []string {
	lines := []string{
		"Servicio:   " + b.Kind.Label(),
		fmt.Sprintf("Reserva:    #%d", b.ID),
		"Referencia: " + b.Reference,
	}
	if b.Route != "" {
		lines = append(lines, "Ruta:       "+strings.ReplaceAll(b.Route.Label(), "→", "-"))
	}
	when := models.FormatDate(b.Date)
	if b.Time != "" {
		when += " " + b.Time
	}
	lines = append(lines, "Fecha:      "+when)
	if b.Count > 0 {
		lines = append(lines, fmt.Sprintf("Cantidad:   %d", b.Count))
	}
	lines = append(lines,
		"Nombre:     "+b.Name,
		"Teléfono:   "+b.Phone,
	)
	if b.Email != "" {
		lines = append(lines, "Email:      "+b.Email)
	}
	if b.Details != "" {
		lines = append(lines, "Detalle:    "+b.Details)
	}
	return lines
}
