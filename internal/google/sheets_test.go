package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/models"
)

func TestBookingRowValues(t *testing.T) {
	booking := models.BookingSummary{
		Kind:       models.KindShared,
		ID:         123,
		Reference:  "ab12",
		Route:      models.RouteRCCBA,
		Date:       time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC),
		Time:       "07:00",
		Count:      2,
		Details:    "mascota",
		TotalPrice: 25000,
		CreatedAt:  time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC),
		Contact:    models.Contact{Name: "Ana", Phone: "+54 358 000", Email: "ana@example.com"},
	}

	values := bookingRowValues(booking)

	expected := []interface{}{
		"shared:123",
		"ab12",
		models.KindShared.Label(),
		"RC-CBA",
		"2030-01-07",
		"07:00",
		2,
		"Ana",
		"+54 358 000",
		"ana@example.com",
		"mascota",
		25000.0,
		"2030-01-06 10:00:00",
	}

	if len(values) != len(expected) || len(values) != len(bookingHeaders) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestRowRange(t *testing.T) {
	if got := rowRange(7); got != "Bookings!A7:M7" {
		t.Errorf("Expected Bookings!A7:M7, got %s", got)
	}
}

func TestCellKey(t *testing.T) {
	if got := cellKey([]interface{}{"parcel:3", "x"}); got != "parcel:3" {
		t.Errorf("Expected parcel:3, got %q", got)
	}
	if got := cellKey(nil); got != "" {
		t.Errorf("Expected empty key for empty row, got %q", got)
	}
	if got := cellKey([]interface{}{42.0}); got != "" {
		t.Errorf("Expected empty key for numeric cell, got %q", got)
	}
}

func TestCacheOperations(t *testing.T) {
	s := newSheetsService(nil, "sid")

	s.setCachedRow("shared:1", 10)
	if row, ok := s.getCachedRow("shared:1"); !ok || row != 10 {
		t.Errorf("Expected row 10, got %d", row)
	}

	s.deleteCachedRow("shared:1")
	if _, ok := s.getCachedRow("shared:1"); ok {
		t.Error("Expected shared:1 to be removed from cache")
	}
}

func TestGetServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`{"client_email": "test@example.com"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	email, err := GetServiceAccountEmail(path)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if email != "test@example.com" {
		t.Errorf("Expected test@example.com, got %s", email)
	}

	if _, err = GetServiceAccountEmail("non-existent"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestNewSheetsServiceBadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSheetsService(t.Context(), path, "sid"); err == nil {
		t.Error("Expected error for malformed credentials")
	}
	if _, err := NewSheetsService(t.Context(), filepath.Join(t.TempDir(), "missing.json"), "sid"); err == nil {
		t.Error("Expected error for missing credentials file")
	}
}
