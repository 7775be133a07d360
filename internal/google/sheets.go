package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/urielssan/subite/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	bookingsSheet = "Bookings"
	lastColumn    = "M"
	timestampFmt  = "2006-01-02 15:04:05"
)

var bookingHeaders = []interface{}{
	"Key", "Reference", "Kind", "Route", "Date", "Time", "Count",
	"Name", "Phone", "Email", "Details", "Total", "Created At",
}

var errRowNotFound = errors.New("booking row not found")

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+):`)

// SheetsService mirrors bookings into one tab keyed by "kind:id" in column A.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

// NewSheetsService authenticates with a service account and keeps the row
// cache warm until ctx is done.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	s := newSheetsService(srv, spreadsheetID)
	go s.refreshLoop(ctx, time.Hour)
	return s, nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID string) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
	}
}

func (s *SheetsService) refreshLoop(ctx context.Context, every time.Duration) {
	warm := func() {
		wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		_ = s.WarmUpCache(wctx)
	}
	warm()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			warm()
		}
	}
}

// TestConnection reads the header cell of the bookings tab.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetServiceAccountEmail returns the address the spreadsheet must be shared with.
func GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// WarmUpCache rebuilds the row index from the key column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if key := cellKey(row); key != "" {
			cache[key] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsService) AppendBooking(ctx context.Context, booking models.BookingSummary) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, bookingsSheet+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if m := updatedRowRe.FindStringSubmatch(resp.Updates.UpdatedRange); m != nil {
			if row, err := strconv.Atoi(m[1]); err == nil {
				s.setCachedRow(booking.Key(), row)
			}
		}
	}
	return nil
}

// UpsertBooking rewrites the booking's row, appending it when missing.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking models.BookingSummary) error {
	rowIdx, err := s.FindBookingRow(ctx, booking.Key())
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.AppendBooking(ctx, booking)
		}
		return err
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rowRange(rowIdx), valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// DeleteBookingRow clears the booking's row. A missing row is not an error.
func (s *SheetsService) DeleteBookingRow(ctx context.Context, key string) error {
	rowIdx, err := s.FindBookingRow(ctx, key)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return nil
		}
		return err
	}

	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rowRange(rowIdx), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCachedRow(key)
	}
	return err
}

// FindBookingRow returns the 1-based row holding key, scanning the key
// column on a cache miss.
func (s *SheetsService) FindBookingRow(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, errors.New("booking key is required")
	}
	if row, ok := s.getCachedRow(key); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellKey(row) == key {
			s.setCachedRow(key, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

// ReplaceBookingsSheet rewrites the whole tab from the database.
func (s *SheetsService) ReplaceBookingsSheet(ctx context.Context, bookings []models.BookingSummary) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, bookingsSheet+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(bookings)+1)
	values = append(values, bookingHeaders)
	for _, b := range bookings {
		values = append(values, bookingRowValues(b))
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, bookingsSheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update bookings sheet: %w", err)
	}

	cache := make(map[string]int, len(bookings))
	for i, b := range bookings {
		cache[b.Key()] = i + 2
	}
	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsService) getCachedRow(key string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[key]
	return row, ok
}

func (s *SheetsService) setCachedRow(key string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[key] = row
}

func (s *SheetsService) deleteCachedRow(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, key)
}

func rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", bookingsSheet, row, lastColumn, row)
}

func cellKey(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	key, _ := row[0].(string)
	return key
}

func bookingRowValues(b models.BookingSummary) []interface{} {
	return []interface{}{
		b.Key(),
		b.Reference,
		b.Kind.Label(),
		string(b.Route),
		models.FormatDate(b.Date),
		b.Time,
		b.Count,
		b.Name,
		b.Phone,
		b.Email,
		b.Details,
		b.TotalPrice,
		b.CreatedAt.Format(timestampFmt),
	}
}
