package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"gorm.io/gorm"
)

// Service renders inventory reports as CSV and PDF.
type Service struct {
	db *gorm.DB
}

// NewService creates an export service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// StockSummaryCSV renders the current inventory as CSV.
func (s *Service) StockSummaryCSV(ctx context.Context, businessID uuid.UUID) ([]byte, error) {
	items, err := s.listItems(ctx, businessID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Name", "SKU", "Category", "Quantity", "Unit", "Min Threshold", "Location", "Expiry Date"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, item := range items {
		expiry := ""
		if item.ExpiryDate != nil {
			expiry = item.ExpiryDate.Format("2006-01-02")
		}
		row := []string{
			item.Name,
			item.SKU,
			item.Category,
			strconv.Itoa(item.Quantity),
			item.Unit,
			strconv.Itoa(item.MinThreshold),
			item.Location,
			expiry,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// EventHistoryCSV renders the movement ledger since a timestamp as CSV.
func (s *Service) EventHistoryCSV(ctx context.Context, businessID uuid.UUID, since time.Time) ([]byte, error) {
	type eventRow struct {
		models.InventoryEvent
		ItemName string
		UserName string
	}

	var events []eventRow
	err := s.db.WithContext(ctx).
		Table("inventory_events").
		Select("inventory_events.*, items.name AS item_name, users.name AS user_name").
		Joins("LEFT JOIN items ON items.id = inventory_events.item_id").
		Joins("LEFT JOIN users ON users.id = inventory_events.user_id").
		Where("inventory_events.business_id = ? AND inventory_events.timestamp >= ?", businessID, since).
		Order("inventory_events.timestamp ASC").
		Scan(&events).Error
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Timestamp", "Item", "Action", "Delta", "Reason", "User"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, e := range events {
		row := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.ItemName,
			e.Action,
			strconv.Itoa(e.Delta),
			e.Reason,
			e.UserName,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// StockReportPDF renders a printable stock summary.
func (s *Service) StockReportPDF(ctx context.Context, business *models.Business) ([]byte, error) {
	items, err := s.listItems(ctx, business.ID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Stock Report - %s", business.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04 UTC")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Table header
	colWidths := []float64{60, 30, 25, 15, 25, 35}
	headers := []string{"Name", "Category", "Quantity", "Unit", "Threshold", "Expiry"}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(colWidths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		expiry := ""
		if item.ExpiryDate != nil {
			expiry = item.ExpiryDate.Format("2006-01-02")
		}
		fill := item.IsLowStock()
		if fill {
			pdf.SetFillColor(255, 230, 230)
		}
		pdf.CellFormat(colWidths[0], 6, item.Name, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[1], 6, item.Category, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[2], 6, strconv.Itoa(item.Quantity), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[3], 6, item.Unit, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[4], 6, strconv.Itoa(item.MinThreshold), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[5], 6, expiry, "1", 0, "L", fill, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) listItems(ctx context.Context, businessID uuid.UUID) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("name ASC").
		Find(&items).Error
	return items, err
}
