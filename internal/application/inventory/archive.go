package inventory

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ArchiveFormat is the file format of a ledger export
type ArchiveFormat string

const (
	ArchiveCSV  ArchiveFormat = "csv"
	ArchiveXLSX ArchiveFormat = "xlsx"
)

// MaxArchiveRange bounds one export
const MaxArchiveRange = 366 * 24 * time.Hour

const archiveSheet = "Ledger"

var archiveHeader = []string{
	"created_at", "sku", "sequence", "change_type", "quantity_change",
	"resulting_quantity", "related_id", "actor_id", "notes", "entry_id",
}

// ParseArchiveFormat accepts csv or xlsx in any case; empty means csv
func ParseArchiveFormat(s string) (ArchiveFormat, error) {
	switch f := ArchiveFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ArchiveCSV, nil
	case ArchiveCSV, ArchiveXLSX:
		return f, nil
	default:
		return "", shared.NewDomainErrorf(shared.CodeInvalidInput, "Unsupported archive format %q", s)
	}
}

// ContentType returns the MIME type of the format
func (f ArchiveFormat) ContentType() string {
	if f == ArchiveXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ArchiveStore persists export files
type ArchiveStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// LedgerArchiver exports a tenant's ledger for a time window to object storage
type LedgerArchiver struct {
	ledgerRepo inventory.LedgerRepository
	store      ArchiveStore
	prefix     string
}

// NewLedgerArchiver creates a LedgerArchiver writing under prefix
func NewLedgerArchiver(ledgerRepo inventory.LedgerRepository, store ArchiveStore, prefix string) *LedgerArchiver {
	return &LedgerArchiver{ledgerRepo: ledgerRepo, store: store, prefix: strings.Trim(prefix, "/")}
}

// Export writes the entries created in [from, to) and returns the object key
func (a *LedgerArchiver) Export(ctx context.Context, tc *shared.TenantContext, from, to time.Time, format ArchiveFormat) (string, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return "", err
	}
	if !from.Before(to) {
		return "", shared.NewDomainError(shared.CodeInvalidInput, "Archive range start must be before its end")
	}
	if to.Sub(from) > MaxArchiveRange {
		return "", shared.NewDomainError(shared.CodeInvalidInput, "Archive range may span at most 366 days")
	}
	if format == "" {
		format = ArchiveCSV
	}

	entries, err := a.ledgerRepo.ListRange(ctx, tc.TenantID, from, to)
	if err != nil {
		return "", err
	}

	var body []byte
	switch format {
	case ArchiveCSV:
		body, err = encodeLedgerCSV(entries)
	case ArchiveXLSX:
		body, err = encodeLedgerXLSX(entries)
	default:
		_, err = ParseArchiveFormat(string(format))
	}
	if err != nil {
		return "", err
	}

	key := a.objectKey(tc.TenantID, from, to, format)
	if err := a.store.Put(ctx, key, body, format.ContentType()); err != nil {
		return "", fmt.Errorf("store ledger archive: %w", err)
	}

	logger.L(ctx).Info("ledger archived",
		zap.String("key", key),
		zap.Int("entries", len(entries)),
		zap.String("format", string(format)),
	)
	return key, nil
}

func (a *LedgerArchiver) objectKey(tenantID uuid.UUID, from, to time.Time, format ArchiveFormat) string {
	name := fmt.Sprintf("ledger_%s_%s_%s.%s",
		from.UTC().Format("20060102T150405"),
		to.UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
		format,
	)
	parts := []string{tenantID.String(), name}
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func ledgerRow(e *inventory.LedgerEntry) []string {
	related := ""
	if e.RelatedID != nil {
		related = e.RelatedID.String()
	}
	return []string{
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.SKU,
		strconv.FormatInt(e.Sequence, 10),
		e.ChangeType.String(),
		strconv.FormatInt(e.QuantityChange, 10),
		strconv.FormatInt(e.ResultingQuantity, 10),
		related,
		e.ActorID.String(),
		e.Notes,
		e.ID.String(),
	}
}

func encodeLedgerCSV(entries []inventory.LedgerEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(archiveHeader); err != nil {
		return nil, err
	}
	for i := range entries {
		if err := w.Write(ledgerRow(&entries[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func encodeLedgerXLSX(entries []inventory.LedgerEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", archiveSheet); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(archiveSheet)
	if err != nil {
		return nil, err
	}

	header := make([]any, len(archiveHeader))
	for i, h := range archiveHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	for i := range entries {
		e := &entries[i]
		row := ledgerRow(e)
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		// numeric columns stay numbers so the sheet can sum them
		values[2] = e.Sequence
		values[4] = e.QuantityChange
		values[5] = e.ResultingQuantity

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
