// Package auditexport renders audit log query results as CSV or XLSX for
// compliance review.
package auditexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"firmdocs/internal/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" (the default for "") and "xlsx".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", domain.NewValidationError(map[string]string{"format": "must be csv or xlsx"})
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

var columns = []string{
	"Sequence",
	"Timestamp",
	"Actor ID",
	"Action",
	"Outcome",
	"Entity Type",
	"Entity ID",
	"Severity",
	"Compliance",
	"Changes",
	"IP Address",
	"Error Kind",
	"Context",
	"Hash",
}

// Export writes every entry yielded by entries to w in format f and returns
// the number of rows written.
func Export(w io.Writer, f Format, entries iter.Seq2[domain.AuditLogEntry, error]) (int, error) {
	switch f {
	case FormatXLSX:
		return writeXLSX(w, entries)
	default:
		return writeCSV(w, entries)
	}
}

func writeCSV(w io.Writer, entries iter.Seq2[domain.AuditLogEntry, error]) (int, error) {
	if _, err := w.Write(BOM); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return 0, err
	}
	n := 0
	for entry, err := range entries {
		if err != nil {
			return n, err
		}
		if err := cw.Write(entryToRow(&entry)); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

func writeXLSX(w io.Writer, entries iter.Seq2[domain.AuditLogEntry, error]) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit Log"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return 0, err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, err
	}
	if err := sw.SetRow("A1", toCells(columns)); err != nil {
		return 0, err
	}
	n := 0
	for entry, err := range entries {
		if err != nil {
			return n, err
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return n, err
		}
		if err := sw.SetRow(cell, toCells(entryToRow(&entry))); err != nil {
			return n, err
		}
		n++
	}
	if err := sw.Flush(); err != nil {
		return n, err
	}
	if _, err := f.WriteTo(w); err != nil {
		return n, fmt.Errorf("writing xlsx: %w", err)
	}
	return n, nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

func entryToRow(e *domain.AuditLogEntry) []string {
	return []string{
		strconv.FormatInt(e.Sequence, 10),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.ActorID.String(),
		e.Action,
		string(e.Outcome),
		string(e.EntityType),
		e.EntityID,
		string(e.Severity),
		formatBool(e.IsComplianceAction),
		formatChanges(e.Changes),
		e.IPAddress,
		e.ErrorKind,
		formatContext(e.Context),
		e.Hash,
	}
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatChanges(changes domain.FieldChanges) string {
	parts := make([]string, len(changes))
	for i, c := range changes {
		parts[i] = fmt.Sprintf("%s: %s -> %s", c.Field, c.OldValue, c.NewValue)
	}
	return strings.Join(parts, "; ")
}

func formatContext(ctx domain.AuditContext) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + ctx[k]
	}
	return strings.Join(parts, "; ")
}

// BuildFilename returns the Content-Disposition filename for an export.
// Format: audit_log_{YYYY-MM-DD}.{ext}
func BuildFilename(f Format, now time.Time) string {
	return fmt.Sprintf("audit_log_%s.%s", now.Format("2006-01-02"), f)
}
