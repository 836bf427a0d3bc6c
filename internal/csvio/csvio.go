// Package csvio imports catalog rows from CSV and exports report summaries.
package csvio

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/report"
	"github.com/mvidmar/knjiznica/internal/store"
)

// ImportCatalog reads catalog rows from r and inserts them. The expected
// header is id,title,author,genre,media_type,copies_total,copies_available;
// media type defaults to Book and both copy counts to 1. It returns the
// number of items imported.
func ImportCatalog(ctx context.Context, db *sql.DB, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := index["id"]; !ok {
		return 0, fmt.Errorf("%w: missing id column", model.ErrValidation)
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	count := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("reading row %d: %w", line, err)
		}

		item := model.Item{
			ID:              field(record, "id"),
			Title:           field(record, "title"),
			Author:          field(record, "author"),
			Genre:           field(record, "genre"),
			MediaType:       field(record, "media_type"),
			CopiesTotal:     1,
			CopiesAvailable: 1,
		}
		if s := field(record, "copies_total"); s != "" {
			if item.CopiesTotal, err = strconv.Atoi(s); err != nil {
				return count, fmt.Errorf("%w: row %d: bad copies_total %q", model.ErrValidation, line, s)
			}
		}
		if s := field(record, "copies_available"); s != "" {
			if item.CopiesAvailable, err = strconv.Atoi(s); err != nil {
				return count, fmt.Errorf("%w: row %d: bad copies_available %q", model.ErrValidation, line, s)
			}
		}

		if _, err := store.CreateItem(ctx, db, item); err != nil {
			return count, fmt.Errorf("row %d: %w", line, err)
		}
		count++
	}
	return count, nil
}

// ExportReportSummary writes a report's headline numbers as a two-line CSV.
func ExportReportSummary(w io.Writer, r *report.Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"total_books_borrowed", "total_overdue_books", "total_fines_collected"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	err := writer.Write([]string{
		strconv.Itoa(r.TotalBorrowed),
		strconv.Itoa(r.TotalOverdue),
		r.TotalFines.StringFixed(2),
	})
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	writer.Flush()
	return writer.Error()
}
