// Package google writes annual reports to a Google Sheets spreadsheet
// using a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"grana/internal/core"
	"grana/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year (e.g. "Relatorio"); the year is
	// prefixed per report, so each year lands on its own sheet tab.
	reportBase string
}

var _ export.ReportWriter = (*Client)(nil)

// NewClient creates a Sheets client from service account credentials.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewClient(ctx context.Context, spreadsheetID, reportBase string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(reportBase) == "" {
		reportBase = "Relatorio"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		reportBase:    reportBase,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteAnnualReport overwrites the year's report sheet with the full
// twelve-row table. The write is a clear-then-update so stale rows from
// a previous run never survive.
func (c *Client) WriteAnnualReport(ctx context.Context, report core.AnnualReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheetName := fmt.Sprintf("%d %s", report.Year, c.reportBase)

	clearRange := fmt.Sprintf("%s!A1:H200", sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := [][]any{reportHeader()}
	for _, row := range report.Rows {
		values = append(values, reportRow(row))
	}

	writeRange := fmt.Sprintf("%s!A1:H%d", sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", writeRange, err)
	}

	slog.InfoContext(ctx, "Annual report written to Google Sheets",
		"year", report.Year,
		"sheet", sheetName,
		"rows", len(report.Rows))
	return nil
}

func reportHeader() []any {
	return []any{
		"Mes",
		"Receita planejada",
		"Receita realizada",
		"Despesa planejada",
		"Despesa realizada",
		"Despesa comprometida",
		"Saldo do mes",
		"Saldo acumulado",
	}
}

var monthNames = [core.MonthsPerYear]string{
	"Janeiro", "Fevereiro", "Marco", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

func reportRow(row core.AnnualRow) []any {
	name := ""
	if row.Month >= 1 && row.Month <= core.MonthsPerYear {
		name = monthNames[row.Month-1]
	}
	return []any{
		name,
		row.IncomePlanned.Units(),
		row.IncomeRealized.Units(),
		row.ExpensePlanned.Units(),
		row.ExpenseRealized.Units(),
		row.ExpenseCommitted.Units(),
		row.RowBalance.Units(),
		row.CumulativeBalance.Units(),
	}
}
