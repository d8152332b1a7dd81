// Package export renders saved unit turns as spreadsheets.
package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/turnkey/turnkey/internal/unitturn"
)

const (
	lineSheet    = "Line Items"
	summarySheet = "Summary"
)

var lineHeader = []interface{}{
	"Section",
	"Cost Code",
	"GL Account",
	"Classification",
	"Description",
	"Quantity",
	"Units",
	"Cost / Unit",
	"Project Cost",
	"Damages",
	"Notes",
	"Photos",
}

// Workbook builds an XLSX document for a saved instance. Project cost and damage charges are
// written to separate columns and separate total rows.
func Workbook(inst *unitturn.Instance) ([]byte, error) {
	if inst == nil {
		return nil, errors.New("export: instance required")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), lineSheet); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := f.SetSheetRow(lineSheet, "A1", &lineHeader); err != nil {
		return nil, fmt.Errorf("export: header: %w", err)
	}

	items := make([]unitturn.Item, 0, len(inst.LineItems))
	for i, line := range inst.LineItems {
		code, ok := unitturn.LookupCostCode(line.CostCode)
		gl, class := "", ""
		if ok {
			gl, class = code.GLAccount, string(code.Classification)
		}
		notes := ""
		if line.ItemNotes != nil {
			notes = *line.ItemNotes
		}
		row := []interface{}{
			line.SectionName,
			line.CostCode,
			gl,
			class,
			line.Description,
			line.Quantity,
			line.Units,
			line.CostPerUnit,
			line.Quantity * line.CostPerUnit,
			line.DamageAmount,
			notes,
			len(line.Photos),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("export: cell: %w", err)
		}
		if err := f.SetSheetRow(lineSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: row %d: %w", i+1, err)
		}
		items = append(items, unitturn.Item{
			ID:          line.ItemID,
			Quantity:    line.Quantity,
			CostPerUnit: line.CostPerUnit,
			Damages:     line.DamageAmount,
		})
	}

	calc := unitturn.Calculate(items)
	if err := writeSummary(f, inst, calc); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("export: write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, inst *unitturn.Instance, calc unitturn.Calculation) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("export: summary sheet: %w", err)
	}
	p := message.NewPrinter(language.AmericanEnglish)
	rows := [][]interface{}{
		{"Unit Turn", inst.ID},
		{"Property", inst.PropertyID},
		{"Unit", inst.UnitLabel},
		{"Status", string(inst.Status)},
		{},
		{"Section", "Active Items", "Project Cost", "Damage Charges"},
	}
	for _, summary := range calc.SectionSummaries {
		rows = append(rows, []interface{}{summary.SectionName, summary.ItemCount, Money(p, summary.ProjectTotal), Money(p, summary.DamageTotal)})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"Total Project Cost", Money(p, calc.TotalProjectCost)},
		[]interface{}{"Total Damage Charges", Money(p, calc.TotalDamageCharges)},
		[]interface{}{"Line Items", calc.TotalLineItems},
	)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("export: cell: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("export: summary row %d: %w", i+1, err)
		}
	}
	return nil
}

// Money formats an amount as US dollars with grouping.
func Money(p *message.Printer, amount float64) string {
	return p.Sprintf("$%.2f", amount)
}

// FileName returns the download and storage name of an instance workbook.
func FileName(instanceID string) string {
	return "unit-turn-" + instanceID + ".xlsx"
}
