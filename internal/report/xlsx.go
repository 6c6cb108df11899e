// Package report exports a vehicle's logs as a spreadsheet.
package report

import (
	"fmt"
	"io"
	"os"

	"mygarage/internal/garage"
	"mygarage/internal/models"

	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SheetOverview = "Overview"
	SheetExpenses = "Expenses"
	SheetDream    = "Dream Spec"
	SheetTrack    = "Track Days"
)

// SaveVehicleXLSX writes the workbook for v to path.
func SaveVehicleXLSX(path string, owner *models.User, v *models.Vehicle) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteVehicleXLSX(out, owner, v); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WriteVehicleXLSX writes a workbook with one sheet per log of v.
func WriteVehicleXLSX(w io.Writer, owner *models.User, v *models.Vehicle) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	summary := garage.Summarize(v)
	overview := [][]interface{}{
		{"Owner", owner.Username},
		{"Vehicle", v.DisplayName()},
		{"ID", v.ID},
		{"Color", v.Color},
		{"Odometer (km)", v.Kilometer},
		{"Power (HP)", v.Power},
		{"Torque (Nm)", v.Torque},
		{"Track days", summary.TrackDayCount},
		{"Dream spec done", fmt.Sprintf("%d%% (%d/%d)", summary.DreamProgress, summary.DreamDone, summary.DreamTotal)},
	}
	for _, t := range summary.Expenses {
		overview = append(overview, []interface{}{"Total expenses " + t.Currency, t.Total.InexactFloat64()})
	}
	for _, t := range summary.DreamCost {
		overview = append(overview, []interface{}{"Dream spec cost " + t.Currency, t.Total.InexactFloat64()})
	}
	if err := writeSheet(f, SheetOverview, []string{"Field", "Value"}, overview, headerStyle); err != nil {
		return err
	}

	expenses := make([][]interface{}, 0, len(v.Expenses))
	for _, e := range v.Expenses {
		expenses = append(expenses, []interface{}{
			e.Date.String(), string(e.Category), e.Amount.InexactFloat64(), e.Currency, e.Description,
		})
	}
	if err := writeSheet(f, SheetExpenses,
		[]string{"Date", "Category", "Amount", "Currency", "Description"}, expenses, headerStyle); err != nil {
		return err
	}

	dream := make([][]interface{}, 0, len(v.DreamList))
	for _, d := range v.DreamList {
		dream = append(dream, []interface{}{
			d.Done, string(d.Category), d.Description, d.EstimatedCost.InexactFloat64(), d.Currency, d.PlannedDate.String(),
		})
	}
	if err := writeSheet(f, SheetDream,
		[]string{"Done", "Category", "Part / Brand", "Est. Cost", "Currency", "Plan Date"}, dream, headerStyle); err != nil {
		return err
	}

	track := make([][]interface{}, 0, len(v.TrackLog))
	for _, t := range v.TrackLog {
		track = append(track, []interface{}{t.Date.String(), t.TrackName, t.LapTime, t.Conditions, t.Tires})
	}
	if err := writeSheet(f, SheetTrack,
		[]string{"Date", "Track Name", "Best Lap", "Conditions", "Tires"}, track, headerStyle); err != nil {
		return err
	}

	// Drop the default sheet created by NewFile.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetOverview); err == nil {
		f.SetActiveSheet(idx)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, headers []string, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", name, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(name, "A", last, 18)
}
