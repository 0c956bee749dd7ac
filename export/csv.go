// Package export renders batch outcomes as CSV for payroll hand-off.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/warp/wage-engine/wage"
)

// Columns is the CSV header, in order.
var Columns = []string{
	"key",
	"work_date",
	"worker_id",
	"status",
	"error",
	"rule_id",
	"work_minutes",
	"overtime_minutes",
	"night_minutes",
	"base_wage",
	"overtime_wage",
	"night_wage",
	"holiday_wage",
	"restraint_allowance",
	"other_allowances",
	"total_wage",
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Frame builds one row per batch key, sorted by key. Every column is a
// string column so amounts keep their exact decimal text.
func Frame(outcomes map[string]wage.Outcome) dataframe.DataFrame {
	return dataframe.LoadRecords(records(outcomes),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

// WriteCSV writes the outcomes of a batch to w.
func WriteCSV(w io.Writer, outcomes map[string]wage.Outcome) error {
	if len(outcomes) == 0 {
		// gota cannot hold a frame with no rows
		cw := csv.NewWriter(w)
		if err := cw.Write(Columns); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}

	df := Frame(outcomes)
	if df.Err != nil {
		return fmt.Errorf("error building export frame: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	return nil
}

func records(outcomes map[string]wage.Outcome) [][]string {
	rows := make([][]string, 0, len(outcomes)+1)
	rows = append(rows, Columns)

	for _, key := range wage.SortedKeys(outcomes) {
		o := outcomes[key]
		row := []string{
			key,
			wage.DateOf(o.Input.WorkDate).Format(wage.DateLayout),
			o.Input.WorkerID,
		}
		if !o.OK() {
			row = append(row, StatusError, o.Err.Error())
			for len(row) < len(Columns) {
				row = append(row, "")
			}
			rows = append(rows, row)
			continue
		}

		r := o.Result
		row = append(row,
			StatusOK,
			"",
			r.AppliedRule.ID,
			strconv.Itoa(r.WorkMinutes),
			strconv.Itoa(r.OvertimeMinutes),
			strconv.Itoa(r.NightMinutes),
			r.BaseWage.String(),
			r.OvertimeWage.String(),
			r.NightWage.String(),
			r.HolidayWage.String(),
			r.RestraintAllowance.String(),
			r.OtherAllowances.String(),
			r.TotalWage.String(),
		)
		rows = append(rows, row)
	}
	return rows
}
