// Package export writes completed sessions to JSON or CSV for external
// billing and reporting tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/chargetrack/core/model"
)

// WriteJSON writes the sessions to w in JSON format.
func WriteJSON(w io.Writer, sessions []model.Session) error {
	enc := json.NewEncoder(w)
	return enc.Encode(sessions)
}

// WriteCSV writes the sessions to w in CSV format.
func WriteCSV(w io.Writer, sessions []model.Session) error {
	cw := csv.NewWriter(w)
	header := []string{
		"id", "charger_id", "user", "user_type", "vehicle",
		"started_at", "ended_at", "energy_kwh", "max_power_w", "avg_power_w",
		"cost_total", "cost_method", "charge_price_total", "soc_added_pct", "energy_mismatch",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range sessions {
		ended := ""
		if s.EndedAt != nil {
			ended = s.EndedAt.Format(time.RFC3339)
		}
		charge := ""
		if s.ChargePriceTotal != nil {
			charge = formatFloat(*s.ChargePriceTotal)
		}
		soc := ""
		if s.SoCAddedPct != nil {
			soc = formatFloat(*s.SoCAddedPct)
		}
		rec := []string{
			s.ID,
			s.ChargerID,
			s.UserName,
			s.UserType,
			s.VehicleName,
			s.StartedAt.Format(time.RFC3339),
			ended,
			formatFloat(s.EnergyKWh),
			formatFloat(s.MaxPowerW),
			formatFloat(s.AvgPowerW),
			formatFloat(s.CostTotal),
			string(s.CostMethod),
			charge,
			soc,
			strconv.FormatBool(s.EnergyMismatch),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
