package models

import "frota/pkg/domain"

// Sentinel values written into records when a field cannot be determined.
const (
	NotAvailable = "N/A"
	InvalidDate  = "Invalid date"
)

// Record is the normalized view of one fiscal document. A Record only exists
// when both Date and Amount were found; Plate and KM fall back to
// NotAvailable on their own.
type Record struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Plate  string `json:"plate"`
	KM     string `json:"km"`
}

// Row is one line of the fleet report: a record tagged with the key it came
// from and the fuel station it is attributed to.
type Row struct {
	AccessKey domain.AccessKey `json:"access_key"`
	Station   string           `json:"station"`
	Record
}

// Columns is the fixed column order of every tabular export.
var Columns = []string{"date", "station", "amount", "plate", "km"}

// Values returns the row's cells in Columns order.
func (r Row) Values() []string {
	return []string{r.Date, r.Station, r.Amount, r.Plate, r.KM}
}
