package handler

import "frota/internal/nfe/models"

// RecordResponse is the JSON body returned for an extracted document.
type RecordResponse struct {
	AccessKey string `json:"access_key"`
	Station   string `json:"station"`
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Plate     string `json:"plate"`
	KM        string `json:"km"`
}

// FromRecord builds the response for one record.
func FromRecord(accessKey, station string, r models.Record) RecordResponse {
	return RecordResponse{
		AccessKey: accessKey,
		Station:   station,
		Date:      r.Date,
		Amount:    r.Amount,
		Plate:     r.Plate,
		KM:        r.KM,
	}
}
