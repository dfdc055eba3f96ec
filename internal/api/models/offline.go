package models

import "github.com/cropadvisor/cropadvisor/internal/recommendation"

// Availability is the body of GET /v1/offline/availability.
type Availability struct {
	OfflineAvailable bool `json:"offline_available"`
}

// RecordList is the body of GET /v1/offline/recommendations.
type RecordList struct {
	Records  []recommendation.Record `json:"records"`
	Count    int                     `json:"count"`
	Unsynced int                     `json:"unsynced"`
}

// NewRecordList wraps records, counting the unsynced ones.
func NewRecordList(records []recommendation.Record) RecordList {
	if records == nil {
		records = []recommendation.Record{}
	}
	list := RecordList{Records: records, Count: len(records)}
	for _, r := range records {
		if !r.Synced {
			list.Unsynced++
		}
	}
	return list
}
