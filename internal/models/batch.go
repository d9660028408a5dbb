package models

// BatchError records one failed item of a batch.
type BatchError struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// BatchSummary is returned by every batch operation in place of a
// wholesale failure.
type BatchSummary struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Errors    []BatchError `json:"errors"`
}

// Fail records a failed item.
func (s *BatchSummary) Fail(itemID string, err error) {
	s.Failed++
	s.Errors = append(s.Errors, BatchError{ItemID: itemID, Message: err.Error()})
}
