package models

// ImportRow is one parsed data row of an uploaded roster. Row is 1-based and excludes the header.
type ImportRow struct {
	Row         int
	Name        string
	Age         string
	Gender      string
	PhoneNumber string
}

// SkippedRecord explains why a row did not produce a student.
type SkippedRecord struct {
	Row    int    `json:"row"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ImportResult summarises a roster import.
type ImportResult struct {
	TotalRecords             int             `json:"totalRecords"`
	CleanedRecords           int             `json:"cleanedRecords"`
	UniqueRecords            int             `json:"uniqueRecords"`
	ProcessedRecords         int             `json:"processedRecords"`
	ImportedOrUpdatedRecords int             `json:"importedOrUpdatedRecords"`
	SkippedRecords           int             `json:"skippedRecords"`
	SkippedRecordsDetails    []SkippedRecord `json:"skippedRecordsDetails"`
}
