package constants

// DocumentStatus is the canonical status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentStatusParsed  DocumentStatus = "PARSED"  // trade extracted and persisted
	DocumentStatusFailed  DocumentStatus = "FAILED"  // terminal failure for this document
	DocumentStatusSkipped DocumentStatus = "SKIPPED" // content hash already parsed
)
