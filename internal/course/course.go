// Package course models CSSci course material: raw documents produced
// by text extraction, their path-derived metadata, and the semester /
// assignment taxonomy shared by the chunker and the query filter.
package course

import "time"

// RawDocument is one ingested source file after text extraction.
// It is immutable after creation and consumed only by the chunker.
type RawDocument struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Metadata DocumentMeta `json:"metadata"`
}

// DocumentMeta carries the path-derived metadata of a raw document.
type DocumentMeta struct {
	CourseCode     string `json:"course_code"`
	DocumentType   string `json:"document_type"`
	Filename       string `json:"filename"`
	ProcessedDate  string `json:"processed_date"`
	OriginalPath   string `json:"original_path"`
	AccessiblePath string `json:"accessible_path"`
}

// NewDocumentMeta builds metadata with the processed date stamped now.
func NewDocumentMeta(courseCode, documentType, filename, originalPath, accessiblePath string) DocumentMeta {
	return DocumentMeta{
		CourseCode:     courseCode,
		DocumentType:   documentType,
		Filename:       filename,
		ProcessedDate:  time.Now().Format(time.RFC3339),
		OriginalPath:   originalPath,
		AccessiblePath: accessiblePath,
	}
}
