package models

import "time"

// RawLine is one line of text delivered by an ingestion source.
type RawLine struct {
	Source    string    `json:"source"`
	Text      string    `json:"raw_line"`
	ArrivedAt time.Time `json:"arrived_at"`
}
