package features

import (
	"strings"
	"unicode"

	"soccopilot/pkg/models"
)

var names = []string{
	"line_length",
	"field_count",
	"digit_ratio",
	"upper_ratio",
	"symbol_ratio",
	"src_port",
	"dst_port",
	"has_src_ip",
	"has_dst_ip",
	"hour_of_day",
}

// Extractor builds a fixed-order lexical feature vector from a parsed record.
// It is stateless and safe for concurrent use.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Names returns the feature order.
func (e *Extractor) Names() []string {
	return append([]string(nil), names...)
}

// Extract computes the vector for rec.
func (e *Extractor) Extract(rec *models.LogRecord) (models.FeatureVector, error) {
	text := rec.Raw
	var digits, upper, symbols, total int
	for _, r := range text {
		total++
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsUpper(r):
			upper++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbols++
		}
	}

	ratio := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total)
	}
	flag := func(s string) float64 {
		if strings.TrimSpace(s) == "" {
			return 0
		}
		return 1
	}

	hour := 0.0
	if !rec.Timestamp.IsZero() {
		hour = float64(rec.Timestamp.Hour())
	}

	return models.FeatureVector{
		float64(len(text)),
		float64(len(rec.Fields)),
		ratio(digits),
		ratio(upper),
		ratio(symbols),
		float64(rec.Network.SourcePort),
		float64(rec.Network.DestinationPort),
		flag(rec.Network.SourceIP),
		flag(rec.Network.DestinationIP),
		hour,
	}, nil
}
