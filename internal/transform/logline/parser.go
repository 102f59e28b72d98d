package logline

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"soccopilot/pkg/models"
)

// ErrEmptyLine is returned for blank input.
var ErrEmptyLine = errors.New("empty line")

var (
	kvPattern   = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)=("[^"]*"|\S+)`)
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	portPattern = regexp.MustCompile(`\bport\s+(\d{1,5})\b`)
)

// Parse turns a raw line into a LogRecord. JSON objects are decoded into
// Fields; anything else is kept as a message with key=value pairs extracted.
func Parse(line models.RawLine) (*models.LogRecord, error) {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return nil, ErrEmptyLine
	}

	rec := &models.LogRecord{
		Source:    line.Source,
		Raw:       line.Text,
		ArrivedAt: line.ArrivedAt,
		Fields:    make(map[string]interface{}),
	}

	if strings.HasPrefix(text, "{") {
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(text), &raw); err == nil {
			rec.Fields = raw
		}
	}
	if len(rec.Fields) == 0 {
		rec.Fields["message"] = text
		for _, m := range kvPattern.FindAllStringSubmatch(text, -1) {
			rec.Fields[m[1]] = strings.Trim(m[2], `"`)
		}
	}

	rec.Timestamp = line.ArrivedAt
	if ts := getString(rec.Fields, "@timestamp", "timestamp", "ts", "time"); ts != "" {
		if t, ok := parseTime(ts); ok {
			rec.Timestamp = t
		}
	}

	rec.Network = extractNetwork(rec.Fields, text)
	return rec, nil
}

func extractNetwork(fields map[string]interface{}, text string) models.NetworkContext {
	n := models.NetworkContext{
		SourceIP:        validIP(getString(fields, "src_ip", "source.ip", "source_ip", "src", "client_ip")),
		DestinationIP:   validIP(getString(fields, "dst_ip", "destination.ip", "destination_ip", "dst", "server_ip")),
		SourcePort:      getInt(fields, "src_port", "source.port", "source_port", "sport"),
		DestinationPort: getInt(fields, "dst_port", "destination.port", "destination_port", "dport"),
		Protocol:        strings.ToLower(getString(fields, "protocol", "proto", "network.transport")),
		RecordID:        getString(fields, "record_id", "event.id", "id"),
	}

	if n.SourceIP == "" || n.DestinationIP == "" {
		var found []string
		for _, candidate := range ipv4Pattern.FindAllString(text, -1) {
			if ip := validIP(candidate); ip != "" && ip != n.SourceIP && ip != n.DestinationIP {
				found = append(found, ip)
			}
		}
		if n.SourceIP == "" && len(found) > 0 {
			n.SourceIP, found = found[0], found[1:]
		}
		if n.DestinationIP == "" && len(found) > 0 {
			n.DestinationIP = found[0]
		}
	}

	if n.SourcePort == 0 && n.DestinationPort == 0 {
		if m := portPattern.FindStringSubmatch(text); m != nil {
			if p, err := strconv.Atoi(m[1]); err == nil && p <= 65535 {
				n.SourcePort = p
			}
		}
	}
	return n
}

func validIP(s string) string {
	if s == "" {
		return ""
	}
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return ""
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), true
	}
	return time.Time{}, false
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case string:
				if val != "" {
					return val
				}
			case fmt.Stringer:
				return val.String()
			case int:
				return fmt.Sprintf("%d", val)
			case int64:
				return fmt.Sprintf("%d", val)
			case float64:
				if val == float64(int64(val)) {
					return fmt.Sprintf("%d", int64(val))
				}
				return strconv.FormatFloat(val, 'f', -1, 64)
			}
		}
	}
	return ""
}

func getInt(root map[string]interface{}, paths ...string) int {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case int:
				return val
			case int64:
				return int(val)
			case float64:
				return int(val)
			case string:
				if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
					return parsed
				}
			}
		}
	}
	return 0
}

// getPath resolves a dotted path through nested objects. A flat key that
// contains dots wins over the nested lookup.
func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	if v, ok := root[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
