package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

// Scored pairs an ensemble result with the network context of its record.
type Scored struct {
	Result  models.EnsembleResult
	Network *models.NetworkContext
}

// Generator turns alert-worthy ensemble results into alerts.
type Generator struct {
	includeMITRE bool
	now          func() time.Time
	newID        func() string
}

// NewGenerator creates a generator.
func NewGenerator(includeMITRE bool) *Generator {
	return &Generator{
		includeMITRE: includeMITRE,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Generate returns nil unless the result requires an alert.
func (g *Generator) Generate(result models.EnsembleResult, network *models.NetworkContext) *models.Alert {
	if !result.RequiresAlert {
		return nil
	}

	tactics, techniques := []string{}, []string{}
	if g.includeMITRE {
		tactics, techniques = MITRE(result.ThreatCategory)
	}

	alert := &models.Alert{
		AlertID:                  g.newID(),
		Timestamp:                g.now(),
		Priority:                 result.AlertPriority,
		RiskLevel:                result.RiskLevel,
		ThreatCategory:           result.ThreatCategory,
		AnomalyScore:             result.AnomalyScore,
		ClassificationConfidence: result.ClassConfidence,
		CombinedRiskScore:        result.CombinedRiskScore,
		Classification:           result.Classification,
		Reasoning:                append([]string(nil), result.Reasoning...),
		SuggestedAction:          result.SuggestedAction,
		MitreTactics:             tactics,
		MitreTechniques:          techniques,
		Status:                   models.AlertNew,
	}
	if !network.IsZero() {
		n := *network
		alert.Network = &n
	}

	logger.Infof("Alert generated: id=%s priority=%s threat=%s", alert.AlertID, alert.Priority, alert.ThreatCategory)
	return alert
}

// GenerateBatch generates alerts for every entry, keeping input order and
// skipping entries that do not require one.
func (g *Generator) GenerateBatch(items []Scored) []*models.Alert {
	var out []*models.Alert
	for _, item := range items {
		if alert := g.Generate(item.Result, item.Network); alert != nil {
			out = append(out, alert)
		}
	}
	if len(items) > 0 {
		logger.Debugf("Batch alerts generated: input=%d alerts=%d", len(items), len(out))
	}
	return out
}

const rule = "+--------------------------------------------------------------+"

// FormatSummary renders an alert for terminal display.
func FormatSummary(a *models.Alert) string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		b.WriteString("| ")
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	id := a.AlertID
	if len(id) > 8 {
		id = id[:8] + "..."
	}

	b.WriteString(rule + "\n")
	line("ALERT: %s - %s", a.Priority, a.ThreatCategory)
	b.WriteString(rule + "\n")
	line("ID: %s", id)
	line("Time: %s", a.Timestamp.Format(time.RFC3339))
	line("Risk Level: %s", a.RiskLevel)
	line("Risk Score: %.2f", a.CombinedRiskScore)
	b.WriteString(rule + "\n")
	line("Classification: %s (%.1f%%)", a.Classification, a.ClassificationConfidence*100)
	line("Anomaly Score: %.2f", a.AnomalyScore)

	if n := a.Network; n != nil && (n.SourceIP != "" || n.DestinationIP != "") {
		b.WriteString(rule + "\n")
		if n.SourceIP != "" {
			line("Source: %s:%s", n.SourceIP, portString(n.SourcePort))
		}
		if n.DestinationIP != "" {
			line("Destination: %s:%s", n.DestinationIP, portString(n.DestinationPort))
		}
	}

	if len(a.Reasoning) > 0 {
		b.WriteString(rule + "\n")
		line("Reasoning:")
		for _, r := range a.Reasoning {
			line("  * %s", r)
		}
	}

	b.WriteString(rule + "\n")
	line("Action: %s", a.SuggestedAction)

	if len(a.MitreTechniques) > 0 {
		techniques := a.MitreTechniques
		if len(techniques) > 2 {
			techniques = techniques[:2]
		}
		b.WriteString(rule + "\n")
		line("MITRE ATT&CK: %s", strings.Join(techniques, ", "))
	}
	b.WriteString(rule)
	return b.String()
}

func portString(p int) string {
	if p == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d", p)
}
