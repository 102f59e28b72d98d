package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

const bruteForceRule = `title: SSH Failed Password
id: 5e0a5a3c-2a59-4c43-9a8c-0d1f4f1b0001
status: experimental
logsource:
  product: linux
  service: sshd
detection:
  selection:
    message|contains: 'Failed password'
  condition: selection
level: high
tags:
  - attack.credential_access
  - attack.t1110
`

const exfilRule = `title: Bulk Upload To Paste Site
id: 5e0a5a3c-2a59-4c43-9a8c-0d1f4f1b0002
logsource:
  product: linux
detection:
  selection:
    dst_port: 443
    message|contains: 'pastebin'
  condition: selection
level: critical
tags:
  - attack.command_and_control
  - soccopilot.exfiltration
`

const windowsRule = `title: Windows Only
id: 5e0a5a3c-2a59-4c43-9a8c-0d1f4f1b0003
logsource:
  product: windows
detection:
  selection:
    EventID: 4625
  condition: selection
level: medium
`

func writeRules(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"ssh.yml":     bruteForceRule,
		"exfil.yaml":  exfilRule,
		"windows.yml": windowsRule,
		"broken.yml":  "title: [unterminated",
		"README.md":   "not a rule",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func TestLoadSigmaRules(t *testing.T) {
	c, stats, err := NewSigmaClassifier(writeRules(t), SigmaOptions{Products: []string{"linux"}})
	require.NoError(t, err)

	require.Equal(t, 4, stats.TotalFiles)
	require.Equal(t, 2, stats.Loaded)
	require.Equal(t, 1, stats.SkippedDatasource)
	require.Equal(t, 1, stats.SkippedInvalid)
	require.Equal(t, 2, c.RuleCount())
}

func TestClassifyMatchingRule(t *testing.T) {
	c, _, err := NewSigmaClassifier(writeRules(t), SigmaOptions{Products: []string{"linux"}})
	require.NoError(t, err)

	rec := &models.LogRecord{
		Raw:    "sshd[1]: Failed password for root from 203.0.113.7 port 50000 ssh2",
		Fields: map[string]interface{}{"message": "sshd[1]: Failed password for root from 203.0.113.7 port 50000 ssh2"},
	}
	cls, err := c.Classify(context.Background(), rec, nil)
	require.NoError(t, err)
	require.Equal(t, "BruteForce", cls.Label)
	require.Equal(t, 0.85, cls.Confidence)

	matches := c.Evaluate(context.Background(), rec)
	require.Len(t, matches, 1)
	require.Equal(t, "credential-access", matches[0].Tactic)
	require.Equal(t, "T1110", matches[0].Technique)
}

func TestClassifyNoMatchIsBenign(t *testing.T) {
	c, _, err := NewSigmaClassifier(writeRules(t), SigmaOptions{BenignConfidence: 0.8})
	require.NoError(t, err)

	cls, err := c.Classify(context.Background(), &models.LogRecord{
		Raw:    "session opened for user alice",
		Fields: map[string]interface{}{"message": "session opened for user alice"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "Benign", cls.Label)
	require.Equal(t, 0.8, cls.Confidence)
}

func TestCategoryFromTags(t *testing.T) {
	tests := []struct {
		tags []string
		want models.ThreatCategory
	}{
		{[]string{"attack.impact"}, models.CategoryDDoS},
		{[]string{"attack.t1059", "attack.execution"}, models.CategoryMalware},
		{[]string{"attack.collection"}, models.CategoryExfiltration},
		{[]string{"attack.privilege_escalation"}, models.CategoryMalware},
		{[]string{"attack.impact", "soccopilot.BruteForce"}, models.CategoryBruteForce},
		{[]string{"attack.discovery"}, models.CategoryUnknown},
		{nil, models.CategoryUnknown},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, categoryFromTags(tt.tags), "tags=%v", tt.tags)
	}
}

func TestNoopClassifier(t *testing.T) {
	cls, err := NoopClassifier{}.Classify(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "Benign", cls.Label)
	require.Equal(t, 0.9, cls.Confidence)
}

func TestNewSigmaClassifierRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	_, _, err := NewSigmaClassifier(path, SigmaOptions{})
	require.Error(t, err)
}
