package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

const defaultBenignConfidence = 0.9

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

var levelConfidence = map[string]float64{
	"critical":      0.95,
	"high":          0.85,
	"medium":        0.7,
	"low":           0.5,
	"informational": 0.3,
}

var tacticCategory = map[string]models.ThreatCategory{
	"credential-access":    models.CategoryBruteForce,
	"impact":               models.CategoryDDoS,
	"exfiltration":         models.CategoryExfiltration,
	"collection":           models.CategoryExfiltration,
	"execution":            models.CategoryMalware,
	"persistence":          models.CategoryMalware,
	"defense-evasion":      models.CategoryMalware,
	"privilege-escalation": models.CategoryMalware,
}

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

// SigmaOptions controls rule loading and the no-match result.
type SigmaOptions struct {
	// Products restricts rules by logsource product. Empty accepts all.
	Products         []string
	BenignConfidence float64
}

type compiledSigmaRule struct {
	eval  *sigmaevaluator.RuleEvaluator
	match Match
}

// SigmaClassifier labels records with the category of the strongest
// matching Sigma rule.
type SigmaClassifier struct {
	rules            []compiledSigmaRule
	benignConfidence float64
}

// NewSigmaClassifier loads Sigma rules from a file or directory and compiles evaluators.
// Unsupported or complex rules are skipped and included in stats.
func NewSigmaClassifier(path string, opts SigmaOptions) (*SigmaClassifier, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	files, err := ruleFiles(path)
	if err != nil {
		return nil, stats, err
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			logger.Debugf("Skipping sigma rule: %v", err)
			stats.SkippedInvalid++
			continue
		}
		if !productAllowed(rule, opts.Products) {
			stats.SkippedDatasource++
			continue
		}
		if ok, reason := isSimpleSingleEventRule(rule); !ok {
			logger.Debugf("Skipping sigma rule %s: %s", ruleFile, reason)
			stats.SkippedComplex++
			continue
		}

		compiled = append(compiled, compiledSigmaRule{
			eval:  sigmaevaluator.ForRule(rule),
			match: matchFromRule(rule),
		})
		stats.Loaded++
	}

	benign := opts.BenignConfidence
	if benign <= 0 {
		benign = defaultBenignConfidence
	}
	return &SigmaClassifier{rules: compiled, benignConfidence: benign}, stats, nil
}

// RuleCount returns the number of compiled rules.
func (c *SigmaClassifier) RuleCount() int {
	return len(c.rules)
}

// Evaluate returns every rule that matches rec, in load order.
func (c *SigmaClassifier) Evaluate(ctx context.Context, rec *models.LogRecord) []Match {
	if c == nil || rec == nil || len(c.rules) == 0 {
		return nil
	}

	event := sigmaEventFrom(rec)
	var out []Match
	for _, rule := range c.rules {
		res, err := rule.eval.Matches(ctx, event)
		if err != nil {
			continue
		}
		if res.Match {
			out = append(out, rule.match)
		}
	}
	return out
}

// Classify returns the category of the highest-confidence match, or Benign
// when nothing matches.
func (c *SigmaClassifier) Classify(ctx context.Context, rec *models.LogRecord, _ models.FeatureVector) (models.Classification, error) {
	matches := c.Evaluate(ctx, rec)
	if len(matches) == 0 {
		return models.Classification{
			Label:         string(models.CategoryBenign),
			Confidence:    c.benignConfidence,
			Probabilities: map[string]float64{string(models.CategoryBenign): c.benignConfidence},
		}, nil
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	return models.Classification{
		Label:      string(best.Category),
		Confidence: best.Confidence,
		Probabilities: map[string]float64{
			string(best.Category):        best.Confidence,
			string(models.CategoryBenign): 1 - best.Confidence,
		},
	}, nil
}

func ruleFiles(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}

	if !info.IsDir() {
		if !isYAMLFile(resolved) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		return []string{resolved}, nil
	}

	files := make([]string, 0, 64)
	err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() && isYAMLFile(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func productAllowed(rule sigma.Rule, products []string) bool {
	if len(products) == 0 {
		return true
	}
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	if product == "" {
		return true
	}
	for _, p := range products {
		if strings.EqualFold(strings.TrimSpace(p), product) {
			return true
		}
	}
	return false
}

func isSimpleSingleEventRule(rule sigma.Rule) (bool, string) {
	if rule.Detection.Timeframe > 0 {
		return false, "timeframe is not supported"
	}

	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false, "aggregation condition is not supported"
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false, "complex condition expression is not supported"
		}
	}

	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false, "keyword search is not supported"
		}
		if len(search.EventMatchers) == 0 {
			return false, "search has no event matchers"
		}
	}

	return true, ""
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

// sigmaEventFrom flattens record fields to dotted keys and adds the
// normalized network fields.
func sigmaEventFrom(rec *models.LogRecord) map[string]interface{} {
	buf := make(map[string]interface{}, len(rec.Fields)+8)
	flatten("", rec.Fields, buf)
	if _, ok := buf["message"]; !ok {
		buf["message"] = rec.Raw
	}
	buf["source"] = rec.Source
	n := rec.Network
	if n.SourceIP != "" {
		buf["src_ip"] = n.SourceIP
	}
	if n.DestinationIP != "" {
		buf["dst_ip"] = n.DestinationIP
	}
	if n.SourcePort != 0 {
		buf["src_port"] = n.SourcePort
	}
	if n.DestinationPort != 0 {
		buf["dst_port"] = n.DestinationPort
	}
	if n.Protocol != "" {
		buf["protocol"] = n.Protocol
	}
	return buf
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func matchFromRule(rule sigma.Rule) Match {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}

	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if _, ok := levelConfidence[level]; !ok {
		level = "medium"
	}

	tactic, technique := parseAttackTags(rule.Tags)
	return Match{
		ID:         id,
		Title:      strings.TrimSpace(rule.Title),
		Level:      level,
		Tactic:     tactic,
		Technique:  technique,
		Category:   categoryFromTags(rule.Tags),
		Confidence: levelConfidence[level],
	}
}

// categoryFromTags prefers an explicit soccopilot.<category> tag, then the
// first ATT&CK tactic with a known category.
func categoryFromTags(tags []string) models.ThreatCategory {
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if !strings.HasPrefix(strings.ToLower(tag), "soccopilot.") {
			continue
		}
		name := tag[len("soccopilot."):]
		for _, c := range []models.ThreatCategory{
			models.CategoryBenign, models.CategoryDDoS, models.CategoryBruteForce,
			models.CategoryMalware, models.CategoryExfiltration,
		} {
			if strings.EqualFold(name, string(c)) {
				return c
			}
		}
	}
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		tactic := strings.ReplaceAll(strings.TrimPrefix(tag, "attack."), "_", "-")
		if c, ok := tacticCategory[tactic]; ok {
			return c
		}
	}
	return models.CategoryUnknown
}

func parseAttackTags(tags []string) (string, string) {
	var tactic string
	var technique string

	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		suffix := strings.TrimPrefix(tag, "attack.")
		if technique == "" && techniqueTagRegex.MatchString(tag) {
			technique = strings.ToUpper(strings.ReplaceAll(suffix, ".", "/"))
			continue
		}
		if tactic == "" && !techniqueTagRegex.MatchString(tag) {
			tactic = strings.ReplaceAll(suffix, "_", "-")
		}
	}

	return tactic, technique
}
