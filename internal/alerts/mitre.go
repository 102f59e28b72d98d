package alerts

import "soccopilot/pkg/models"

// mitreMapping lists ATT&CK tactics and techniques per threat category.
type mitreMapping struct {
	Tactics    []string
	Techniques []string
}

var mitreTable = map[models.ThreatCategory]mitreMapping{
	models.CategoryDDoS: {
		Tactics:    []string{"Impact"},
		Techniques: []string{"T1499 - Endpoint Denial of Service"},
	},
	models.CategoryBruteForce: {
		Tactics:    []string{"Credential Access", "Initial Access"},
		Techniques: []string{"T1110 - Brute Force", "T1078 - Valid Accounts"},
	},
	models.CategoryMalware: {
		Tactics:    []string{"Execution", "Persistence", "Defense Evasion"},
		Techniques: []string{"T1059 - Command and Scripting", "T1547 - Boot or Logon Autostart"},
	},
	models.CategoryExfiltration: {
		Tactics:    []string{"Exfiltration", "Collection"},
		Techniques: []string{"T1041 - Exfiltration Over C2", "T1560 - Archive Collected Data"},
	},
}

// MITRE returns copies of the tactic and technique lists for a category.
// Categories without an entry yield empty, non-nil lists.
func MITRE(category models.ThreatCategory) (tactics, techniques []string) {
	m := mitreTable[category]
	return append([]string{}, m.Tactics...), append([]string{}, m.Techniques...)
}
