package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"soccopilot/internal/alerts"
	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

var scoreFlags struct {
	input string
	json  bool
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score log lines from a file or stdin and print the results",
	RunE:  runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVarP(&scoreFlags.input, "input", "i", "-", "Input file, or - for stdin")
	f.BoolVar(&scoreFlags.json, "json", false, "Print one JSON result per line")
}

type scoreOutput struct {
	Line   int                   `json:"line"`
	Source string                `json:"source"`
	Result models.EnsembleResult `json:"result"`
	Alert  *models.Alert         `json:"alert,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(rootFlags.config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Results go to stdout; keep the log quiet unless it writes to a file.
	cfg.SOCCopilot.Logging.Console = false
	if cfg.SOCCopilot.Logging.File == "" {
		cfg.SOCCopilot.Logging.Enabled = false
	}
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	var cl closers
	defer cl.closeAll()

	analyzer, err := buildAnalyzer(cfg, &cl, analyzerDeps{})
	if err != nil {
		return err
	}
	gen := alerts.NewGenerator(*cfg.SOCCopilot.Analysis.IncludeMITRE)

	var in io.Reader = cmd.InOrStdin()
	source := "stdin"
	if scoreFlags.input != "-" {
		f, err := os.Open(scoreFlags.input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
		source = scoreFlags.input
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	alertCount := 0
	for sc.Scan() {
		n++
		line := models.RawLine{Source: source, Text: sc.Text(), ArrivedAt: time.Now()}
		rec, res, err := analyzer.ScoreLine(cmd.Context(), line)
		row := scoreOutput{Line: n, Source: source}
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Result = res
			var network *models.NetworkContext
			if rec != nil {
				network = &rec.Network
			}
			row.Alert = gen.Generate(res, network)
		}
		if row.Alert != nil {
			alertCount++
		}

		if scoreFlags.json {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			continue
		}
		switch {
		case row.Error != "":
			fmt.Fprintf(out, "%d: error: %s\n", n, row.Error)
		case row.Alert != nil:
			fmt.Fprintln(out, alerts.FormatSummary(row.Alert))
		default:
			fmt.Fprintf(out, "%d: %s %s risk=%.2f (%s)\n", n, res.Classification, res.RiskLevel, res.CombinedRiskScore, res.AlertPriority)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if !scoreFlags.json {
		fmt.Fprintf(out, "scored lines=%d alerts=%d\n", n, alertCount)
	}
	return nil
}
