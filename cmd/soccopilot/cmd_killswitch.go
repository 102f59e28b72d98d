package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"soccopilot/internal/killswitch"
)

var killswitchCmd = &cobra.Command{
	Use:   "killswitch",
	Short: "Inspect or toggle the file kill switch",
}

var killswitchOnCmd = &cobra.Command{
	Use:   "on [reason]",
	Short: "Halt ingestion and analysis by creating the flag file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(rootFlags.config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		sw := killswitch.NewFile(cfg.SOCCopilot.KillSwitch.File)
		reason := strings.Join(args, " ")
		if reason == "" {
			reason = "manual"
		}
		if err := sw.Activate(reason); err != nil {
			return fmt.Errorf("activate kill switch: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kill switch active: %s\n", sw.Path())
		return nil
	},
}

var killswitchOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Resume by removing the flag file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(rootFlags.config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		sw := killswitch.NewFile(cfg.SOCCopilot.KillSwitch.File)
		if err := sw.Deactivate(); err != nil {
			return fmt.Errorf("deactivate kill switch: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kill switch cleared: %s\n", sw.Path())
		return nil
	},
}

var killswitchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print whether any configured kill switch is active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(rootFlags.config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		var cl closers
		defer cl.closeAll()

		out := cmd.OutOrStdout()
		file := killswitch.NewFile(cfg.SOCCopilot.KillSwitch.File)
		fmt.Fprintf(out, "file  %s: %s\n", file.Path(), onOff(file.Active()))

		if rc := cfg.SOCCopilot.KillSwitch.Redis; rc.Enabled {
			rs, err := killswitch.NewRedis(killswitch.RedisConfig{
				Addr:     rc.Addr,
				Password: rc.Password,
				DB:       rc.DB,
				Key:      rc.Key,
				Timeout:  rc.Timeout,
			})
			if err != nil {
				return fmt.Errorf("create redis kill switch: %w", err)
			}
			cl.add(rs.Close)
			fmt.Fprintf(out, "redis %s/%s: %s\n", rc.Addr, rc.Key, onOff(rs.Active()))
		}
		return nil
	},
}

func init() {
	killswitchCmd.AddCommand(killswitchOnCmd)
	killswitchCmd.AddCommand(killswitchOffCmd)
	killswitchCmd.AddCommand(killswitchStatusCmd)
}

func onOff(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
