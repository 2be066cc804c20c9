package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicagenda/agenda/internal/domain/collision"
)

// checkInput is the file read by the check command.
type checkInput struct {
	Timezone     string                       `json:"timezone,omitempty"`
	Candidate    collision.Interval           `json:"candidate"`
	Blocks       []collision.Block            `json:"blocks"`
	Availability []collision.AvailabilityRule `json:"availability"`
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Classify a candidate interval against blocks and availability read from JSON",
		Long: `Reads {"timezone", "candidate": {"start", "end"}, "blocks": [...], "availability": [...]}
from the file, or stdin when the file is "-" or omitted, and prints the verdict.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			tz, _ := cmd.Flags().GetString("timezone")
			verdict, err := runCheck(in, tz)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(verdict)
		},
	}
	cmd.Flags().String("timezone", "", "Clinic timezone; overrides the file and defaults to UTC")
	return cmd
}

func runCheck(r io.Reader, timezone string) (collision.Verdict, error) {
	var input checkInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return collision.Verdict{}, fmt.Errorf("decode check input: %w", err)
	}
	if timezone == "" {
		timezone = input.Timezone
	}
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return collision.Verdict{}, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = l
	}
	for i, rule := range input.Availability {
		if err := rule.Validate(); err != nil {
			return collision.Verdict{}, fmt.Errorf("availability[%d]: %w", i, err)
		}
	}
	return collision.NewDetector(loc).Classify(input.Candidate, input.Blocks, input.Availability), nil
}
