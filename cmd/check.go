package cmd

import (
	"fmt"

	"github.com/cottand/typeflow/analyzer/diag"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check ./folder|file.yaml",
	Short:        "Report the diagnostics of every program",
	RunE:         runCheck,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var checkFlags *commonFlags

func init() {
	checkFlags = addCommonFlags(CheckCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := checkFlags.open(args[0])
	if err != nil {
		return errors.Wrap(err, "could not load target")
	}
	out := cmd.OutOrStdout()
	errorCount := 0
	for _, path := range s.programs {
		for _, d := range s.svc.Diagnostics(path) {
			severity := paint(ansiYellow, d.Severity().String())
			if d.Severity() == diag.SeverityError {
				severity = paint(ansiRed, d.Severity().String())
				errorCount++
			}
			_, _ = fmt.Fprintf(out, "%s: %s\n", severity, diag.FormatWithLocation(path, d))
		}
	}
	if errorCount > 0 {
		return errors.Errorf("found %d errors", errorCount)
	}
	return nil
}
