package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var HoverCmd = &cobra.Command{
	Use:          "hover ./folder|file.yaml file.yaml:line:column",
	Short:        "Print the types at a position",
	RunE:         runHover,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
}

var (
	hoverFlags       *commonFlags
	hoverDefinitions *bool
)

func init() {
	hoverFlags = addCommonFlags(HoverCmd)
	hoverDefinitions = HoverCmd.Flags().Bool("definitions", false, "also list where the thing at the position is defined")
}

// parseLocation reads file:line:column with a 1-based column
func parseLocation(s string) (string, ir.Position, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return "", ir.Position{}, errors.Errorf("expected file:line:column, got %q", s)
	}
	n := len(parts)
	line, err := strconv.Atoi(parts[n-2])
	if err != nil {
		return "", ir.Position{}, errors.Wrap(err, "parsing line")
	}
	col, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return "", ir.Position{}, errors.Wrap(err, "parsing column")
	}
	return strings.Join(parts[:n-2], ":"), ir.Position{Line: line, Column: max(col-1, 0)}, nil
}

func runHover(cmd *cobra.Command, args []string) error {
	path, pos, err := parseLocation(args[1])
	if err != nil {
		return err
	}
	s, err := hoverFlags.open(args[0])
	if err != nil {
		return errors.Wrap(err, "could not load target")
	}
	out := cmd.OutOrStdout()
	text, ok := s.svc.Hover(path, pos)
	if !ok {
		return errors.Errorf("nothing at %s", args[1])
	}
	_, _ = fmt.Fprintln(out, text)
	if *hoverDefinitions {
		for _, loc := range s.svc.Definitions(path, pos) {
			_, _ = fmt.Fprintf(out, "defined at %v\n", loc)
		}
	}
	return nil
}
