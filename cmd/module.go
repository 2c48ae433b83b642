package cmd

import (
	"fmt"

	"github.com/cottand/typeflow/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var ModuleCmd = &cobra.Command{
	Use:          "module ./folder|file.yaml Const::Path",
	Short:        "Print every method and constant of a module",
	RunE:         runModule,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
}

var moduleFlags *commonFlags

func init() {
	moduleFlags = addCommonFlags(ModuleCmd)
}

func runModule(cmd *cobra.Command, args []string) error {
	s, err := moduleFlags.open(args[0])
	if err != nil {
		return errors.Wrap(err, "could not load target")
	}
	out, ok := s.svc.DumpModule(util.SplitPath(args[1]))
	if !ok {
		return errors.Errorf("no module %s", args[1])
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
