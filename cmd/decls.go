package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var DeclsCmd = &cobra.Command{
	Use:          "decls ./folder|file.yaml",
	Short:        "Print the inferred declarations of every program",
	RunE:         runDecls,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var declsFlags *commonFlags

func init() {
	declsFlags = addCommonFlags(DeclsCmd)
}

func runDecls(cmd *cobra.Command, args []string) error {
	s, err := declsFlags.open(args[0])
	if err != nil {
		return errors.Wrap(err, "could not load target")
	}
	out := cmd.OutOrStdout()
	for i, path := range s.programs {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		decls, _ := s.svc.DumpDeclarations(path)
		_, _ = fmt.Fprintf(out, "%s\n%s", paint(ansiBold, "# "+path), decls)
	}
	return nil
}
