package loader

import (
	"embed"
	"io/fs"
	"path"

	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/pkg/errors"
)

//go:embed prelude/*.sig.yaml
var preludeFS embed.FS

// PreludePrefix starts the path of every prelude file
const PreludePrefix = "<prelude>/"

// Prelude loads the embedded declarations of the core classes
func Prelude() ([]*ast.Program, error) {
	entries, err := fs.ReadDir(preludeFS, "prelude")
	if err != nil {
		return nil, errors.Wrap(err, "listing prelude")
	}
	var programs []*ast.Program
	for _, entry := range entries {
		data, err := preludeFS.ReadFile(path.Join("prelude", entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading prelude %s", entry.Name())
		}
		prog, err := LoadSignatures(PreludePrefix+entry.Name(), data)
		if err != nil {
			return nil, err
		}
		programs = append(programs, prog)
	}
	return programs, nil
}
