package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func execute(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

const greeter = `
- class: Greeter
  body:
    - def: greet
      params: [name]
      body: [{call: upcase, recv: name}]
- call: greet
  recv: {call: new, recv: Greeter}
  args: ["world"]
`

func TestCollectFiles(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"b.yaml":         "[]",
		"a/c.yml":        "[]",
		"sig/x.sig.yaml": "[]",
		"typeflow.yaml":  "",
		"notes.txt":      "",
	})
	files, err := collectFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a/c.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sig/x.sig.yaml"),
	}, files)

	single, err := collectFiles(filepath.Join(dir, "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, single)

	_, err = collectFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		path    string
		pos     ir.Position
		wantErr bool
	}{
		{in: "main.yaml:3:5", path: "main.yaml", pos: ir.Position{Line: 3, Column: 4}},
		{in: "C:/x/main.yaml:1:1", path: "C:/x/main.yaml", pos: ir.Position{Line: 1}},
		{in: "main.yaml:3", wantErr: true},
		{in: "main.yaml:a:1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			path, pos, err := parseLocation(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.pos, pos)
		})
	}
}

func TestCheckAndDecls(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.yaml": greeter})

	out, err := execute(t, CheckCmd, dir)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = execute(t, DeclsCmd, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "def greet: (String) -> String")

	out, err = execute(t, ModuleCmd, dir, "Greeter")
	require.NoError(t, err)
	assert.Equal(t, "class Greeter\n  def greet: (String) -> String\nend\n", out)

	_, err = execute(t, ModuleCmd, dir, "::Missing")
	assert.EqualError(t, err, "no module ::Missing")
}

func TestCheckFailsOnErrors(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.yaml": `
- call: shout
  recv: 1
`})
	out, err := execute(t, CheckCmd, dir)
	assert.EqualError(t, err, "found 1 errors")
	assert.Contains(t, out, "undefined method: Integer#shout")
}

func TestHover(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.yaml": greeter})
	main := filepath.Join(dir, "main.yaml")

	// the "greet" of the call on line 7
	out, err := execute(t, HoverCmd, dir, main+":7:9")
	require.NoError(t, err)
	assert.Equal(t, "Greeter#greet: (String) -> String\n", out)
}
