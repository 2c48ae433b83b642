package cmd

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cottand/typeflow/analyzer/loader"
	"github.com/cottand/typeflow/analyzer/service"
	"github.com/cottand/typeflow/internal/config"
	"github.com/cottand/typeflow/internal/log"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var logger = log.DefaultLogger.With("section", "cli")

type commonFlags struct {
	config   *string
	logLevel *string
}

func addCommonFlags(c *cobra.Command) *commonFlags {
	return &commonFlags{
		config:   c.Flags().StringP("config", "c", config.DefaultPath, "config file"),
		logLevel: c.Flags().StringP("log-level", "l", "", "log level, overriding the config"),
	}
}

// session is a service loaded with every signature and program of a target
type session struct {
	svc      *service.Service
	programs []string
}

func (f *commonFlags) open(target string) (*session, error) {
	cfg, err := config.Load(*f.config)
	if err != nil {
		return nil, err
	}
	if *f.logLevel != "" {
		cfg.Log.Level = *f.logLevel
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	if len(cfg.Log.Sections) > 0 {
		log.EnableSections(cfg.Log.Sections...)
	}

	svc, err := service.New(cfg.ServiceOptions())
	if err != nil {
		return nil, err
	}
	logger.Info("started session", "session", svc.ID().String(), "target", target)

	files, err := collectFiles(target)
	if err != nil {
		return nil, err
	}
	sigs := slices.Concat(cfg.Signatures, slices.DeleteFunc(slices.Clone(files), func(p string) bool {
		return !loader.IsSignatureFile(p)
	}))
	programs := slices.DeleteFunc(files, loader.IsSignatureFile)

	for _, path := range sigs {
		prog, err := loader.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := svc.UpdateSignatures(path, prog); err != nil {
			return nil, err
		}
	}
	for _, path := range programs {
		prog, err := loader.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := svc.UpdateFile(path, prog); err != nil {
			return nil, err
		}
	}
	return &session{svc: svc, programs: programs}, nil
}

// collectFiles is target itself, or every YAML file below it but the config
func collectFiles(target string) ([]string, error) {
	stat, err := os.Stat(target)
	if err != nil {
		return nil, errors.Wrap(err, "could not stat target")
	}
	if !stat.IsDir() {
		return []string{target}, nil
	}
	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Base(path) == config.DefaultPath {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", target)
	}
	slices.Sort(files)
	return files, nil
}

// colorOutput reports whether stdout is a terminal that understands ANSI colors
func colorOutput() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

const (
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBold   = "\033[1m"
	ansiReset  = "\033[0m"
)

func paint(color, s string) string {
	if !colorOutput() {
		return s
	}
	return color + s + ansiReset
}
