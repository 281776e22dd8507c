package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilianc/atc/internal/atc/compile"
	"github.com/kilianc/atc/internal/atc/config"
	"github.com/kilianc/atc/internal/atc/depfile"
	"github.com/kilianc/atc/internal/atc/outfile"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("atc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(os.Stderr, "Usage: atc -i page.at -o page.at.go [flags]")
		_, _ = fmt.Fprintln(os.Stderr, "")
		_, _ = fmt.Fprintln(os.Stderr, "Compiles one .at template into a Go source file exposing Render.")
		_, _ = fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}

	var (
		input       string
		output      string
		baseDir     string
		depPath     string
		pkgName     string
		cfgPath     string
		watchMode   bool
		showHelp    bool
		showVersion bool
	)
	fs.StringVar(&input, "i", "", "path to the root .at template")
	fs.StringVar(&input, "input", "", "path to the root .at template")
	fs.StringVar(&output, "o", "", "path to write the generated Go file")
	fs.StringVar(&output, "output", "", "path to write the generated Go file")
	fs.StringVar(&baseDir, "base-dir", "", "base directory for include/extends paths (default: cwd)")
	fs.StringVar(&depPath, "dep-file", "", "write a Make-style dependency manifest to this path")
	fs.StringVar(&pkgName, "pkg", "", "package name for the generated file (default: input file stem)")
	fs.StringVar(&cfgPath, "config", "", "YAML file with flag defaults (default: atc.yaml next to the input, if present)")
	fs.BoolVar(&watchMode, "watch", false, "stay alive and recompile when the template or its dependencies change")
	fs.BoolVar(&showHelp, "h", false, "print help and exit")
	fs.BoolVar(&showHelp, "help", false, "print help and exit")
	fs.BoolVar(&showVersion, "v", false, "print version and exit")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if showHelp {
		fs.Usage()
		return 0
	}
	if showVersion {
		fmt.Println("atc " + version)
		return 0
	}
	if input == "" || output == "" {
		_, _ = fmt.Fprintln(os.Stderr, "atc: both -i/--input and -o/--output are required")
		fs.Usage()
		return 1
	}

	if cfgPath == "" {
		candidate := filepath.Join(filepath.Dir(input), "atc.yaml")
		if _, err := os.Stat(candidate); err == nil {
			cfgPath = candidate
		}
	}
	if cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if baseDir == "" {
			baseDir = cfg.BaseDir
		}
		if depPath == "" {
			depPath = cfg.DepFile
		}
		if pkgName == "" {
			pkgName = cfg.Package
		}
	}

	build := func() ([]string, error) {
		res, err := compile.File(input, compile.Options{BaseDir: baseDir, Package: pkgName})
		if err != nil {
			return nil, err
		}
		for _, w := range res.Warnings {
			_, _ = fmt.Fprintf(os.Stderr, "atc: warning: %s\n", w)
		}
		if err := outfile.WriteGeneratedFile(output, res.Source); err != nil {
			return res.Deps, err
		}
		if depPath != "" {
			if err := depfile.Write(depPath, output, res.Deps); err != nil {
				return res.Deps, err
			}
		}
		return res.Deps, nil
	}

	if watchMode {
		return watchLoop(input, build)
	}

	if _, err := build(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
