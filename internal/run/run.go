// Package run implements the main logic for the mokitgen tool in a testable way.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/alexflint/go-arg"
	"github.com/toejough/mokit/internal/config"
	module "github.com/toejough/mokit/internal/run/1_module"
	load "github.com/toejough/mokit/internal/run/2_load"
	detect "github.com/toejough/mokit/internal/run/3_detect"
	generate "github.com/toejough/mokit/internal/run/5_generate"
	output "github.com/toejough/mokit/internal/run/6_output"
	"golang.org/x/sync/errgroup"
)

// Interfaces - Public

// FileSystem is every file operation the generator performs.
type FileSystem interface {
	ReadDir(name string) ([]os.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	Stat(path string) (os.FileInfo, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// Functions - Public

// Run executes the mokitgen tool logic. For each package directory named in args it collects
// the package-level variables and writes a file registering them with mokit.DefineModule.
// With --check it writes nothing and fails if any generated file is out of date.
// Directories are processed concurrently; the first failure cancels the rest.
func Run(
	ctx context.Context, args []string, cfg config.Config, fileSys FileSystem, out io.Writer, logger *slog.Logger,
) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}

	opts := resolveOptions(parsed, cfg)

	if parsed.Path != "" && len(opts.dirs) > 1 {
		return fmt.Errorf("%w: --path names one package but %d directories were given", errInvalidArgs, len(opts.dirs))
	}

	out = &syncWriter{w: out}

	group, ctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		group.SetLimit(opts.jobs)
	}

	for _, dir := range opts.dirs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			return generateDir(dir, parsed.Path, opts, fileSys, out, logger)
		})
	}

	return group.Wait()
}

// Structs - Private

// cliArgs defines the command-line arguments for the generator.
type cliArgs struct {
	Dirs       []string `arg:"positional"   help:"package directories to generate tables for (defaults to .)"`
	Name       string   `arg:"--name"       help:"variable name of the generated table (defaults to generate.name, MokitModule)"`
	Path       string   `arg:"--path"       help:"import path to register the table under (defaults to the path derived from go.mod)"`
	Output     string   `arg:"--output"     help:"generated file name (defaults to generate.output)"`
	Unexported bool     `arg:"--unexported" help:"also register unexported variables"`
	Check      bool     `arg:"--check"      help:"report out-of-date tables instead of writing them"`
	Jobs       int      `arg:"--jobs"       help:"maximum directories processed at once (0 means no limit)"`
}

type options struct {
	dirs       []string
	name       string
	output     string
	unexported bool
	check      bool
	jobs       int
}

// syncWriter serializes writes from concurrent directory workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.w.Write(p) //nolint:wrapcheck // transparent pass-through
}

// Functions - Private

func generateDir(
	dir, importPath string, opts options, fileSys FileSystem, out io.Writer, logger *slog.Logger,
) error {
	if importPath == "" {
		derived, err := module.ImportPath(fileSys, dir)
		if err != nil {
			return err
		}

		importPath = derived
	}

	pkg, err := load.Dir(fileSys, dir, opts.output)
	if err != nil {
		return err
	}

	vars := detect.Vars(pkg.Files, opts.name, opts.unexported)
	if len(vars) == 0 {
		logger.Info("no package variables", "dir", dir, "package", importPath)
	}

	code, err := generate.ModuleTable(generate.Info{
		PkgName:   pkg.Name,
		PkgPath:   importPath,
		TableName: opts.name,
		Vars:      vars,
	})
	if err != nil {
		return err
	}

	logger.Debug("generated module table", "dir", dir, "package", importPath, "vars", len(vars), "check", opts.check)

	if opts.check {
		return output.Check(code, dir, opts.output, fileSys, out)
	}

	return output.Write(code, dir, opts.output, fileSys, out)
}

// parseArgs parses command-line arguments into cliArgs.
func parseArgs(args []string) (cliArgs, error) {
	var parsed cliArgs

	parser, err := arg.NewParser(arg.Config{Program: "mokitgen"}, &parsed)
	if err != nil {
		return cliArgs{}, fmt.Errorf("failed to create argument parser: %w", err)
	}

	var cmdArgs []string
	if len(args) > 1 {
		cmdArgs = args[1:]
	}

	err = parser.Parse(cmdArgs)
	if err != nil {
		return cliArgs{}, fmt.Errorf("failed to parse arguments: %w", err)
	}

	return parsed, nil
}

func resolveOptions(parsed cliArgs, cfg config.Config) options {
	opts := options{
		dirs:       parsed.Dirs,
		name:       parsed.Name,
		output:     parsed.Output,
		unexported: parsed.Unexported,
		check:      parsed.Check,
		jobs:       parsed.Jobs,
	}

	if len(opts.dirs) == 0 {
		opts.dirs = []string{"."}
	}

	if opts.name == "" {
		opts.name = cfg.Generate.Name
	}

	if opts.output == "" {
		opts.output = cfg.Generate.Output
	}

	return opts
}

// unexported variables.
var (
	errInvalidArgs = errors.New("invalid arguments")
)
