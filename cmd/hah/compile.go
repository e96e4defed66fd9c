package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recera/hah/cmd/hah/internal/compiler"
	"github.com/recera/hah/cmd/hah/internal/ui"
	"github.com/recera/hah/cmd/hah/internal/watch"
)

type compileOptions struct {
	dir    string
	stdout bool
	debug  bool
	watch  bool
}

func newCompileCommand() *cobra.Command {
	var opts compileOptions

	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Compile .hah files",
		Long: `Compiles the given .hah files, or every .hah file below --dir, writing
each result next to its source with the configured output extension.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Directory to compile recursively (default: current directory when no files are given)")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Print generated source instead of writing files")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Print a numbered, highlighted listing instead of writing files")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Recompile when sources change")

	return cmd
}

func runCompile(ctx context.Context, files []string, opts compileOptions) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	defer proj.Close()

	if proj.cfg.Debug {
		opts.debug = true
	}
	if len(files) == 0 && opts.dir == "" {
		opts.dir = "."
	}

	c := proj.compiler()
	out := ui.NewPrinter(os.Stdout)

	if opts.dir != "" {
		found, err := compiler.FindSources(opts.dir)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}

	startTime := time.Now()
	failed := 0
	for _, file := range files {
		if err := compileOne(c, out, file, opts); err != nil {
			log.Printf("❌ %v", err)
			failed++
		}
	}

	if !opts.stdout && !opts.debug {
		log.Printf("⚡ Compiled %d files in %v", len(files)-failed, time.Since(startTime).Round(time.Millisecond))
	}

	if opts.watch {
		root := opts.dir
		if root == "" {
			root = "."
		}
		return watchAndCompile(ctx, c, out, root, opts)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failed, len(files))
	}
	return nil
}

func compileOne(c *compiler.Compiler, out *ui.Printer, file string, opts compileOptions) error {
	switch {
	case opts.debug:
		res, err := c.CompileFile(file)
		if err != nil {
			return err
		}
		fmt.Println(out.Title(res.Source))
		fmt.Print(out.Listing(res.Output))
		fmt.Print(out.Diagnostics(res.Source, res.Diagnostics))
		return nil

	case opts.stdout:
		res, err := c.CompileFile(file)
		if err != nil {
			return err
		}
		fmt.Print(res.Output)
		reportDiagnostics(res)
		return nil

	default:
		res, err := c.ProcessFile(file)
		if err != nil {
			return err
		}
		suffix := ""
		if res.Cached {
			suffix = " (cached)"
		}
		fmt.Println(out.Success(fmt.Sprintf("Generated %s from %s%s", c.OutputPath(res.Source), res.Source, suffix)))
		reportDiagnostics(res)
		return nil
	}
}

func reportDiagnostics(res *compiler.Result) {
	for _, d := range res.Diagnostics {
		log.Printf("⚠️  %s:%d: %s", res.Source, d.Line, d.Reason)
	}
}

func watchAndCompile(ctx context.Context, c *compiler.Compiler, out *ui.Printer, root string, opts compileOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(root, watch.Options{Filter: watch.Extension(compiler.SourceExt)})
	if err != nil {
		return err
	}

	log.Printf("👀 Watching %s for changes...", root)

	err = w.Run(ctx, func(changes []watch.Change) {
		for _, file := range affectedFiles(c, changes) {
			if err := compileOne(c, out, file, opts); err != nil {
				log.Printf("❌ %v", err)
			}
		}
	})
	if errors.Is(err, context.Canceled) {
		log.Println("🛑 Stopped watching")
		return nil
	}
	return err
}

// affectedFiles returns the sources to rebuild after changes, each once.
func affectedFiles(c *compiler.Compiler, changes []watch.Change) []string {
	var files []string
	seen := make(map[string]bool)

	for _, ch := range changes {
		var affected []string
		if ch.Removed() {
			affected = c.Dependents(ch.Path)
			c.Forget(ch.Path)
			log.Printf("🗑️  %s removed", filepath.Base(ch.Path))
		} else {
			affected = c.Invalidate(ch.Path)
		}

		for _, file := range affected {
			if seen[file] {
				continue
			}
			if _, err := os.Stat(file); err != nil {
				continue
			}
			seen[file] = true
			files = append(files, file)
		}
	}

	return files
}
