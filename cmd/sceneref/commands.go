package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/sceneref"
	"github.com/jward/sceneref/internal/discover"
	"github.com/jward/sceneref/internal/watch"
)

var (
	flagFilter   string
	flagUsages   bool
	flagMermaid  bool
	flagAll      bool
	flagDebounce time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect [folder...]",
	Short: "List the types declared under the given folders",
	Long:  "Parses every C# unit under the folders (default: project.folders) and prints one record per type with its members and dependencies.",
	RunE:  runCollect,
}

var showCmd = &cobra.Command{
	Use:   "show <TypeName>",
	Short: "Show one type with its members and scene usages",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var graphCmd = &cobra.Command{
	Use:   "graph [folder...]",
	Short: "Print the dependency graph",
	Long:  "Prints the dependency edges between collected types. With --mermaid, writes a Mermaid class diagram instead.",
	RunE:  runGraph,
}

var usagesCmd = &cobra.Command{
	Use:   "usages [TypeName]",
	Short: "Find the scene nodes a type is attached to",
	Long:  "Scans the project's scenes for nodes carrying a component of exactly the given type. Results are cached until the type's script changes.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUsages,
}

var locateCmd = &cobra.Command{
	Use:   "locate <scene> <node/path>",
	Short: "Check that a node path exists in a scene",
	Args:  cobra.ExactArgs(2),
	RunE:  runLocate,
}

var watchCmd = &cobra.Command{
	Use:   "watch [folder...]",
	Short: "Re-collect whenever scripts change",
	RunE:  runWatch,
}

func init() {
	collectCmd.Flags().StringVar(&flagFilter, "filter", "", "case-insensitive match on file, type, folder or member")
	collectCmd.Flags().BoolVar(&flagUsages, "usages", false, "also scan scenes for every listed type")
	graphCmd.Flags().BoolVar(&flagMermaid, "mermaid", false, "write a Mermaid class diagram")
	usagesCmd.Flags().BoolVar(&flagAll, "all", false, "report every collected type")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-collecting")

	rootCmd.AddCommand(showCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(args)
	if err != nil {
		return outputError("collect", err)
	}
	defer closeEngine(e)

	metas, warns, err := e.CollectProject(ctx)
	if err != nil {
		return outputError("collect", err)
	}
	metas = sceneref.Filter(metas, flagFilter)
	if flagUsages {
		scanWarns, err := e.UsagesAll(ctx, metas)
		if err != nil {
			return outputError("collect", err)
		}
		warns = append(warns, scanWarns...)
	}
	logWarnings(warns)
	return outputResult(CLIResult{
		Command:  "collect",
		Results:  typesToCLI(metas),
		Warnings: warningsToCLI(warns),
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := openEngine(nil)
	if err != nil {
		return outputError("show", err)
	}
	defer closeEngine(e)

	meta, _, warns, err := e.Usages(cmd.Context(), args[0])
	if err != nil {
		return outputError("show", err)
	}
	logWarnings(warns)
	return outputResult(CLIResult{
		Command:  "show",
		Results:  typeToCLI(meta),
		Warnings: warningsToCLI(warns),
	})
}

func runGraph(cmd *cobra.Command, args []string) error {
	e, err := openEngine(args)
	if err != nil {
		return outputError("graph", err)
	}
	defer closeEngine(e)

	metas, warns, err := e.CollectProject(cmd.Context())
	if err != nil {
		return outputError("graph", err)
	}
	logWarnings(warns)
	if flagMermaid {
		return sceneref.WriteMermaid(os.Stdout, metas)
	}
	return outputResult(CLIResult{
		Command:  "graph",
		Results:  edgesToCLI(sceneref.Edges(metas)),
		Warnings: warningsToCLI(warns),
	})
}

func runUsages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if flagAll == (len(args) == 1) {
		return outputError("usages", fmt.Errorf("give exactly one of a type name or --all"))
	}
	e, err := openEngine(nil)
	if err != nil {
		return outputError("usages", err)
	}
	defer closeEngine(e)

	if !flagAll {
		meta, recs, warns, err := e.Usages(ctx, args[0])
		if err != nil {
			return outputError("usages", err)
		}
		logWarnings(warns)
		return outputResult(CLIResult{
			Command:  "usages",
			Results:  CLITypeUsages{Type: meta.Identity.FullName, Usages: usagesToCLI(recs)},
			Warnings: warningsToCLI(warns),
		})
	}

	metas, warns, err := e.CollectProject(ctx)
	if err != nil {
		return outputError("usages", err)
	}
	scanWarns, err := e.UsagesAll(ctx, metas)
	if err != nil {
		return outputError("usages", err)
	}
	warns = append(warns, scanWarns...)
	logWarnings(warns)

	results := make([]CLITypeUsages, len(metas))
	for i, m := range metas {
		results[i] = CLITypeUsages{Type: m.Identity.FullName, Usages: usagesToCLI(m.Usages)}
	}
	return outputResult(CLIResult{
		Command:  "usages",
		Results:  results,
		Warnings: warningsToCLI(warns),
	})
}

func runLocate(cmd *cobra.Command, args []string) error {
	e, err := openEngine(nil)
	if err != nil {
		return outputError("locate", err)
	}
	defer closeEngine(e)

	found, err := e.Locate(cmd.Context(), args[0], args[1])
	if err != nil {
		return outputError("locate", err)
	}
	return outputResult(CLIResult{
		Command: "locate",
		Results: CLILocate{Scene: args[0], Path: args[1], Found: found},
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(args)
	if err != nil {
		return outputError("watch", err)
	}
	defer closeEngine(e)

	folders := args
	if len(folders) == 0 {
		folders = cfg.Project.Folders
	}
	roots := make([]string, len(folders))
	for i, f := range folders {
		roots[i] = filepath.Join(e.Root(), filepath.FromSlash(f))
	}

	recollect := func(ctx context.Context, changed []string) {
		metas, warns, err := e.CollectProject(ctx)
		if err != nil {
			logger.Error("sceneref: collect failed", slog.String("error", err.Error()))
			return
		}
		logWarnings(warns)
		logger.Info("sceneref: recollected", slog.Int("changed", len(changed)), slog.Int("types", len(metas)))
		if err := outputResult(CLIResult{
			Command:  "watch",
			Results:  typesToCLI(metas),
			Warnings: warningsToCLI(warns),
		}); err != nil {
			logger.Error("sceneref: write failed", slog.String("error", err.Error()))
		}
	}
	recollect(ctx, nil)

	err = watch.Watch(ctx, roots, []string{discover.UnitExt}, logger, flagDebounce, recollect)
	if err != nil && ctx.Err() == nil {
		return outputError("watch", err)
	}
	return nil
}
