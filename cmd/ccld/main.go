// Command ccld is a standalone native linker: a thin CLI wrapper
// around internal/linker for exercising object/archive/shared-library
// resolution outside a full compiler driver (spec.md §6's GCC-style
// driver remains an explicit non-goal; this is the test-tool sibling
// mirroring cmd_local/link beside cmd_local/compile in the Go
// toolchain). LINKER_DEBUG (spec.md §6) is read directly by
// internal/diag.NewPhaseLogger; -v sets the same verbose mode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dj707chen/nativecc/internal/linker"
)

func main() {
	var output, entry string
	var libPaths, libs, retain []string
	var shared, gcSections, wholeArchive, verbose bool

	root := &cobra.Command{
		Use:   "ccld <inputs...>",
		Short: "link objects, archives, and shared libraries into an ELF executable or shared object",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := linker.Options{
				Inputs: args, LibPaths: libPaths, Libs: libs, Entry: entry,
				Shared: shared, GCSections: gcSections, WholeArchive: wholeArchive,
				Retain: retain, Verbose: verbose,
			}
			out, err := linker.Link(opts)
			if err != nil {
				return err
			}
			if output == "" {
				output = "a.out"
			}
			mode := os.FileMode(0o644)
			if !shared {
				mode = 0o755
			}
			return os.WriteFile(output, out, mode)
		},
	}
	root.Flags().StringVarP(&output, "output", "o", "", "output file path (default a.out)")
	root.Flags().StringVarP(&entry, "entry", "e", "", "entry point symbol (default _start)")
	root.Flags().StringSliceVarP(&libPaths, "library-path", "L", nil, "add a library search path")
	root.Flags().StringSliceVarP(&libs, "library", "l", nil, "link against a shared library by SONAME")
	root.Flags().StringSliceVar(&retain, "retain", nil, "keep a symbol's section alive under --gc-sections")
	root.Flags().BoolVar(&shared, "shared", false, "produce a shared object (ET_DYN) instead of an executable")
	root.Flags().BoolVar(&gcSections, "gc-sections", false, "discard unreachable sections")
	root.Flags().BoolVar(&wholeArchive, "whole-archive", false, "pull in every archive member unconditionally")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace linker phases (also enabled by LINKER_DEBUG)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ccld:", err)
		os.Exit(1)
	}
}
