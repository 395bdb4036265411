// Command ccas is a standalone native assembler: a thin CLI wrapper
// around internal/asm/{x86,arm64,riscv64} for exercising the core's
// object-file emission outside a full compiler driver (spec.md §6's
// GCC-style driver is a separate, explicit non-goal). Its input is a
// small JSON description of already-lowered function bytes (the
// shape internal/compiler's Pipeline produces internally) rather than
// assembly text, since this core's text assemblers are a deferred
// companion to internal/codegen's encoders (see DESIGN.md).
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/asm/arm64"
	"github.com/dj707chen/nativecc/internal/asm/riscv64"
	"github.com/dj707chen/nativecc/internal/asm/x86"
	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/diag"
)

type relocDoc struct {
	Offset int64  `json:"offset"`
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Addend int64  `json:"addend"`
}

type functionDoc struct {
	Name    string     `json:"name"`
	CodeHex string     `json:"code_hex"`
	Global  bool       `json:"global"`
	Relocs  []relocDoc `json:"relocs"`
}

type moduleDoc struct {
	Functions []functionDoc `json:"functions"`
}

func main() {
	var target, output string
	var verbose bool

	root := &cobra.Command{
		Use:   "ccas <input.json>",
		Short: "assemble a lowered-function description into an ELF64 object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := diag.NewPhaseLogger(verbose)
			logger.Info("assembling " + args[0])

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc moduleDoc
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("ccas: %w", err)
			}

			funcs := make([]asm.FunctionCode, len(doc.Functions))
			for i, f := range doc.Functions {
				code, err := hex.DecodeString(f.CodeHex)
				if err != nil {
					return fmt.Errorf("ccas: function %s: %w", f.Name, err)
				}
				relocs := make([]backend.Relocation, len(f.Relocs))
				for j, r := range f.Relocs {
					relocs[j] = backend.Relocation{Offset: r.Offset, Symbol: r.Symbol, Kind: backend.RelocKind(r.Kind), Addend: r.Addend}
				}
				funcs[i] = asm.FunctionCode{Name: f.Name, Code: code, Global: f.Global, Relocs: relocs}
			}

			var obj []byte
			switch target {
			case "x86-64", "x86_64", "amd64":
				obj, err = x86.Assemble(funcs)
			case "arm64", "aarch64":
				obj, err = arm64.Assemble(funcs)
			case "riscv64":
				obj, err = riscv64.Assemble(funcs)
			default:
				return fmt.Errorf("ccas: unknown -march %q", target)
			}
			if err != nil {
				return err
			}
			if output == "" {
				output = "a.o"
			}
			return os.WriteFile(output, obj, 0o644)
		},
	}
	root.Flags().StringVar(&target, "march", "x86-64", "target architecture: x86-64, arm64, riscv64")
	root.Flags().StringVarP(&output, "output", "o", "", "output object file path (default a.o)")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace assembler phases")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ccas:", err)
		os.Exit(1)
	}
}
