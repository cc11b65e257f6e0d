package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cli.go is the peripheral CLI surface spec.md §6 describes "for
// implementer completeness." Shaped after ajroetker-goat's cobra command
// tree (`goat source [-o output_directory]`, persistent flags for target,
// options, verbosity): a root `tylc` command with a `build` subcommand
// taking the AST-as-JSON input file (see ast_json.go) and a `version`
// subcommand, replacing flapc's own flag-based CLI outright (spec.md §6,
// SPEC_FULL.md §2).

const toolVersion = "0.1.0"

var (
	flagOutput  string
	flagDLL     bool
	flagDef     string
	flagOptStr  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tylc",
	Short: "tylc compiles a Tyl/Flex AST into a native Windows PE executable or DLL",
}

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "compile an AST (JSON) into a PE executable or DLL",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print tylc's version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(toolVersion)
	},
}

func init() {
	buildCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output file path (defaults to a.exe/a.dll)")
	buildCmd.Flags().BoolVar(&flagDLL, "dll", false, "emit a DLL instead of an EXE")
	buildCmd.Flags().StringVar(&flagDef, "def", "", "explicit export list for a DLL build")
	buildCmd.Flags().StringVarP(&flagOptStr, "optimize", "O", "0", "optimization level: 0,1,2,3,s,z,fast")
	buildCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "print diagnostic output to stderr")

	rootCmd.AddCommand(buildCmd, versionCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	Verbose = flagVerbose

	opt, err := ParseOptLevel(flagOptStr)
	if err != nil {
		return err
	}
	kind := OutputEXE
	if flagDLL {
		kind = OutputDLL
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	prog, err := DecodeProgram(data)
	if err != nil {
		return err
	}

	output := flagOutput
	if output == "" {
		if kind == OutputDLL {
			output = "a.dll"
		} else {
			output = "a.exe"
		}
	}

	opts := CompileOptions{Output: kind, Opt: opt, DefFile: flagDef}
	compiler := NewCompiler(prog, opts, NewPEWriter(), NewStaticMonomorphizer(nil), nil)
	bytes, err := compiler.Compile()
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, bytes, 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	logf("wrote %s (%d bytes)", output, len(bytes))
	return nil
}

// Execute runs the root command, matching ajroetker-goat's main()'s
// error-to-stderr-then-exit-nonzero convention.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
