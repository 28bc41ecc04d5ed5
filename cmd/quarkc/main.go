// quarkc analyzes a syntax tree produced by an external parser: it resolves
// every class and template, folds constants, reports diagnostics and
// optionally writes the resolved graph.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
	"github.com/chazu/quarkc/diag"
	"github.com/chazu/quarkc/graph"
	"github.com/chazu/quarkc/sema"
)

// Exit codes.
const (
	exitOK      = 0
	exitErrors  = 1
	exitFailure = 2
)

const stdinPath = "-"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quarkc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", "", "Directory to search for quarkc.toml (default: the input's directory)")
	dump := fs.String("dump", "", "Write the resolved graph: yaml or cbor")
	out := fs.String("o", "", "Output file for -dump (default: stdout)")
	verbose := fs.Int("v", 0, "Log verbosity (0 quiet, 1 info, 2 debug)")
	logFile := fs.String("log", "", "Write logs to this file instead of stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: quarkc [options] tree.cbor\n\n")
		fmt.Fprintf(stderr, "Analyzes a CBOR-encoded syntax tree (\"-\" reads stdin).\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  quarkc prog.cbor                  # Report diagnostics\n")
		fmt.Fprintf(stderr, "  quarkc -dump yaml prog.cbor       # Print the resolved graph\n")
		fmt.Fprintf(stderr, "  quarkc -dump cbor -o g.cbor -     # Read stdin, write the graph\n")
	}
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitFailure
	}
	if *dump != "" && *dump != "yaml" && *dump != "cbor" {
		fmt.Fprintf(stderr, "Error: unknown -dump format %q\n", *dump)
		return exitFailure
	}

	var logPath *string
	if *logFile != "" {
		logPath = logFile
	}
	commonlog.Configure(*verbose, logPath)
	log := commonlog.GetLogger("quarkc")

	input := fs.Arg(0)
	data, err := readInput(input, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	tree, err := ast.DecodeProgram(data)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	cfg, err := loadConfig(*configDir, input)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if cfg.Dir != "" {
		log.Infof("using %s", filepath.Join(cfg.Dir, config.FileName))
	}

	collector := diag.NewCollector()
	var sink diag.Sink = collector
	if *verbose > 0 {
		sink = diag.Tee{collector, diag.NewLogSink("quarkc.diag")}
	}
	prog, err := sema.Analyze(tree, *cfg, sink)
	for _, d := range collector.All() {
		fmt.Fprintln(stderr, d)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitErrors
	}

	if *dump != "" {
		b, err := graph.Marshal(graph.Build(prog), *dump)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		if err := writeOutput(*out, b, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}

	if n := len(collector.Errors()); n > 0 {
		fmt.Fprintf(stderr, "%d error(s)\n", n)
		return exitErrors
	}
	return exitOK
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdinPath {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return data, nil
}

// loadConfig looks for quarkc.toml upward from dir, or from the input's
// directory when dir is empty. Without a file the defaults apply.
func loadConfig(dir, input string) (*config.Config, error) {
	if dir == "" {
		dir = "."
		if input != stdinPath {
			dir = filepath.Dir(input)
		}
	}
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return cfg, nil
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
