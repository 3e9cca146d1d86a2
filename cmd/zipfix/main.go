// zipfix rewrites a ZIP or JAR archive so that every timestamp it carries
// is normalized and its manifest comes first. Two builds with identical
// content then produce byte-identical archives.
//
// Usage:
//
//	zipfix [flags] <input> <output>
//
// The input and output may be the same path.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/meigma/zipfix"
)

const (
	exitOK    = 0
	exitFault = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	var (
		verbose bool
		zip64   string
		verify  bool
	)

	flagSet := pflag.NewFlagSet("zipfix", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every entry written")
	flagSet.StringVar(&zip64, "zip64", "as-needed", "zip64 policy: as-needed or never")
	flagSet.BoolVar(&verify, "verify", false, "read back and check the output before replacing it")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flagSet.NArg() < 2 {
		printUsage(stderr, flagSet)
		return exitUsage
	}

	addressing, err := zipfix.ParseAddressing(zip64)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	in, out := flagSet.Arg(0), flagSet.Arg(1)
	res, err := zipfix.RewriteFile(in, out,
		zipfix.RewriteWithLogger(logger),
		zipfix.RewriteWithAddressing(addressing),
		zipfix.RewriteWithVerify(verify),
	)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFault
	}

	logger.Debug("done",
		"output", out,
		"entries", res.Entries,
		"size", res.Size,
		"digest", res.Digest.String())
	return exitOK
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, `Usage: zipfix [flags] <input> <output>

Rewrites a ZIP or JAR archive with every timestamp normalized and the
manifest moved to the front. <input> and <output> may be the same file.

Flags:
`)
	flagSet.PrintDefaults()
}
