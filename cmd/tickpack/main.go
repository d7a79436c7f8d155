// Command tickpack encodes tick series into archives and manages them in a blob store.
//
// Usage:
//
//	tickpack [-config tickpack.yaml] [-codec json|go-json] [-pretty] <command> [flags] [args]
//
// Commands:
//
//	encode   read CSV or Parquet files and store them as archives
//	decode   write a stored archive back out as CSV or Parquet
//	inspect  print archive metadata as JSON
//	verify   check every checksum and decode, print a report as JSON
//	list     list stored archives
//	delete   remove stored archives
//	demo     encode a synthetic series and print compression statistics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hupe1980/tickpack/codec"
	"github.com/hupe1980/tickpack/internal/config"
)

func main() {
	// Load environment variables from .env if present.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "tickpack: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"encode":  {"encode [-name NAME] FILE...", runEncode},
	"decode":  {"decode [-out FILE] NAME", runDecode},
	"inspect": {"inspect NAME...", runInspect},
	"verify":  {"verify NAME...", runVerify},
	"list":    {"list [PREFIX]", runList},
	"delete":  {"delete NAME...", runDelete},
	"demo":    {"demo [-ticks N] [-symbols N]", runDemo},
}

var commandOrder = []string{"encode", "decode", "inspect", "verify", "list", "delete", "demo"}

// errVerifyFailed makes run exit non-zero without printing another message.
var errVerifyFailed = errors.New("verification failed")

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("tickpack", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to a YAML configuration file")
	codecName := flags.String("codec", codec.Default.Name(), "JSON encoder for command output (json, go-json)")
	pretty := flags.Bool("pretty", false, "indent JSON output")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: tickpack [-config FILE] [-codec NAME] [-pretty] <command> [args]")
		fmt.Fprintln(stderr, "\ncommands:")
		for _, name := range commandOrder {
			fmt.Fprintf(stderr, "  %s\n", commands[name].usage)
		}
		fmt.Fprintln(stderr, "\nflags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	cmd, ok := commands[flags.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "tickpack: unknown command %q\n", flags.Arg(0))
		flags.Usage()
		return 2
	}

	out, ok := codec.ByName(*codecName)
	if !ok {
		fmt.Fprintf(stderr, "tickpack: unknown codec %q\n", *codecName)
		return 2
	}
	if *pretty {
		out = codec.Indent(out, "  ")
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "tickpack: %v\n", err)
		return 1
	}

	a, err := newApp(ctx, cfg, out, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "tickpack: %v\n", err)
		return 1
	}

	if err := cmd.run(ctx, a, flags.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errVerifyFailed) {
			fmt.Fprintf(stderr, "tickpack %s: %v\n", flags.Arg(0), err)
		}
		return 1
	}
	return 0
}
