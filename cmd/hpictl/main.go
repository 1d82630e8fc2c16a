//go:build linux

// Command hpictl lists, boots and exercises HPI audio adapters.
//
// Usage:
//
//	hpictl [-config file] [-v] list
//	hpictl [-config file] [-v] boot [-j jobs] [address...]
//	hpictl [-config file] [-v] sim [-stall n] [-hang]
//
// list scans the PCI tree for supported adapters. boot maps, boots and
// queries them in parallel. sim runs the same sequence against simulated
// adapters of every transport family and needs no hardware.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/ardnew/softhpi/config"
	"github.com/ardnew/softhpi/pkg"
	"github.com/ardnew/softhpi/pkg/prof"
)

// Component identifier for hpictl logging.
const componentCLI pkg.Component = "hpictl"

var (
	configPath = flag.String("config", "", "Configuration file (default $"+config.EnvConfig+")")
	verbose    = flag.Bool("v", false, "Enable debug logging")
	cpuProfile = flag.String("cpuprofile", "", "Write a CPU profile (needs -tags profile)")
	memProfile = flag.String("memprofile", "", "Write a heap profile on exit (needs -tags profile)")
)

type command struct {
	name  string
	usage string
	run   func(cfg *config.Config, args []string, out io.Writer) error
}

var commands = []command{
	{"list", "Scan the PCI tree for supported adapters", runList},
	{"boot", "Boot adapters and report their info", runBoot},
	{"sim", "Boot and exercise simulated adapters", runSim},
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(w, "  %-6s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	closer, err := cfg.Log.Apply(term.IsTerminal(int(os.Stderr.Fd())))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}

	name := flag.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := profiled(func() error { return c.run(cfg, flag.Args()[1:], os.Stdout) }); err != nil {
			pkg.LogError(componentCLI, name+" failed", "error", err)
			if closer != nil {
				closer.Close()
			}
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	usage()
	os.Exit(2)
}

// profiled runs fn inside a profiling session when one is requested.
func profiled(fn func() error) error {
	pc := prof.Config{CPU: *cpuProfile, Heap: *memProfile}
	if pc.Empty() {
		return fn()
	}
	if !prof.Enabled {
		pkg.LogWarn(componentCLI, "profiling not compiled in, rebuild with -tags profile")
		return fn()
	}
	session, err := prof.Start(pc)
	if err != nil {
		return err
	}
	err = fn()
	if serr := session.Stop(); serr != nil {
		pkg.LogWarn(componentCLI, "profile not written", "error", serr)
	}
	return err
}
