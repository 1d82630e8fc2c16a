//go:build linux

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softhpi/adapter"
	"github.com/ardnew/softhpi/config"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hal/linux"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// bootResult is the outcome of creating one adapter.
type bootResult struct {
	name    string
	adapter *adapter.Adapter
	err     error
}

// bootAll creates an adapter for every resource, at most jobs at a time.
// Every resource is attempted; the returned error is the first failure.
func bootAll(sub *adapter.Subsystem, resources []*hal.BusResource, jobs int) ([]bootResult, error) {
	results := make([]bootResult, len(resources))

	var g errgroup.Group
	g.SetLimit(max(jobs, 1))
	for i, res := range resources {
		g.Go(func() error {
			a, err := sub.CreateAdapter(res)
			results[i] = bootResult{name: res.Name, adapter: a, err: err}
			if err != nil {
				return fmt.Errorf("%s: %w", res.Name, err)
			}
			return nil
		})
	}
	return results, g.Wait()
}

func printResults(out io.Writer, results []bootResult) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tRESULT")
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(tw, "%s\t%v\n", r.name, r.err)
			continue
		}
		fmt.Fprintf(tw, "%s\tadapter %d\n", r.name, r.adapter.Index())
	}
	return tw.Flush()
}

// report lists the registered adapters through subsystem and adapter
// messages, the way a client of the message interface sees them.
func report(out io.Writer, sub *adapter.Subsystem) error {
	r := sub.Call(hpi.NewMessage(hpi.SubsysGetNumAdapters, 0, 0))
	if r.Error != hpi.ErrorNone {
		return fmt.Errorf("get adapter count: %s", r.Error)
	}
	n := int(r.Subsys.NumAdapters)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tKIND\tTYPE\tSERIAL\tVERSION\tOUT\tIN\tDSPS\tCACHE\tEXCHANGES\tRESYNCS\tSTATE")
	for pos := range n {
		r := sub.Call(hpi.NewMessage(hpi.SubsysGetAdapter, 0, uint16(pos)))
		if r.Error != hpi.ErrorNone {
			continue // Deleted since the count was taken
		}
		index := r.Subsys.AdapterIndex

		a := sub.Registry().Find(int(index))
		if a == nil {
			continue
		}
		info := sub.Call(hpi.NewMessage(hpi.AdapterGetInfo, index, 0))
		state := "ok"
		switch {
		case a.Crashed():
			state = "crashed"
		case info.Error != hpi.ErrorNone:
			state = info.Error.String()
		}
		i := info.Adapter.Info
		stats := a.Stats()
		fmt.Fprintf(tw, "%d\t%s\t%#04x\t%d\t%#x\t%d\t%d\t%d\t%t\t%d\t%d\t%s\n",
			index, a.Kind(), r.Subsys.AdapterType, i.SerialNumber, i.Version,
			i.NumOStreams, i.NumIStreams, a.NumDSPs(), a.HasCache(),
			stats.Exchanges, stats.Resyncs, state)
	}
	return tw.Flush()
}

func runBoot(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("boot", flag.ContinueOnError)
	jobs := fs.Int("j", 4, "Adapters to boot in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}

	found, err := scan(cfg.Sysfs.Root, fs.Args())
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("no supported adapters: %w", pkg.ErrNoAdapter)
	}

	var (
		mappings  []*linux.Mapping
		resources []*hal.BusResource
		errs      []error
	)
	for _, c := range found {
		m, err := linux.Open(c.dev, linux.OpenOptions{Enable: true})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.dev.Address, err))
			continue
		}
		mappings = append(mappings, m)
		resources = append(resources, m.Resource)
	}
	defer func() {
		for _, m := range mappings {
			m.Close()
		}
	}()

	sub := adapter.NewSubsystem(nil, cfg.FirmwareSource(), cfg.AdapterOptions())
	defer sub.Close()

	results, err := bootAll(sub, resources, *jobs)
	if err != nil {
		errs = append(errs, err)
	}
	if err := printResults(out, results); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := report(out, sub); err != nil {
		return err
	}
	return errors.Join(errs...)
}
