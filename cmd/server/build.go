// CLAUDE:SUMMARY CLI subcommands that build the reference dataset from a people file or generate fake datasets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hazyhaar/namefinder/pkg/refdata"
	"github.com/hazyhaar/namefinder/pkg/source"
)

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	in := fs.String("in", "", "people file to read (csv, parquet, xlsx, xls)")
	out := fs.String("out", "data/people.parquet", "reference dataset to write (.parquet or .csv)")
	fs.Parse(args)

	if *in == "" {
		fmt.Fprintln(os.Stderr, "Usage: namefinder build -in <file> [-out <file>]")
		os.Exit(1)
	}

	start := time.Now()
	src, err := source.Open(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *in, err)
		os.Exit(1)
	}
	people, err := refdata.Build(context.Background(), src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}
	if err := writeDataset(*out, people, "build "+filepath.Base(*in)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Built %s people into %s in %s\n",
		humanize.Comma(int64(len(people))), *out, time.Since(start).Round(time.Millisecond))
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	rows := fs.Int("rows", 50000, "number of rows")
	seed := fs.Uint64("seed", 1, "random seed")
	kind := fs.String("kind", "people", "dataset kind: people (reference) or trial (comparison file)")
	out := fs.String("out", "data/people.parquet", "file to write (.parquet or .csv)")
	fs.Parse(args)

	start := time.Now()
	switch *kind {
	case "people":
		people := refdata.Generate(*rows, *seed)
		if err := writeDataset(*out, people, fmt.Sprintf("generate seed=%d", *seed)); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	case "trial":
		if err := refdata.WriteTrial(*out, refdata.GenerateTrial(*rows, *seed)); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown kind %q (want people or trial)\n", *kind)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s %s rows to %s in %s\n",
		humanize.Comma(int64(*rows)), *kind, *out, time.Since(start).Round(time.Millisecond))
}

// writeDataset writes people and the manifest next to them.
func writeDataset(path string, people []refdata.Person, origin string) error {
	if err := refdata.Write(path, people); err != nil {
		return err
	}
	m := refdata.NewManifest(path, people, origin)
	if err := refdata.WriteManifest(filepath.Dir(path), m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
