// Copyright 2025 Tradeledger Authors
//
// ratefixctl converts a rate-fix upload file (one fix per line, e.g.
// "LIBOR 16-March-2016 1M = 0.678") into the YAML seed document a
// rate-fix oracle loads at startup. Parse failures report the offending
// line number and abort with a non-zero exit code.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tradeledger/core/pkg/config"
	"github.com/tradeledger/core/pkg/oracle"
)

func main() {
	var (
		inPath   = flag.String("in", "-", "Rate-fix upload file to read, or - for stdin")
		outPath  = flag.String("out", "-", "Oracle seed document to write, or - for stdout")
		showHelp = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	if err := run(*inPath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "ratefixctl: %v\n", err)
		os.Exit(1)
	}
}

func run(inPath, outPath string) error {
	var in io.Reader = os.Stdin
	if inPath != "-" {
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	fixes, err := oracle.ParseRateFile(in)
	if err != nil {
		return err
	}

	doc := config.OracleSeedDocument{Fixes: make([]config.OracleSeedEntry, 0, len(fixes))}
	for _, f := range fixes {
		doc.Fixes = append(doc.Fixes, config.OracleSeedEntry{
			Index: f.Index,
			Tenor: f.Tenor,
			Date:  f.Date.Format("2006-01-02"),
			Rate:  int64(f.Rate),
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode seed document: %w", err)
	}

	if outPath == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}

func printHelp() {
	fmt.Println(`ratefixctl - convert rate-fix upload files to oracle seed documents

Usage:
  ratefixctl [-in fixes.txt] [-out fixes.yaml]

Input format, one fix per line ('#' lines and blank lines ignored):
  <index name with spaces> <DD-MonthName-YYYY> <tenor> = <decimal rate>
  LIBOR 16-March-2016 1M = 0.678

Tenor is <n>D, <n>M or <n>Y. Rates are written to the seed document in
hundred-thousandths of a percentage point.`)
}
