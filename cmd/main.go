package main

import (
	"flag"
	"log"
	"os"
)

type Flags struct {
	ConfigPath  string
	IngestPath  string
	IngestURL   string
	Mode        string
	AnalyzeText string
	BatchPath   string
	Floor       float64
	RemoveName  string
	ShowStats   bool
	ShowLibrary bool
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.IngestPath, "ingest", "", "Spec document (text or HTML file) to ingest")
	flag.StringVar(&flags.IngestURL, "ingest-url", "", "Spec document URL to fetch and ingest")
	flag.StringVar(&flags.Mode, "mode", "append", "Ingest mode: append or replace")
	flag.StringVar(&flags.AnalyzeText, "analyze", "", "Infraction text to analyze")
	flag.StringVar(&flags.BatchPath, "batch", "", "File with one infraction per line to analyze")
	flag.Float64Var(&flags.Floor, "floor", 0, "Optional confidence floor (raises the repeal bar)")
	flag.StringVar(&flags.RemoveName, "remove", "", "Remove a document from the spec library")
	flag.BoolVar(&flags.ShowStats, "stats", false, "Print index statistics")
	flag.BoolVar(&flags.ShowLibrary, "library", false, "Print the spec library manifest")
	flag.Parse()

	if flags.IngestPath == "" && flags.IngestURL == "" && flags.AnalyzeText == "" &&
		flags.BatchPath == "" && flags.RemoveName == "" && !flags.ShowStats && !flags.ShowLibrary {
		flag.Usage()
		os.Exit(2)
	}

	return flags
}
