package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"TransportBench/internal/export"
)

func main() {
	compare := flag.Bool("compare", false, "Compare the summaries of two or more runs instead of combining a client and a server report.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s <client_json> <server_json> <output_csv>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -compare <output_csv> <report_json> <report_json>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	var (
		outputPath string
		write      func(*os.File) error
	)
	if *compare {
		if flag.NArg() < 3 {
			flag.Usage()
			os.Exit(1)
		}
		outputPath = flag.Arg(0)
		docs := make([]*export.Document, 0, flag.NArg()-1)
		for _, path := range flag.Args()[1:] {
			doc, err := export.ReadDocument(path)
			if err != nil {
				log.Fatalf("Failed to load report: %v", err)
			}
			docs = append(docs, doc)
		}
		write = func(out *os.File) error { return export.Compare(out, docs) }
	} else {
		if flag.NArg() != 3 {
			flag.Usage()
			os.Exit(1)
		}
		client, err := export.ReadDocument(flag.Arg(0))
		if err != nil {
			log.Fatalf("Failed to load client report: %v", err)
		}
		server, err := export.ReadDocument(flag.Arg(1))
		if err != nil {
			log.Fatalf("Failed to load server report: %v", err)
		}
		outputPath = flag.Arg(2)
		write = func(out *os.File) error { return export.Combine(out, client, server) }
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("Failed to create '%s': %v", outputPath, err)
	}
	defer out.Close()

	if err := write(out); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}
	log.Printf("CSV generated: %s", outputPath)
}
