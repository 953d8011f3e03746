// Command auditexport is an offline tool that reads a bridged sqlite
// database and writes its audit trail and terminal redeem records to
// newline-delimited JSON for downstream analysis, mirroring the
// "export what's in storage, don't touch the live node" pattern spec.md
// expects of an audit tool.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/btc-parachain/core/storage"
)

func main() {
	var dbPath, outPath, component string
	var fromStr, toStr string
	flag.StringVar(&dbPath, "db", "./bridged-data/state.db", "path to the bridged sqlite database")
	flag.StringVar(&outPath, "out", "-", "output path, or - for stdout")
	flag.StringVar(&component, "component", "", "restrict the audit trail to one component (blank for all)")
	flag.StringVar(&fromStr, "from", "", "RFC3339 lower bound (default: epoch)")
	flag.StringVar(&toStr, "to", "", "RFC3339 upper bound (default: now)")
	flag.Parse()

	from := time.Unix(0, 0).UTC()
	if fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			log.Fatalf("parse -from: %v", err)
		}
		from = parsed
	}
	to := time.Now().UTC()
	if toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			log.Fatalf("parse -to: %v", err)
		}
		to = parsed
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("open %s: %v", dbPath, err)
	}
	defer store.Close()

	out := os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("create %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}

	entries, err := store.AuditTrail(component, from, to)
	if err != nil {
		log.Fatalf("query audit trail: %v", err)
	}
	redeems, err := store.RedeemRequests()
	if err != nil {
		log.Fatalf("query redeem requests: %v", err)
	}
	headers, err := store.RelayHeaders()
	if err != nil {
		log.Fatalf("query relay headers: %v", err)
	}

	enc := json.NewEncoder(out)
	for _, e := range entries {
		if err := enc.Encode(exportRecord{Kind: "audit", Audit: &e}); err != nil {
			log.Fatalf("encode audit entry: %v", err)
		}
	}
	for _, r := range redeems {
		if err := enc.Encode(exportRecord{Kind: "redeem", Redeem: &r}); err != nil {
			log.Fatalf("encode redeem record: %v", err)
		}
	}
	for _, h := range headers {
		if err := enc.Encode(exportRecord{Kind: "header", Header: &h}); err != nil {
			log.Fatalf("encode header record: %v", err)
		}
	}

	log.Printf("exported %d audit entries, %d redeem records, %d headers", len(entries), len(redeems), len(headers))
}

// exportRecord is one line of the newline-delimited JSON export; exactly
// one of its pointer fields is set per record, tagged by Kind.
type exportRecord struct {
	Kind   string                        `json:"kind"`
	Audit  *storage.AuditEntry           `json:"audit,omitempty"`
	Redeem *storage.RedeemRequestRecord  `json:"redeem,omitempty"`
	Header *storage.RelayHeaderRecord    `json:"header,omitempty"`
}
