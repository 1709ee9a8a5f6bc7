package main

import (
	"LightCount/internal/model"
	"LightCount/internal/query"
	"flag"
	"log"
	"math/rand"
	"time"
)

func main() {
	outputFile := flag.String("o", "samples.yaml", "Output fixture file path")
	hosts := flag.Int("hosts", 20, "Number of addresses in 10.0.0.0/24 to generate samples for")
	days := flag.Int("days", 1, "Number of days of samples, ending at the last full interval")
	interval := flag.Duration("interval", 5*time.Minute, "Sample interval")
	flag.Parse()

	if *hosts < 1 || *hosts > 254 {
		log.Fatalf("hosts must be between 1 and 254, got %d", *hosts)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nodes := map[uint32]string{1: "core1", 2: "core2"}
	base, _ := model.ParseIPv4("10.0.0.0")

	end := time.Now().UTC().Truncate(*interval)
	begin := end.Add(-time.Duration(*days) * 24 * time.Hour)
	log.Printf("Generating samples for %d hosts between %s and %s into %s...", *hosts, begin.Format(time.RFC3339), end.Format(time.RFC3339), *outputFile)

	var rows []model.RawRow
	for ts := begin; ts.Before(end); ts = ts.Add(*interval) {
		for h := 1; h <= *hosts; h++ {
			// Average rates over the interval, 50 to 1450 bytes per packet.
			inPps := uint64(rng.Intn(2000))
			outPps := uint64(rng.Intn(2000))
			rows = append(rows, model.RawRow{
				Unixtime: ts.Unix(),
				NodeID:   uint32(h%2 + 1),
				VlanID:   uint16(h % 4),
				IP:       base + uint32(h),
				InPps:    inPps,
				InBps:    inPps * uint64(rng.Intn(1400)+50),
				OutPps:   outPps,
				OutBps:   outPps * uint64(rng.Intn(1400)+50),
			})
		}
	}

	if err := query.WriteFixture(*outputFile, nodes, rows); err != nil {
		log.Fatalf("Failed to write fixture: %v", err)
	}
	log.Printf("Successfully generated %d samples into %s.", len(rows), *outputFile)
}
