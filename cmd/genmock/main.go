// Command genmock writes a deterministic fixture of weather readings as JSON
// lines, one reading per line in the station wire format. It drives the same
// station simulator the live stations use, with a seeded random source and a
// fixed clock, so the output only changes when the simulator does.
//
// Usage:
//
//	go run ./cmd/genmock -stations 10 -count 100 -seed 42 -out data/mock/readings.jsonl
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
	"github.com/couchcryptid/weather-station-pipeline/internal/station"
)

var baseTime = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	stations := flag.Int("stations", 10, "number of stations, with ids 1..N")
	count := flag.Int("count", 100, "readings per station")
	seed := flag.Uint64("seed", 1, "random seed")
	out := flag.String("out", "", "output path for the JSON lines fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	if *stations <= 0 || *count <= 0 {
		return fmt.Errorf("-stations and -count must be positive")
	}

	readings := generate(*stations, *count, *seed)

	if err := writeJSONLines(*out, readings); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d readings to %s", len(readings), *out)

	printStats(readings)
	return nil
}

// generate ticks every station once per simulated second until each has
// emitted count readings. Dropped ticks still advance the clock.
func generate(stations, count int, seed uint64) []domain.Reading {
	clock := clockwork.NewFakeClockAt(baseTime)

	sims := make([]*station.Station, stations)
	for i := range sims {
		id := int64(i + 1)
		sims[i] = station.New(id, station.WithRand(rand.New(rand.NewPCG(seed, uint64(id)))))
	}

	emitted := make([]int, stations)
	readings := make([]domain.Reading, 0, stations*count)
	for len(readings) < stations*count {
		for i, s := range sims {
			if emitted[i] == count {
				continue
			}
			if r, ok := s.Next(clock.Now()); ok {
				readings = append(readings, r)
				emitted[i]++
			}
		}
		clock.Advance(time.Second)
	}
	return readings
}

func writeJSONLines(path string, readings []domain.Reading) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range readings {
		line, err := domain.EncodeReading(r)
		if err != nil {
			return fmt.Errorf("encode station=%d s_no=%d: %w", r.StationID, r.SequenceNumber, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func printStats(readings []domain.Reading) {
	battery := map[domain.BatteryStatus]int{}
	var humid int
	for _, r := range readings {
		battery[r.BatteryStatus]++
		if _, ok := domain.DetectRain(r, domain.DefaultHumidityThreshold); ok {
			humid++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(readings))
	fmt.Printf("By battery: low=%d, medium=%d, high=%d\n",
		battery[domain.BatteryLow], battery[domain.BatteryMedium], battery[domain.BatteryHigh])
	fmt.Printf("Humidity > %d (expected alerts): %d\n", domain.DefaultHumidityThreshold, humid)
}
