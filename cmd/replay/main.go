package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "voxelfx.dev/internal/persistence/log"
	"voxelfx.dev/internal/sim/region"
)

var errStop = errors.New("stop")

func main() {
	var (
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (default: <data>/regions/<region>/events)")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		regionID  = flag.String("region", "region_1", "region id")
		fromTick  = flag.Uint64("from_tick", 0, "first tick to include (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "last tick to include (inclusive, optional)")
		asJSON    = flag.Bool("json", false, "print the summary as JSON")
	)
	flag.Parse()

	dir := *eventsDir
	if dir == "" {
		dir = filepath.Join(*dataDir, "regions", *regionID, "events")
	}
	files, err := persistlog.ListFiles(dir, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", dir)
		os.Exit(1)
	}

	sum := newSummary(*fromTick, *toTick)
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(e region.TickLogEntry) error {
			if !sum.add(e) {
				return errStop
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum.report())
		return
	}
	sum.print(os.Stdout)
}
