package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "voxelfx.dev/internal/persistence/log"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "faults":
			faultsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "effects":
			effectsCmd(os.Args[2:])
			return
		case "clear":
			clearCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	regionID := fs.String("region", "", "region id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "regions")
	if *regionID != "" {
		base = filepath.Join(base, *regionID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type faultFilter struct {
	kind      model.Kind
	owner     model.ActorID
	stage     string
	sinceTick uint64
	limit     int
}

func (f faultFilter) match(e region.FaultEntry) bool {
	if e.Tick < f.sinceTick {
		return false
	}
	if f.kind != "" && e.Kind != f.kind {
		return false
	}
	if f.owner != (model.ActorID{}) && e.Owner != f.owner {
		return false
	}
	if f.stage != "" && e.Stage != f.stage {
		return false
	}
	return true
}

func faultsCmd(args []string) {
	fs := flag.NewFlagSet("faults", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	regionID := fs.String("region", "region_1", "region id")
	kind := fs.String("kind", "", "effect kind filter")
	owner := fs.String("owner", "", "owner id filter")
	stage := fs.String("stage", "", "stage filter: update or teardown")
	sinceTick := fs.Uint64("since_tick", 0, "only faults at or after this tick")
	limit := fs.Int("limit", 100, "max faults to print (0 = all)")
	_ = fs.Parse(args)

	f := faultFilter{
		kind:      model.Kind(strings.ToUpper(strings.TrimSpace(*kind))),
		stage:     strings.TrimSpace(*stage),
		sinceTick: *sinceTick,
		limit:     *limit,
	}
	if s := strings.TrimSpace(*owner); s != "" {
		id, err := model.ParseActorID(s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -owner:", err)
			os.Exit(2)
		}
		f.owner = id
	}

	out, err := readFaults(filepath.Join(*dataDir, "regions", *regionID, "faults"), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read faults:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range out {
		_ = enc.Encode(e)
	}
	fmt.Fprintf(os.Stderr, "%d faults\n", len(out))
}

func readFaults(dir string, f faultFilter) ([]region.FaultEntry, error) {
	files, err := persistlog.ListFiles(dir, "faults")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []region.FaultEntry
	for _, path := range files {
		err := persistlog.ReadLines(path, func(line []byte) error {
			var e region.FaultEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if f.match(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	// Keep the newest when limited.
	if f.limit > 0 && len(out) > f.limit {
		out = out[len(out)-f.limit:]
	}
	return out, nil
}
