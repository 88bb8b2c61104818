package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "voxelfx.dev/internal/persistence/log"
	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/region"
	"voxelfx.dev/internal/sim/tuning"
	"voxelfx.dev/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		regionFlag = flag.String("region", "", "region id (default: region_id from tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read model")
		scenario   = flag.String("scenario", "duel", "demo scenario: duel or none")
		seed       = flag.Int64("seed", 1337, "scenario seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if id := strings.TrimSpace(*regionFlag); id != "" {
		tune.RegionID = id
	}

	regionDir := filepath.Join(*dataDir, "regions", tune.RegionID)
	_ = os.MkdirAll(regionDir, 0o755)

	// Optional read model; never feeds back into the simulation.
	idx, err := openRuntimeIndex(regionDir, tune, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	terrainWorld := demoTerrain()
	r := region.New(region.Config{
		ID:              tune.RegionID,
		TickRateHz:      tune.TickRateHz,
		PendingCapacity: tune.PendingCapacity,
		SelfCollision:   tune.SelfCollision,
	}, cats, terrainWorld, logger)

	if tune.Journal.Enabled {
		opts := persistlog.Options{
			Rotation:   persistlog.Rotation(tune.Journal.Rotate),
			FlushEvery: tune.Journal.FlushEvery,
		}
		tickLog, err := persistlog.NewTickLogger(regionDir, opts)
		if err != nil {
			logger.Fatalf("tick journal: %v", err)
		}
		faultLog, err := persistlog.NewFaultLogger(regionDir, opts)
		if err != nil {
			logger.Fatalf("fault journal: %v", err)
		}
		defer tickLog.Close()
		defer faultLog.Close()
		r.SetTickLogger(tickLog)
		r.SetFaultLogger(faultLog)
	}
	if idx != nil {
		r.SetIndexer(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	regionDone := make(chan struct{})
	go func() {
		defer close(regionDone)
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("region stopped: %v", err)
		}
	}()

	if err := startScenario(ctx, strings.TrimSpace(*scenario), r, terrainWorld, *seed, logger); err != nil {
		logger.Fatalf("scenario: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, r, idx)
	})

	enableAdminHTTP := envBool("VFX_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("VFX_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		admin := &adminAPI{region: r, index: idx, logger: logger}
		admin.register(mux)

		obsSrv := observer.NewServer(r, tune.ObserverBuffer, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (VFX_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VFX_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("region=%s tuning=v%s tick_rate=%d kinds=%d catalog=%s listening on %s", tune.RegionID, tune.ProtocolVersion, tune.TickRateHz, len(cats.Kinds()), cats.Digest()[:12], *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-regionDone
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, r *region.Region, idx runtimeIndex) {
	id := r.ID()
	fmt.Fprintf(rw, "# HELP voxelfx_region_tick Current region tick.\n")
	fmt.Fprintf(rw, "# TYPE voxelfx_region_tick gauge\n")
	fmt.Fprintf(rw, "voxelfx_region_tick{region=%q} %d\n", id, r.CurrentTick())

	fmt.Fprintf(rw, "# HELP voxelfx_region_live_effects Live effect instances after the last tick.\n")
	fmt.Fprintf(rw, "# TYPE voxelfx_region_live_effects gauge\n")
	fmt.Fprintf(rw, "voxelfx_region_live_effects{region=%q} %d\n", id, r.Live())

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP voxelfx_index_queue_depth Current index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelfx_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelfx_index_queue_depth{region=%q} %d\n", id, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP voxelfx_index_queue_capacity Index write queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE voxelfx_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "voxelfx_index_queue_capacity{region=%q} %d\n", id, s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP voxelfx_index_dropped_ticks_total Tick entries dropped because the index queue was full.\n")
	fmt.Fprintf(rw, "# TYPE voxelfx_index_dropped_ticks_total counter\n")
	fmt.Fprintf(rw, "voxelfx_index_dropped_ticks_total{region=%q} %d\n", id, s.DropTickTotal)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
