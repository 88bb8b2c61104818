package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxelfx.dev/internal/observerproto"
	"voxelfx.dev/internal/persistence/indexdb"
	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/effects"
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
)

// adminAPI serves the local-only admin endpoints. Every mutation runs on
// the region loop between ticks.
type adminAPI struct {
	region *region.Region
	index  runtimeIndex
	logger *log.Logger
}

type stateResponse struct {
	RegionID      string         `json:"region_id"`
	Tick          uint64         `json:"tick"`
	TickRateHz    int            `json:"tick_rate_hz"`
	Live          int            `json:"live"`
	CatalogDigest string         `json:"catalog_digest"`
	Index         *indexdb.Stats `json:"index,omitempty"`
}

type destroyResponse struct {
	Destroyed int `json:"destroyed"`
}

type castRequest struct {
	Kind   string     `json:"kind"`
	Owner  string     `json:"owner"`
	Origin [3]float64 `json:"origin"`
	Target [3]float64 `json:"target"`
}

type castResponse struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

type ownerRequest struct {
	Effect string `json:"effect"`
	Owner  string `json:"owner"`
}

type totalsResponse struct {
	Endings []indexdb.EndingTotal `json:"endings"`
	Pairs   []indexdb.PairTotal   `json:"pairs"`
}

func (a *adminAPI) register(mux *http.ServeMux) {
	if a.logger == nil {
		a.logger = log.New(io.Discard, "", 0)
	}
	mux.HandleFunc("/admin/v1/state", loopbackOnly(a.handleState))
	mux.HandleFunc("/admin/v1/effects", loopbackOnly(a.handleEffects))
	mux.HandleFunc("/admin/v1/effects/owner", loopbackOnly(a.handleChangeOwner))
	mux.HandleFunc("/admin/v1/cast", loopbackOnly(a.handleCast))
	mux.HandleFunc("/admin/v1/index/totals", loopbackOnly(a.handleTotals))
}

func (a *adminAPI) handleState(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := stateResponse{
		RegionID:      a.region.ID(),
		Tick:          a.region.CurrentTick(),
		TickRateHz:    a.region.TickRateHz(),
		Live:          a.region.Live(),
		CatalogDigest: a.region.Catalog().Digest(),
	}
	if a.index != nil {
		st := a.index.Stats()
		resp.Index = &st
	}
	writeJSON(rw, http.StatusOK, resp)
}

// handleEffects lists live instances on GET and destroys them on DELETE.
// DELETE narrows by ?owner= and ?kind=; with neither it clears the region.
func (a *adminAPI) handleEffects(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		list, err := a.region.Effects(ctx, r.URL.Query().Get("colliders") == "1")
		if err != nil {
			writeError(rw, http.StatusServiceUnavailable, err)
			return
		}
		if list == nil {
			list = []observerproto.EffectState{}
		}
		writeJSON(rw, http.StatusOK, list)
	case http.MethodDelete:
		q := r.URL.Query()
		kind := model.Kind(strings.ToUpper(strings.TrimSpace(q.Get("kind"))))
		var owner model.ActorID
		if s := strings.TrimSpace(q.Get("owner")); s != "" {
			id, err := model.ParseActorID(s)
			if err != nil {
				writeError(rw, http.StatusBadRequest, errors.New("bad owner"))
				return
			}
			owner = id
		}
		var pred func(effects.Effect) bool
		if kind != "" {
			pred = func(e effects.Effect) bool { return e.Kind() == kind }
		}

		n := 0
		err := a.region.Admin(ctx, func(s *effects.Scheduler) {
			switch {
			case owner != uuid.Nil:
				n = s.DestroyOwner(owner, pred)
			case pred != nil:
				n = s.DestroyWhere(pred)
			default:
				n = s.DestroyAll()
			}
		})
		if err != nil {
			writeError(rw, http.StatusServiceUnavailable, err)
			return
		}
		a.logger.Printf("admin: destroyed %d effects owner=%s kind=%s", n, owner, kind)
		writeJSON(rw, http.StatusOK, destroyResponse{Destroyed: n})
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *adminAPI) handleCast(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req castRequest
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	owner := model.NewActorID()
	if s := strings.TrimSpace(req.Owner); s != "" {
		id, err := model.ParseActorID(s)
		if err != nil {
			writeError(rw, http.StatusBadRequest, errors.New("bad owner"))
			return
		}
		owner = id
	}
	id, err := a.region.Cast(region.CastRequest{
		Kind:   model.Kind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Owner:  owner,
		Origin: geom.Vec3(req.Origin),
		Target: geom.Vec3(req.Target),
	})
	switch {
	case errors.Is(err, catalogs.ErrUnknownKind):
		writeError(rw, http.StatusNotFound, err)
		return
	case errors.Is(err, effects.ErrQueueFull):
		writeError(rw, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	writeJSON(rw, http.StatusOK, castResponse{ID: id.String(), Owner: owner.String()})
}

func (a *adminAPI) handleChangeOwner(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ownerRequest
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	effectID, err := uuid.Parse(strings.TrimSpace(req.Effect))
	if err != nil {
		writeError(rw, http.StatusBadRequest, errors.New("bad effect"))
		return
	}
	owner, err := model.ParseActorID(strings.TrimSpace(req.Owner))
	if err != nil {
		writeError(rw, http.StatusBadRequest, errors.New("bad owner"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	found, moved := false, false
	err = a.region.Admin(ctx, func(s *effects.Scheduler) {
		for _, e := range s.Instances() {
			if e.ID() == effectID {
				found = true
				moved = s.ChangeOwner(e, owner)
				return
			}
		}
	})
	if err != nil {
		writeError(rw, http.StatusServiceUnavailable, err)
		return
	}
	if !found {
		writeError(rw, http.StatusNotFound, errors.New("no such effect"))
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "changed": moved})
}

func (a *adminAPI) handleTotals(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.index == nil {
		writeError(rw, http.StatusNotFound, errors.New("index disabled"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ends, err := a.index.EndingTotals(ctx, a.region.ID())
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	pairs, err := a.index.PairTotals(ctx, a.region.ID())
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusOK, totalsResponse{Endings: ends, Pairs: pairs})
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, err error) {
	writeJSON(rw, status, map[string]any{"ok": false, "error": err.Error()})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
