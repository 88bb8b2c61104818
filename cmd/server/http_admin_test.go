package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voxelfx.dev/internal/observerproto"
	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
)

func startAdmin(t *testing.T) (*region.Region, *httptest.Server) {
	t.Helper()
	cat, err := catalogs.Parse([]byte(`
kinds:
  - {name: SLOW, pattern: LINE, speed: 0.05, range: 50}
  - {name: BOLT, pattern: SHOT, speed: 1, range: 20}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := region.New(region.Config{ID: "r1", TickRateHz: 50}, cat, demoTerrain(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(cancel)

	mux := http.NewServeMux()
	(&adminAPI{region: r, logger: nil}).register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return r, srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

// waitEffects polls the list endpoint until want instances are live.
func waitEffects(t *testing.T, srv *httptest.Server, want int) []observerproto.EffectState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var list []observerproto.EffectState
		if code := doJSON(t, http.MethodGet, srv.URL+"/admin/v1/effects", nil, &list); code != http.StatusOK {
			t.Fatalf("GET effects status = %d", code)
		}
		if len(list) == want {
			return list
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw %d live effects", want)
	return nil
}

func TestAdminState(t *testing.T) {
	r, srv := startAdmin(t)
	var st stateResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/admin/v1/state", nil, &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if st.RegionID != "r1" || st.TickRateHz != 50 || st.CatalogDigest != r.Catalog().Digest() || st.Index != nil {
		t.Fatalf("state = %+v", st)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/admin/v1/state", nil, nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", code)
	}
}

func TestAdminCastListOwnerDestroy(t *testing.T) {
	_, srv := startAdmin(t)
	owner := model.NewActorID()

	var cast castResponse
	code := doJSON(t, http.MethodPost, srv.URL+"/admin/v1/cast", castRequest{
		Kind:   " slow ",
		Owner:  owner.String(),
		Origin: [3]float64{-20.5, 1.25, 20.5},
		Target: [3]float64{-20.5, 1.25, -20.5},
	}, &cast)
	if code != http.StatusOK || cast.Owner != owner.String() || cast.ID == "" {
		t.Fatalf("cast = %d %+v", code, cast)
	}

	list := waitEffects(t, srv, 1)
	if list[0].ID != cast.ID || list[0].Kind != "SLOW" || list[0].Owner != owner.String() {
		t.Fatalf("list = %+v", list)
	}

	next := model.NewActorID()
	var moved map[string]any
	code = doJSON(t, http.MethodPost, srv.URL+"/admin/v1/effects/owner", ownerRequest{Effect: cast.ID, Owner: next.String()}, &moved)
	if code != http.StatusOK || moved["changed"] != true {
		t.Fatalf("change owner = %d %v", code, moved)
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/admin/v1/effects/owner", ownerRequest{Effect: model.NewEffectID().String(), Owner: next.String()}, nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown effect status = %d", code)
	}

	var del destroyResponse
	if code := doJSON(t, http.MethodDelete, srv.URL+"/admin/v1/effects?owner="+owner.String(), nil, &del); code != http.StatusOK || del.Destroyed != 0 {
		t.Fatalf("delete old owner = %d %+v", code, del)
	}
	if code := doJSON(t, http.MethodDelete, srv.URL+"/admin/v1/effects?owner="+next.String()+"&kind=slow", nil, &del); code != http.StatusOK || del.Destroyed != 1 {
		t.Fatalf("delete new owner = %d %+v", code, del)
	}
	waitEffects(t, srv, 0)
}

func TestAdminDestroyByKind(t *testing.T) {
	_, srv := startAdmin(t)
	for _, z := range []float64{20.5, 24.5} {
		code := doJSON(t, http.MethodPost, srv.URL+"/admin/v1/cast", castRequest{
			Kind:   "SLOW",
			Origin: [3]float64{-20.5, 1.25, z},
			Target: [3]float64{-20.5, 1.25, z - 40},
		}, nil)
		if code != http.StatusOK {
			t.Fatalf("cast status = %d", code)
		}
	}
	list := waitEffects(t, srv, 2)
	if list[0].Owner == list[1].Owner {
		t.Fatalf("casts without owner must get fresh owners: %+v", list)
	}

	var del destroyResponse
	if code := doJSON(t, http.MethodDelete, srv.URL+"/admin/v1/effects?kind=BOLT", nil, &del); code != http.StatusOK || del.Destroyed != 0 {
		t.Fatalf("delete BOLT = %d %+v", code, del)
	}
	if code := doJSON(t, http.MethodDelete, srv.URL+"/admin/v1/effects", nil, &del); code != http.StatusOK || del.Destroyed != 2 {
		t.Fatalf("delete all = %d %+v", code, del)
	}
}

func TestAdminRejectsBadInput(t *testing.T) {
	_, srv := startAdmin(t)
	if code := doJSON(t, http.MethodPost, srv.URL+"/admin/v1/cast", castRequest{Kind: "NOPE"}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown kind status = %d", code)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/admin/v1/cast", castRequest{Kind: "SLOW", Owner: "x"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad owner status = %d", code)
	}
	if code := doJSON(t, http.MethodDelete, srv.URL+"/admin/v1/effects?owner=x", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad delete owner status = %d", code)
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/admin/v1/index/totals", nil, nil); code != http.StatusNotFound {
		t.Fatalf("totals without index status = %d", code)
	}
}

func TestAdminLoopbackOnly(t *testing.T) {
	r, _ := startAdmin(t)
	mux := http.NewServeMux()
	(&adminAPI{region: r}).register(mux)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "10.0.0.8:4000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWriteMetrics(t *testing.T) {
	r, _ := startAdmin(t)
	rec := httptest.NewRecorder()
	writeMetrics(rec, r, nil)
	body := rec.Body.String()
	if !strings.Contains(body, `voxelfx_region_tick{region="r1"}`) || !strings.Contains(body, `voxelfx_region_live_effects{region="r1"}`) {
		t.Fatalf("metrics = %s", body)
	}
	if strings.Contains(body, "voxelfx_index_") {
		t.Fatalf("index metrics without index: %s", body)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("VFX_TEST_BOOL", "false")
	if envBool("VFX_TEST_BOOL", true) {
		t.Fatalf("explicit false ignored")
	}
	t.Setenv("VFX_TEST_BOOL", "maybe")
	if !envBool("VFX_TEST_BOOL", true) {
		t.Fatalf("garbage should fall back to default")
	}
}
