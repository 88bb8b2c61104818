package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelfx.dev/internal/observerproto"
	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
	"voxelfx.dev/internal/sim/terrain"
)

func startRegion(t *testing.T) (*region.Region, *httptest.Server) {
	t.Helper()
	cat, err := catalogs.Parse([]byte(`
kinds:
  - {name: X, pattern: LINE, speed: 0.5, range: 20}
  - {name: S, pattern: SHOT, speed: 0.5, range: 20}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := terrain.New()
	w.Fill(geom.Vec3i{X: -2, Y: 0, Z: -2}, geom.Vec3i{X: 30, Y: 0, Z: 2}, terrain.Solid)
	r := region.New(region.Config{ID: "r1", TickRateHz: 50}, cat, w, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(cancel)

	s := NewServer(r, 4, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return r, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBootstrap(t *testing.T) {
	r, srv := startRegion(t)
	resp, err := http.Get(srv.URL + "/admin/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ProtocolVersion != observerproto.Version || b.RegionID != "r1" || b.TickRateHz != 50 {
		t.Fatalf("bootstrap = %+v", b)
	}
	if b.CatalogDigest != r.Catalog().Digest() || len(b.Kinds) != 2 || b.Kinds[0].Name != "X" || b.Kinds[1].Pattern != "SHOT" {
		t.Fatalf("kinds = %+v", b.Kinds)
	}

	post, err := http.Post(srv.URL+"/admin/v1/observer/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", post.StatusCode)
	}
}

func TestStreamsFilteredTicks(t *testing.T) {
	r, srv := startRegion(t)
	conn := dial(t, srv)

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Kinds: []string{" s "}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	owner := model.NewActorID()
	if _, err := r.Cast(region.CastRequest{Kind: "X", Owner: owner, Origin: geom.Vec3{0.5, 1.25, 0.5}, Target: geom.Vec3{20.5, 1.25, 0.5}}); err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if _, err := r.Cast(region.CastRequest{Kind: "S", Owner: owner, Origin: geom.Vec3{0.5, 2.5, 1.5}, Target: geom.Vec3{20.5, 2.5, 1.5}}); err != nil {
		t.Fatalf("Cast: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg observerproto.TickMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if msg.Type != "TICK" || msg.RegionID != "r1" {
			t.Fatalf("msg = %+v", msg)
		}
		if msg.Live < 2 {
			continue
		}
		if len(msg.Effects) != 1 || msg.Effects[0].Kind != "S" || msg.Effects[0].Owner != owner.String() {
			t.Fatalf("effects = %+v", msg.Effects)
		}
		return
	}
	t.Fatalf("no tick with both effects live")
}

func TestRejectsBadHandshake(t *testing.T) {
	_, srv := startRegion(t)
	conn := dial(t, srv)
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseSubscribe(t *testing.T) {
	owner := model.NewActorID()
	raw, _ := json.Marshal(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		Kinds:           []string{"air_swipe", "", "X"},
		Owner:           owner.String(),
		Colliders:       true,
	})
	f, err := parseSubscribe(raw)
	if err != nil {
		t.Fatalf("parseSubscribe: %v", err)
	}
	if len(f.Kinds) != 2 || f.Kinds[0] != "AIR_SWIPE" || f.Kinds[1] != "X" || f.Owner != owner || !f.Colliders {
		t.Fatalf("filter = %+v", f)
	}

	bad, _ := json.Marshal(observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Owner: "nope"})
	if _, err := parseSubscribe(bad); err == nil {
		t.Fatalf("bad owner accepted")
	}
	old, _ := json.Marshal(observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: "0.0"})
	if _, err := parseSubscribe(old); err == nil {
		t.Fatalf("old version accepted")
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.8:5000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q) = %v", addr, got)
		}
	}
}
