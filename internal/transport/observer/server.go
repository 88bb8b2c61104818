package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelfx.dev/internal/observerproto"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
)

const maxKinds = 64

type Server struct {
	region *region.Region
	log    *log.Logger
	buffer int

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewServer streams r's ticks to websocket observers. buffer is the number
// of tick messages a slow client may lag behind before old ones are dropped.
func NewServer(r *region.Region, buffer int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if buffer <= 0 {
		buffer = 8
	}
	return &Server{
		region: r,
		log:    logger,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see below
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cat := s.region.Catalog()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			RegionID:        s.region.ID(),
			Tick:            s.region.CurrentTick(),
			TickRateHz:      s.region.TickRateHz(),
			Live:            s.region.Live(),
			CatalogDigest:   cat.Digest(),
		}
		for _, k := range cat.Kinds() {
			def, err := cat.Kind(k)
			if err != nil {
				continue
			}
			resp.Kinds = append(resp.Kinds, observerproto.KindInfo{
				Name:    string(def.Name),
				Pattern: string(def.Pattern),
				Speed:   def.Speed,
				Range:   def.Range,
			})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		filter, err := parseSubscribe(msg)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		tickOut := make(chan []byte, s.buffer)

		select {
		case s.region.ObserverJoin() <- region.ObserverJoinRequest{SessionID: sid, TickOut: tickOut, Filter: filter}:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		s.log.Printf("observer %s joined from %s", sid, r.RemoteAddr)
		defer func() {
			select {
			case s.region.ObserverLeave() <- sid:
			default:
				// Region loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-tickOut:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			filter, err := parseSubscribe(msg)
			if err != nil {
				continue
			}
			select {
			case s.region.ObserverSubscribe() <- region.ObserverSubscribeRequest{SessionID: sid, Filter: filter}:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (region.ObserverFilter, error) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return region.ObserverFilter{}, errors.New("bad subscribe")
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return region.ObserverFilter{}, errors.New("expected SUBSCRIBE")
	}
	f := region.ObserverFilter{Colliders: sub.Colliders}
	for _, k := range sub.Kinds {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if len(f.Kinds) == maxKinds {
			break
		}
		f.Kinds = append(f.Kinds, model.Kind(k))
	}
	if sub.Owner != "" {
		id, err := model.ParseActorID(sub.Owner)
		if err != nil {
			return region.ObserverFilter{}, errors.New("bad owner")
		}
		f.Owner = id
	}
	return f, nil
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
