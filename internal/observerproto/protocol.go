package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Kinds limits the stream to these effect kinds. Empty means all.
	Kinds []string `json:"kinds,omitempty"`
	// Owner limits the stream to one actor's effects.
	Owner string `json:"owner,omitempty"`
	// Colliders adds per-collider bounds to every effect.
	Colliders bool `json:"colliders,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	RegionID        string     `json:"region_id"`
	Tick            uint64     `json:"tick"`
	TickRateHz      int        `json:"tick_rate_hz"`
	Live            int        `json:"live"`
	CatalogDigest   string     `json:"catalog_digest"`
	Kinds           []KindInfo `json:"kinds"`
}

type KindInfo struct {
	Name    string  `json:"name"`
	Pattern string  `json:"pattern"`
	Speed   float64 `json:"speed"`
	Range   float64 `json:"range"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	RegionID        string `json:"region_id"`

	Live        int `json:"live"`
	Terminated  int `json:"terminated"`
	Faults      int `json:"faults"`
	PairsTested int `json:"pairs_tested"`

	Effects    []EffectState   `json:"effects"`
	Collisions []CollisionInfo `json:"collisions,omitempty"`
	Ended      []EndInfo       `json:"ended,omitempty"`
}

type EffectState struct {
	ID    string     `json:"id"`
	Kind  string     `json:"kind"`
	Owner string     `json:"owner"`
	Pos   [3]float64 `json:"pos"`
	Age   int        `json:"age,omitempty"`

	Colliders []ColliderState `json:"colliders,omitempty"`
}

// ColliderState is the world-space bounding box of one collider.
type ColliderState struct {
	Shape string     `json:"shape"`
	Min   [3]float64 `json:"min"`
	Max   [3]float64 `json:"max"`
}

type CollisionInfo struct {
	A        string `json:"a"`
	B        string `json:"b"`
	KindA    string `json:"kind_a"`
	KindB    string `json:"kind_b"`
	RemovedA bool   `json:"removed_a"`
	RemovedB bool   `json:"removed_b"`
}

type EndInfo struct {
	Effect string `json:"effect"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}
