// Package catalogs loads the effect kind catalog and the collision policy
// table from configs/effects.yaml.
package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelfx.dev/internal/sim/collision"
	"voxelfx.dev/internal/sim/model"
)

var (
	ErrUnknownKind = errors.New("catalogs: unknown effect kind")
	ErrInvalid     = errors.New("catalogs: invalid catalog")
)

//go:embed effects.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("effects.schema.json", schemaJSON)

type Pattern string

const (
	PatternLine   Pattern = "LINE"
	PatternStream Pattern = "STREAM"
	PatternWheel  Pattern = "WHEEL"
	PatternShot   Pattern = "SHOT"
)

type KindDef struct {
	Name          model.Kind `json:"name"`
	Pattern       Pattern    `json:"pattern"`
	Speed         float64    `json:"speed"`
	Range         float64    `json:"range"`
	Radius        float64    `json:"radius,omitempty"`
	LifetimeTicks int        `json:"lifetime_ticks,omitempty"`
	MaxLength     int        `json:"max_length,omitempty"`
	Tolerance     float64    `json:"tolerance,omitempty"`
	Follow        bool       `json:"follow,omitempty"`
	SkipVertical  bool       `json:"skip_vertical,omitempty"`
	Settle        bool       `json:"settle,omitempty"`
	LivingOnly    bool       `json:"living_only,omitempty"`
}

type PairDef struct {
	First        []model.Kind `json:"first"`
	Second       []model.Kind `json:"second"`
	RemoveFirst  bool         `json:"remove_first,omitempty"`
	RemoveSecond bool         `json:"remove_second,omitempty"`
}

type PolicyDef struct {
	Pairs  []PairDef      `json:"pairs,omitempty"`
	Layers [][]model.Kind `json:"layers,omitempty"`
}

type document struct {
	Kinds  []KindDef `json:"kinds"`
	Policy PolicyDef `json:"policy"`
}

// Catalog is an immutable snapshot of the kind registry and its policy
// table.
type Catalog struct {
	order    []model.Kind
	kinds    map[model.Kind]KindDef
	policies *collision.PolicyTable
	digest   string
}

// Load reads effects.yaml from configDir.
func Load(configDir string) (*Catalog, error) {
	path := filepath.Join(configDir, "effects.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("effects.yaml: %w", err)
	}
	return c, nil
}

// Parse validates a YAML catalog against the embedded schema and builds the
// snapshot. The digest covers the canonical JSON form, so formatting changes
// in the YAML do not change it.
func Parse(raw []byte) (*Catalog, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	canon, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(canon, &generic); err != nil {
		return nil, err
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var d document
	if err := json.Unmarshal(canon, &d); err != nil {
		return nil, err
	}
	return build(d, sha256Hex(canon))
}

func build(d document, digest string) (*Catalog, error) {
	c := &Catalog{kinds: map[model.Kind]KindDef{}, digest: digest}
	for _, k := range d.Kinds {
		if _, dup := c.kinds[k.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate kind %s", ErrInvalid, k.Name)
		}
		c.kinds[k.Name] = k
		c.order = append(c.order, k.Name)
	}
	known := func(ks []model.Kind) error {
		for _, k := range ks {
			if _, ok := c.kinds[k]; !ok {
				return fmt.Errorf("%w: policy names %s", ErrUnknownKind, k)
			}
		}
		return nil
	}

	b := collision.NewPolicyBuilder()
	for _, p := range d.Policy.Pairs {
		if err := known(p.First); err != nil {
			return nil, err
		}
		if err := known(p.Second); err != nil {
			return nil, err
		}
		b.Add(p.First, p.Second, p.RemoveFirst, p.RemoveSecond)
	}
	for _, layer := range d.Policy.Layers {
		if err := known(layer); err != nil {
			return nil, err
		}
		b.Layer(layer...)
	}
	c.policies = b.Build()
	return c, nil
}

func (c *Catalog) Kind(name model.Kind) (KindDef, error) {
	k, ok := c.kinds[name]
	if !ok {
		return KindDef{}, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return k, nil
}

// Kinds lists kind names in file order.
func (c *Catalog) Kinds() []model.Kind { return append([]model.Kind(nil), c.order...) }

func (c *Catalog) Policies() *collision.PolicyTable { return c.policies }

func (c *Catalog) Digest() string { return c.digest }

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
