package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"time"

	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
	"voxelfx.dev/internal/sim/terrain"
)

// Demo arena: a 65x65 stone floor at y=0 with a wall, a few pillars and a
// pool, so every pattern has something to climb, settle on or stop at.
const arenaHalf = 32

func demoTerrain() *terrain.World {
	w := terrain.New()
	w.Fill(geom.Vec3i{X: -arenaHalf, Y: 0, Z: -arenaHalf}, geom.Vec3i{X: arenaHalf, Y: 0, Z: arenaHalf}, terrain.Solid)

	// Low wall across the middle, one block high with a gap.
	w.Fill(geom.Vec3i{X: 0, Y: 1, Z: -10}, geom.Vec3i{X: 0, Y: 1, Z: -2}, terrain.Solid)
	w.Fill(geom.Vec3i{X: 0, Y: 1, Z: 2}, geom.Vec3i{X: 0, Y: 1, Z: 10}, terrain.Solid)

	for _, p := range []geom.Vec3i{{X: -8, Z: 8}, {X: 8, Z: -8}, {X: -8, Z: -8}, {X: 8, Z: 8}} {
		w.Fill(geom.Vec3i{X: p.X, Y: 1, Z: p.Z}, geom.Vec3i{X: p.X, Y: 4, Z: p.Z}, terrain.Solid)
	}

	w.Fill(geom.Vec3i{X: -4, Y: 0, Z: 14}, geom.Vec3i{X: 4, Y: 0, Z: 18}, terrain.Liquid)
	return w
}

// duelist is a living body standing on the arena floor.
type duelist struct {
	id  model.ActorID
	pos geom.Vec3
}

func (d duelist) entity() model.Entity {
	return model.Entity{
		ID:     d.id,
		Bounds: geom.BoxAround(d.pos.Add(geom.Vec3{0, 0.9, 0}), geom.Vec3{0.3, 0.9, 0.3}),
		Living: true,
	}
}

// eye is where casts leave from.
func (d duelist) eye() geom.Vec3 { return d.pos.Add(geom.Vec3{0, 1.6, 0}) }

// duel has two actors cast random catalog kinds at each other.
type duel struct {
	region *region.Region
	world  *terrain.World
	rng    *rand.Rand
	logger *log.Logger
	a, b   duelist
	every  time.Duration
}

func newDuel(r *region.Region, w *terrain.World, seed int64, logger *log.Logger) *duel {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	d := &duel{
		region: r,
		world:  w,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
		logger: logger,
		a:      duelist{id: model.NewActorID(), pos: geom.Vec3{-12.5, 1, 0.5}},
		b:      duelist{id: model.NewActorID(), pos: geom.Vec3{12.5, 1, 0.5}},
		every:  time.Second / 2,
	}
	w.PutEntity(d.a.entity())
	w.PutEntity(d.b.entity())
	return d
}

// castOnce has one side fire at the other. Shots aim at the opponent's
// current position so following kinds track them.
func (d *duel) castOnce(from, to duelist) (model.EffectID, model.Kind, error) {
	kinds := d.region.Catalog().Kinds()
	if len(kinds) == 0 {
		return model.EffectID{}, "", errors.New("empty catalog")
	}
	kind := kinds[d.rng.IntN(len(kinds))]
	target := to.eye()
	jitter := geom.Vec3{d.rng.Float64() - 0.5, 0, d.rng.Float64() - 0.5}
	opponent := to.id
	id, err := d.region.Cast(region.CastRequest{
		Kind:   kind,
		Owner:  from.id,
		Origin: from.eye(),
		Target: target.Add(jitter),
		Track: func() (geom.Vec3, bool) {
			e, ok := d.world.Entity(opponent)
			if !ok || !e.Living {
				return geom.Vec3{}, false
			}
			return e.Bounds.Center(), true
		},
	})
	return id, kind, err
}

func (d *duel) Run(ctx context.Context) {
	t := time.NewTicker(d.every)
	defer t.Stop()
	turn := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		from, to := d.a, d.b
		if turn%2 == 1 {
			from, to = d.b, d.a
		}
		turn++
		id, kind, err := d.castOnce(from, to)
		if err != nil {
			d.logger.Printf("duel: cast %s: %v", kind, err)
			continue
		}
		d.logger.Printf("duel: %s cast %s id=%s", from.id, kind, id)
	}
}

func startScenario(ctx context.Context, name string, r *region.Region, w *terrain.World, seed int64, logger *log.Logger) error {
	switch name {
	case "", "none":
		return nil
	case "duel":
		go newDuel(r, w, seed, logger).Run(ctx)
		return nil
	default:
		return fmt.Errorf("unknown scenario %q", name)
	}
}
