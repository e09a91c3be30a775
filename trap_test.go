package main

import (
	"math"
	"testing"
)

func TestTimedTrapLifecycle(t *testing.T) {
	trap := NewTrap(TimedDetonation, 10, 10)
	detonations := 0
	trap.OnDetonate = func(*Trap) { detonations++ }

	if !trap.Activate() {
		t.Fatal("armed timed trap should activate")
	}
	if trap.State != TrapCountdown {
		t.Errorf("expected countdown state, got %d", trap.State)
	}
	if trap.Activate() {
		t.Error("counting-down trap should not re-activate")
	}

	trap.Update(TrapDetonationDelay - TrapShakeDuration + 0.01)
	if !trap.Shaking() {
		t.Error("trap should shake before detonating")
	}
	trap.Update(TrapShakeDuration)
	if detonations != 1 {
		t.Errorf("expected 1 detonation, got %d", detonations)
	}
	if trap.State != TrapDetonated {
		t.Errorf("expected detonated state, got %d", trap.State)
	}
}

func TestDetonateIsIdempotent(t *testing.T) {
	trap := NewTrap(TimedDetonation, 0, 0)
	detonations := 0
	trap.OnDetonate = func(*Trap) { detonations++ }

	trap.Detonate()
	trap.Detonate()
	trap.Detonate()
	if detonations != 1 {
		t.Errorf("expected exactly 1 detonation, got %d", detonations)
	}
}

func TestCollisionTrapTrigger(t *testing.T) {
	trap := NewTrap(CollisionDetonation, 0, 0)
	detonations := 0
	trap.OnDetonate = func(*Trap) { detonations++ }

	if trap.Activate() {
		t.Error("collision traps have no countdown to activate")
	}
	trap.Trigger()
	trap.Trigger() // racing second collision collapses into the first
	if detonations != 1 {
		t.Errorf("expected 1 detonation, got %d", detonations)
	}
}

func TestTriggerIgnoredOnTimedTrap(t *testing.T) {
	trap := NewTrap(TimedDetonation, 0, 0)
	trap.Trigger()
	if trap.State != TrapArmed {
		t.Error("trigger should be a no-op on timed traps")
	}
}

func TestBlastDamageFalloff(t *testing.T) {
	trap := &Trap{BlastRadius: 10, BaseDamage: 1}

	tests := []struct {
		dist, want float64
	}{
		{0, 1.0},
		{2, 0.8},
		{5, 0.5},
		{9.9, 0.5}, // floor
	}
	for _, tt := range tests {
		got := trap.BlastDamage(tt.dist)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BlastDamage(%f) = %f, want %f", tt.dist, got, tt.want)
		}
	}
}

func TestBlastHits(t *testing.T) {
	w := NewWorld()
	near := testEntityAt(t, "near", 31, 30)
	far := testEntityAt(t, "far", 33, 30)
	dead := testEntityAt(t, "dead", 30.5, 30)
	dead.Health.Kill("")
	outside := testEntityAt(t, "out", 50, 50)
	w.AddEntity(near)
	w.AddEntity(far)
	w.AddEntity(dead)
	w.AddEntity(outside)
	w.Rebuild()

	trap := NewTrap(TimedDetonation, 30, 30)
	hits := trap.BlastHits(w)

	byVictim := make(map[string]HitEventMsg)
	for _, h := range hits {
		byVictim[h.VictimID] = h
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 victims, got %d", len(hits))
	}
	if _, ok := byVictim["dead"]; ok {
		t.Error("dead entities should not take blast damage")
	}
	if _, ok := byVictim["out"]; ok {
		t.Error("entities outside the radius should not take blast damage")
	}

	nh := byVictim["near"]
	fh := byVictim["far"]
	if nh.Amount <= fh.Amount {
		t.Errorf("closer victim should take more damage: near %f, far %f", nh.Amount, fh.Amount)
	}
	if nh.Kind != DamageExplosion {
		t.Errorf("expected explosion damage, got %d", nh.Kind)
	}
	if nh.AttackerID != "" {
		t.Error("trap hits carry no attacker")
	}
	if nh.DirY <= 0 {
		t.Error("blast knockback should carry an upward bias")
	}
	// knockback points away from the trap: near victim sits at +X
	if nh.DirX <= 0 {
		t.Errorf("near victim should be pushed along +X, got %f", nh.DirX)
	}
}

func TestTrapPoolReuse(t *testing.T) {
	var pool TrapPool
	trap := pool.Acquire(TimedDetonation, 5, 5)
	trap.Detonate()
	pool.Release(trap)

	again := pool.Acquire(CollisionDetonation, 7, 8)
	if again != trap {
		t.Fatal("pool should reuse the released trap")
	}
	if again.Mode != CollisionDetonation {
		t.Error("reacquired trap should take the new mode")
	}
	if again.X != 7 || again.Z != 8 {
		t.Error("reacquired trap should take the new position")
	}
	if again.State != TrapArmed {
		t.Error("reacquired trap should be re-armed")
	}

	// the detonation latch must be cleared for the next use
	detonations := 0
	again.OnDetonate = func(*Trap) { detonations++ }
	again.Trigger()
	if detonations != 1 {
		t.Errorf("reused trap should detonate again, got %d", detonations)
	}
}

func TestIndicatorPoolLimit(t *testing.T) {
	it := NewIndicatorTracker()

	// more counting-down traps in range than the pool allows
	var traps []*Trap
	for i := 0; i < IndicatorPoolSize+2; i++ {
		trap := NewTrap(TimedDetonation, 30+float64(i), 30)
		trap.Activate()
		traps = append(traps, trap)
	}
	it.Update(30, 30, traps)

	if it.VisibleCount() != IndicatorPoolSize {
		t.Fatalf("expected %d markers, got %d", IndicatorPoolSize, it.VisibleCount())
	}
	// the nearest traps keep their markers, the furthest are evicted
	for i := 0; i < IndicatorPoolSize; i++ {
		if !it.Visible(traps[i].ID) {
			t.Errorf("trap %d (near) should be visible", i)
		}
	}
	for i := IndicatorPoolSize; i < len(traps); i++ {
		if it.Visible(traps[i].ID) {
			t.Errorf("trap %d (far) should be evicted", i)
		}
	}
}

func TestIndicatorRangeAndState(t *testing.T) {
	it := NewIndicatorTracker()

	counting := NewTrap(TimedDetonation, 32, 30)
	counting.Activate()
	armed := NewTrap(TimedDetonation, 31, 30)
	distant := NewTrap(TimedDetonation, 30+MaxTrackingDistance+1, 30)
	distant.Activate()

	it.Update(30, 30, []*Trap{counting, armed, distant})

	if !it.Visible(counting.ID) {
		t.Error("in-range counting-down trap should show a marker")
	}
	if it.Visible(armed.ID) {
		t.Error("armed trap should not show a marker")
	}
	if it.Visible(distant.ID) {
		t.Error("out-of-range trap should not show a marker")
	}
}
