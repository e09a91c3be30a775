package main

import "testing"

func TestDashActivation(t *testing.T) {
	a := NewAbility(AbilityDash)

	if !a.TryActivate() {
		t.Fatal("fresh dash should activate")
	}
	if !a.Active {
		t.Error("dash should be active")
	}
	if a.Cooldown != DashCooldown {
		t.Errorf("expected cooldown %f, got %f", DashCooldown, a.Cooldown)
	}
	if a.TryActivate() {
		t.Error("active dash should not re-activate")
	}
}

func TestDashExpiresAfterDuration(t *testing.T) {
	a := NewAbility(AbilityDash)
	a.TryActivate()

	a.Update(DashDuration + 0.01)
	if a.Active {
		t.Error("dash should expire after its duration")
	}
	if a.TryActivate() {
		t.Error("dash on cooldown should not activate at level 1")
	}
}

func TestDashCooldownRecovery(t *testing.T) {
	a := NewAbility(AbilityDash)
	a.TryActivate()
	a.Update(DashCooldown + 0.01)

	if a.Cooldown != 0 {
		t.Errorf("cooldown should be 0, got %f", a.Cooldown)
	}
	if !a.TryActivate() {
		t.Error("dash should activate after cooldown")
	}
}

func TestStackLevelScaling(t *testing.T) {
	a := NewAbility(AbilityDash)

	// Cooldown shortens (or holds) and knockback grows (or holds) as
	// levels rise
	prevCD := a.baseCooldown / a.Params().CooldownDiv
	prevKB := a.KnockbackMultiplier()
	for lvl := 2; lvl <= MaxStackLevel; lvl++ {
		a.AddStack()
		cd := a.baseCooldown / a.Params().CooldownDiv
		kb := a.KnockbackMultiplier()
		if cd > prevCD {
			t.Errorf("level %d cooldown %f exceeds level %d cooldown %f", lvl, cd, lvl-1, prevCD)
		}
		if kb < prevKB {
			t.Errorf("level %d knockback %f below level %d knockback %f", lvl, kb, lvl-1, prevKB)
		}
		prevCD, prevKB = cd, kb
	}
}

func TestStackLevelCap(t *testing.T) {
	a := NewAbility(AbilityDash)
	for i := 0; i < 10; i++ {
		a.AddStack()
	}
	if a.StackLevel != MaxStackLevel {
		t.Errorf("expected stack level %d, got %d", MaxStackLevel, a.StackLevel)
	}
	a.ResetStacks()
	if a.StackLevel != 1 {
		t.Errorf("expected stack level 1 after reset, got %d", a.StackLevel)
	}
}

func TestLevelTwoExtendsReach(t *testing.T) {
	a := NewAbility(AbilityDash)
	base := a.Speed()
	a.AddStack()
	if a.Speed() <= base {
		t.Errorf("level 2 speed %f should exceed level 1 speed %f", a.Speed(), base)
	}
}

func TestLevelThreeChain(t *testing.T) {
	a := NewAbility(AbilityDash)
	a.AddStack()
	a.AddStack() // level 3

	if !a.TryActivate() {
		t.Fatal("first activation should succeed")
	}
	a.Update(DashDuration + 0.01) // dash ends, cooldown still running

	if !a.TryActivate() {
		t.Error("level 3 should allow one chained activation during cooldown")
	}
	a.Update(DashDuration + 0.01)

	if a.TryActivate() {
		t.Error("chain window should allow only one extra activation")
	}
}

func TestChainResetsNextCooldown(t *testing.T) {
	a := NewAbility(AbilityDash)
	a.AddStack()
	a.AddStack()

	a.TryActivate()
	a.Update(DashDuration + 0.01)
	a.TryActivate() // chain
	a.Update(DashDuration + 0.01)

	// Finish the cooldown: the chain flag must rearm
	a.Update(DashCooldown)
	if !a.TryActivate() {
		t.Error("activation should succeed after cooldown completes")
	}
	a.Update(DashDuration + 0.01)
	if !a.TryActivate() {
		t.Error("chain should be available again in the next cooldown window")
	}
}

func TestSpeedBoostParameters(t *testing.T) {
	a := NewAbility(AbilitySpeedBoost)
	if !a.TryActivate() {
		t.Fatal("fresh boost should activate")
	}
	if a.Timer != SpeedBoostDuration {
		t.Errorf("expected duration %f, got %f", SpeedBoostDuration, a.Timer)
	}
	if a.Cooldown != SpeedBoostCooldown {
		t.Errorf("expected cooldown %f, got %f", SpeedBoostCooldown, a.Cooldown)
	}
	if a.Speed() != SpeedBoostMul {
		t.Errorf("expected multiplier %f, got %f", SpeedBoostMul, a.Speed())
	}
}
