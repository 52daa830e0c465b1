package game

import (
	"math"
	"testing"
)

func TestVectorArithmetic(t *testing.T) {
	a := Vec(3, 4)
	b := Vec(1, -2)

	if got := a.Add(b); got != Vec(4, 2) {
		t.Errorf("expected (4,2), got %v", got)
	}
	if got := a.Sub(b); got != Vec(2, 6) {
		t.Errorf("expected (2,6), got %v", got)
	}
	if got := a.Scale(2); got != Vec(6, 8) {
		t.Errorf("expected (6,8), got %v", got)
	}
	if got := a.Magnitude(); got != 5 {
		t.Errorf("expected magnitude 5, got %f", got)
	}
	if got := a.Dot(b); got != -5 {
		t.Errorf("expected dot -5, got %f", got)
	}
}

func TestVectorZeroSafe(t *testing.T) {
	var z Vector2
	if got := z.Normalize(); !got.IsZero() {
		t.Errorf("expected zero vector to normalize to zero, got %v", got)
	}
	if got := Vec(1, 1).Div(0); !got.IsZero() {
		t.Errorf("expected division by zero to give zero, got %v", got)
	}
	if got := z.Angle(); got != 0 {
		t.Errorf("expected angle 0 for zero vector, got %f", got)
	}
}

func TestVectorInPlace(t *testing.T) {
	v := Vec(1, 2)
	c := v.Copy()
	v.AddInPlace(Vec(1, 1))
	v.ScaleInPlace(2)
	v.SubInPlace(Vec(4, 0))
	if v != Vec(0, 6) {
		t.Errorf("expected (0,6), got %v", v)
	}
	if c != Vec(1, 2) {
		t.Errorf("copy should not change, got %v", c)
	}
}

func TestFromAngle(t *testing.T) {
	v := FromAngle(math.Pi/2, 3)
	if !approx(v.X, 0) || !approx(v.Y, 3) {
		t.Errorf("expected (0,3), got %v", v)
	}
	if !approx(v.Angle(), math.Pi/2) {
		t.Errorf("expected angle pi/2, got %f", v.Angle())
	}
}

func TestNormalizeAngle(t *testing.T) {
	if got := NormalizeAngle(3 * math.Pi); !approx(math.Abs(got), math.Pi) {
		t.Errorf("expected +-pi, got %f", got)
	}
	if got := NormalizeAngle(-math.Pi / 2); !approx(got, -math.Pi/2) {
		t.Errorf("expected -pi/2 unchanged, got %f", got)
	}
}
