package game

import "math"

// Vector2 is a 2D vector. Methods with value receivers return new vectors;
// the *InPlace variants mutate the receiver.
type Vector2 struct {
	X float64
	Y float64
}

// Vec is shorthand for Vector2{X: x, Y: y}
func Vec(x, y float64) Vector2 {
	return Vector2{X: x, Y: y}
}

// FromAngle creates a vector from an angle (radians) and magnitude
func FromAngle(angle, magnitude float64) Vector2 {
	return Vector2{X: magnitude * math.Cos(angle), Y: magnitude * math.Sin(angle)}
}

// Add returns v + o
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o
func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v * s
func (v Vector2) Scale(s float64) Vector2 {
	return Vector2{X: v.X * s, Y: v.Y * s}
}

// Div returns v / s. Division by zero yields the zero vector.
func (v Vector2) Div(s float64) Vector2 {
	if s == 0 {
		return Vector2{}
	}
	return Vector2{X: v.X / s, Y: v.Y / s}
}

// Magnitude returns the length of v
func (v Vector2) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalize returns a unit vector in the direction of v, or zero for the zero vector
func (v Vector2) Normalize() Vector2 {
	m := v.Magnitude()
	if m == 0 {
		return Vector2{}
	}
	return Vector2{X: v.X / m, Y: v.Y / m}
}

// Dot returns the dot product of v and o
func (v Vector2) Dot(o Vector2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Distance returns the distance between two points
func (v Vector2) Distance(o Vector2) float64 {
	return v.Sub(o).Magnitude()
}

// Angle returns the direction of v in radians (0 for the zero vector)
func (v Vector2) Angle() float64 {
	if v.X == 0 && v.Y == 0 {
		return 0
	}
	return math.Atan2(v.Y, v.X)
}

// IsZero reports whether both components are zero
func (v Vector2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Copy returns a copy of v
func (v Vector2) Copy() Vector2 {
	return v
}

// Set overwrites both components
func (v *Vector2) Set(x, y float64) {
	v.X = x
	v.Y = y
}

// AddInPlace adds o to v
func (v *Vector2) AddInPlace(o Vector2) {
	v.X += o.X
	v.Y += o.Y
}

// SubInPlace subtracts o from v
func (v *Vector2) SubInPlace(o Vector2) {
	v.X -= o.X
	v.Y -= o.Y
}

// ScaleInPlace multiplies v by s
func (v *Vector2) ScaleInPlace(s float64) {
	v.X *= s
	v.Y *= s
}
