// Package hyper provides the 8 dimensional coordinate math the chain is
// built on. Both block coordinates and account positions live in the unit
// hypercube [0,1]^8.
package hyper

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Dims is the dimensionality of the coordinate space.
const Dims = 8

// Vector represents a point or direction in the 8D space.
type Vector [Dims]float64

// Center returns the center point of the unit hypercube.
func Center() Vector {
	return Vector{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
}

// MaxDistance is the largest possible euclidean distance between a point in
// the unit hypercube and its center: sqrt(8 * 0.25).
func MaxDistance() float64 {
	return math.Sqrt(Dims * 0.25)
}

// Distance returns the euclidean distance between two vectors.
func Distance(a, b Vector) float64 {
	return floats.Distance(a[:], b[:], 2)
}

// Norm returns the euclidean length of the vector.
func Norm(v Vector) float64 {
	return floats.Norm(v[:], 2)
}

// Normalize scales the vector to unit length. The zero vector is returned
// unchanged since it has no direction.
func Normalize(v Vector) Vector {
	n := floats.Norm(v[:], 2)
	if n == 0 {
		return v
	}

	floats.Scale(1/n, v[:])
	return v
}

// Add returns a + b.
func Add(a, b Vector) Vector {
	floats.Add(a[:], b[:])
	return a
}

// Scale returns the vector scaled by c.
func Scale(c float64, v Vector) Vector {
	floats.Scale(c, v[:])
	return v
}

// ClampUnit clamps every axis of the vector into [0,1].
func ClampUnit(v Vector) Vector {
	for i := range v {
		v[i] = math.Min(1, math.Max(0, v[i]))
	}
	return v
}
