package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
)

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateUUID returns a random UUID v4 string
func GenerateUUID() string {
	b := make([]byte, 16)
	rand.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Distance returns the distance between two points on the ground plane
func Distance(x1, z1, x2, z2 float64) float64 {
	dx := x2 - x1
	dz := z2 - z1
	return math.Sqrt(dx*dx + dz*dz)
}

// Normalize2D scales (x, z) to unit length. Zero vectors stay zero.
func Normalize2D(x, z float64) (float64, float64) {
	mag := math.Sqrt(x*x + z*z)
	if mag == 0 {
		return 0, 0
	}
	return x / mag, z / mag
}

// Normalize3D scales (x, y, z) to unit length. Zero vectors stay zero.
func Normalize3D(x, y, z float64) (float64, float64, float64) {
	mag := math.Sqrt(x*x + y*y + z*z)
	if mag == 0 {
		return 0, 0, 0
	}
	return x / mag, y / mag, z / mag
}

// round1 rounds to one decimal place to shrink broadcast payloads
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
