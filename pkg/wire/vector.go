package wire

import "fmt"

// ScaleFactor converts real-valued parameters to integer wire words.
// The control script divides by the same factor when decoding.
const ScaleFactor = 1_000_000

// Vector6D is a six-component real vector: a pose (x, y, z, rx, ry, rz),
// a wrench (Fx, Fy, Fz, Mx, My, Mz) or a set of per-axis bounds.
type Vector6D [6]float64

// Words returns the vector scaled to wire words.
func (v Vector6D) Words() [6]int32 {
	var w [6]int32
	for i, f := range v {
		w[i] = scaleWord(f)
	}
	return w
}

// Floats returns the vector as a freshly allocated slice.
func (v Vector6D) Floats() []float64 {
	out := make([]float64, 6)
	copy(out, v[:])
	return out
}

// Selection is a per-axis boolean selection vector, encoded as 0/1 words.
type Selection [6]bool

// Words returns the selection as 0/1 wire words.
func (s Selection) Words() [6]int32 {
	var w [6]int32
	for i, b := range s {
		if b {
			w[i] = 1
		}
	}
	return w
}

// Floats returns the selection as 0/1 float values.
func (s Selection) Floats() []float64 {
	out := make([]float64, 6)
	for i, b := range s {
		if b {
			out[i] = 1
		}
	}
	return out
}

// scaleWord converts a real value to a scaled wire word.
func scaleWord(f float64) int32 {
	return int32(f * ScaleFactor)
}

// unscaleWord converts a scaled wire word back to a real value.
func unscaleWord(w int32) float64 {
	return float64(w) / ScaleFactor
}

// vectorFromWords reconstructs a Vector6D from six scaled words.
func vectorFromWords(w []int32) (Vector6D, error) {
	if len(w) != 6 {
		return Vector6D{}, fmt.Errorf("expected 6 words, got %d", len(w))
	}
	var v Vector6D
	for i, word := range w {
		v[i] = unscaleWord(word)
	}
	return v, nil
}

// selectionFromWords reconstructs a Selection from six 0/1 words.
func selectionFromWords(w []int32) (Selection, error) {
	if len(w) != 6 {
		return Selection{}, fmt.Errorf("expected 6 words, got %d", len(w))
	}
	var s Selection
	for i, word := range w {
		switch word {
		case 0:
		case 1:
			s[i] = true
		default:
			return Selection{}, fmt.Errorf("selection word %d out of range: %d", i, word)
		}
	}
	return s, nil
}
