package fault

import (
	"math"
	"math/rand/v2"
)

// Source は [0, 1) の一様乱数を返す。
// 1つのワーカー専用で、並行利用は安全ではない。
type Source interface {
	Float64() float64
}

// NewSource はシードから決定的な PCG 乱数列を作成する
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// DeriveSeed はベースシードとストリーム番号を混ぜ、ワーカーごとに独立した乱数列のシードを返す（splitmix64）
func DeriveSeed(base uint64, stream int) uint64 {
	z := base + uint64(stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// FixedSource は常に同じ値を返す
type FixedSource struct {
	value float64
}

// NewFixedSource は v を [0, 1) に丸めて FixedSource を作成する
func NewFixedSource(v float64) *FixedSource {
	return &FixedSource{value: clampSample(v)}
}

// Float64 は固定値を返す
func (f *FixedSource) Float64() float64 {
	return f.value
}

// SequenceSource は与えられた値を順に返し、末尾に達したら先頭に戻る
type SequenceSource struct {
	values []float64
	next   int
	drawn  int
}

// NewSequenceSource は SequenceSource を作成する（値が空なら panic）
func NewSequenceSource(values ...float64) *SequenceSource {
	if len(values) == 0 {
		panic("fault: sequence source needs at least one value")
	}
	vs := make([]float64, len(values))
	for i, v := range values {
		vs[i] = clampSample(v)
	}
	return &SequenceSource{values: vs}
}

// Float64 は次の値を返す
func (s *SequenceSource) Float64() float64 {
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	s.drawn++
	return v
}

// Drawn は消費された値の数を返す
func (s *SequenceSource) Drawn() int {
	return s.drawn
}

func clampSample(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, math.Nextafter(1, 0))
}
