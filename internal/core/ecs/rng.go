package ecs

// Rng is a seeded splitmix64 generator. Its whole state is one exported
// word, so it can live in a rollback resource and be snapshotted and encoded
// like any other value. Never seed it from wall-clock time inside a match.
type Rng struct {
	State uint64
}

func NewRng(seed uint64) Rng {
	return Rng{State: seed}
}

func (r *Rng) Uint64() uint64 {
	r.State += 0x9e3779b97f4a7c15
	z := r.State
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rng) Intn(n int) int {
	return int(r.Uint64() % uint64(n))
}

// Float64 returns a value in [0, 1).
func (r *Rng) Float64() float64 {
	return float64(r.Uint64()>>11) / (1 << 53)
}
