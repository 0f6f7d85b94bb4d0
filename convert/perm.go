package convert

// Perm16 is a permutation on points 1..len(p) in the compact 2-byte
// encoding: p[i] is the image of point i+1. Images are stored 0-based so a
// permutation on n points fits any n < 1<<16.
type Perm16 []uint16

// Perm32 is the 4-byte analogue of Perm16 for permutations on up to 1<<32
// points.
type Perm32 []uint32

// Degree returns the number of points the permutation acts on.
func (p Perm16) Degree() int { return len(p) }

// Degree returns the number of points the permutation acts on.
func (p Perm32) Degree() int { return len(p) }
