package gallery

import "math/rand"

// Strategy produces the navigation order of a filtered collection.
type Strategy interface {
	Order(images []Image) []Image
}

// Identity keeps the listing order.
type Identity struct{}

func (Identity) Order(images []Image) []Image {
	return images
}

// Shuffle permutes the collection in place with Fisher-Yates. A nil Rand uses the
// global source, so every call yields a fresh permutation.
type Shuffle struct {
	Rand *rand.Rand
}

func (s Shuffle) Order(images []Image) []Image {
	for i := len(images) - 1; i > 0; i-- {
		j := s.intn(i + 1)
		images[i], images[j] = images[j], images[i]
	}
	return images
}

func (s Shuffle) intn(n int) int {
	if s.Rand == nil {
		return rand.Intn(n)
	}
	return s.Rand.Intn(n)
}

// StrategyFor returns Shuffle when shuffle is set and Identity otherwise.
func StrategyFor(shuffle bool) Strategy {
	if shuffle {
		return Shuffle{}
	}
	return Identity{}
}
