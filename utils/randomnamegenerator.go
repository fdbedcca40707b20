package utils

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Pallinder/go-randomdata"
)

// RandomNameGenerator hands out unique human readable names
type RandomNameGenerator struct {
	lock sync.Mutex
	used map[string]struct{}
}

func (rng *RandomNameGenerator) RandomName() string {
	rng.lock.Lock()
	defer rng.lock.Unlock()

	if rng.used == nil {
		rng.used = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	for {
		name := randomdata.SillyName()
		// avoid duplicate names
		if _, exists := rng.used[name]; !exists {
			rng.used[name] = struct{}{}
			return name
		}
	}
}

func (rng *RandomNameGenerator) Release(name string) {
	rng.lock.Lock()
	defer rng.lock.Unlock()
	delete(rng.used, name)
}
