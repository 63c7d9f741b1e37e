package hints

import (
	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/gamedata"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
)

// Emitter requests hints for randomized shop stock the first time the
// player browses it. Hints are edge-triggered: a location is hinted at
// most once per seed, no matter how many times its shop is opened.
type Emitter struct {
	gameData *gamedata.Table
	seed     string
	hinted   map[int64]bool
}

// NewEmitterOptions contains options for creating a new Emitter.
type NewEmitterOptions struct {
	GameData *gamedata.Table
}

func NewEmitter(opts NewEmitterOptions) *Emitter {
	return &Emitter{
		gameData: opts.GameData,
		hinted:   make(map[int64]bool),
	}
}

// ResetForSeed clears the hinted set when the bound seed changes.
// Calling it again with the same seed is a no-op.
func (e *Emitter) ResetForSeed(seed string) {
	if seed == e.seed {
		return
	}
	e.seed = seed
	e.hinted = make(map[int64]bool)
}

// HandleShopOpened returns a CreateHints message covering the randomized
// locations in the shop that have not been hinted yet, or nil when there
// is nothing new to hint.
func (e *Emitter) HandleShopOpened(event adapter.ShopOpenedEvent) (*protocol.Message, error) {
	var locationIDs []int64
	for _, item := range event.Items {
		if e.hinted[item.LocationID] {
			continue
		}
		location, ok := e.gameData.Location(item.LocationID)
		if !ok || !location.Shop {
			continue
		}
		e.hinted[item.LocationID] = true
		locationIDs = append(locationIDs, item.LocationID)
	}
	if len(locationIDs) == 0 {
		return nil, nil
	}

	log.Debug("Requesting hints for %d shop locations", len(locationIDs))

	return protocol.NewMessage(protocol.MessageTypeCreateHints, protocol.CreateHints{
		LocationIDs: locationIDs,
	})
}

// HintedCount returns how many locations have been hinted this seed.
func (e *Emitter) HintedCount() int {
	return len(e.hinted)
}
