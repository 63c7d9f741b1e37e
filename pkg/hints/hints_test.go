package hints

import (
	"testing"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/gamedata"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmitter(t *testing.T) *Emitter {
	t.Helper()
	table, err := gamedata.Parse([]byte(`{
		"templates": [],
		"locations": [
			{"checkId": 2001, "name": "Shop Slot 1", "region": "settlement", "shop": true},
			{"checkId": 2002, "name": "Shop Slot 2", "region": "settlement", "shop": true},
			{"checkId": 2003, "name": "Shop Slot 3", "region": "settlement", "shop": true}
		]
	}`))
	require.NoError(t, err)
	return NewEmitter(NewEmitterOptions{GameData: table})
}

func decodeHints(t *testing.T, msg *protocol.Message) []int64 {
	t.Helper()
	require.NotNil(t, msg)
	require.Equal(t, protocol.MessageTypeCreateHints, msg.Type)
	var hints protocol.CreateHints
	require.NoError(t, protocol.DecodePayload(msg, &hints))
	return hints.LocationIDs
}

func TestEmitter_HandleShopOpenedHintsEachLocationOnce(t *testing.T) {
	e := testEmitter(t)

	event := adapter.ShopOpenedEvent{
		ShopID: "greirat",
		Items: []adapter.ShopItem{
			{TemplateID: "ap_2001", LocationID: 2001},
			{TemplateID: "ap_2002", LocationID: 2002},
		},
	}

	msg, err := e.HandleShopOpened(event)
	require.NoError(t, err)
	assert.Equal(t, []int64{2001, 2002}, decodeHints(t, msg))

	// Browsing the same shop again produces nothing new.
	msg, err = e.HandleShopOpened(event)
	require.NoError(t, err)
	assert.Nil(t, msg)

	// New stock yields only the unhinted location.
	event.Items = append(event.Items, adapter.ShopItem{TemplateID: "ap_2003", LocationID: 2003})
	msg, err = e.HandleShopOpened(event)
	require.NoError(t, err)
	assert.Equal(t, []int64{2003}, decodeHints(t, msg))
}

func TestEmitter_HandleShopOpenedSkipsUnknownLocations(t *testing.T) {
	e := testEmitter(t)

	msg, err := e.HandleShopOpened(adapter.ShopOpenedEvent{
		ShopID: "greirat",
		Items: []adapter.ShopItem{
			{TemplateID: "soul_of_a_crestfallen_knight", LocationID: 9999},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, 0, e.HintedCount())
}

func TestEmitter_ResetForSeedClearsHintedSet(t *testing.T) {
	e := testEmitter(t)
	e.ResetForSeed("seed-a")

	event := adapter.ShopOpenedEvent{
		ShopID: "greirat",
		Items:  []adapter.ShopItem{{TemplateID: "ap_2001", LocationID: 2001}},
	}

	msg, err := e.HandleShopOpened(event)
	require.NoError(t, err)
	require.NotNil(t, msg)

	// Same seed: nothing changes.
	e.ResetForSeed("seed-a")
	msg, err = e.HandleShopOpened(event)
	require.NoError(t, err)
	assert.Nil(t, msg)

	// New seed: everything is hintable again.
	e.ResetForSeed("seed-b")
	msg, err = e.HandleShopOpened(event)
	require.NoError(t, err)
	assert.Equal(t, []int64{2001}, decodeHints(t, msg))
}
