package adapter

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryAdapter is a GameAdapter backed by plain in-memory state. It backs
// the client's dry-run mode and the test suite; real game integrations
// provide their own GameAdapter wired to the engine.
type InMemoryAdapter struct {
	lock           sync.Mutex
	inventory      map[string]ItemInstance
	validTemplates map[string]bool
	saveLoaded     bool
	saveSeed       string
	deaths         int
	goalReached    bool
}

func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{
		inventory:      make(map[string]ItemInstance),
		validTemplates: make(map[string]bool),
	}
}

// RegisterTemplate marks a template id as grantable.
func (a *InMemoryAdapter) RegisterTemplate(templateID string) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.validTemplates[templateID] = true
}

// UnregisterTemplate makes a template id fail synthesis, simulating an
// adapter that cannot construct the item.
func (a *InMemoryAdapter) UnregisterTemplate(templateID string) {
	a.lock.Lock()
	defer a.lock.Unlock()
	delete(a.validTemplates, templateID)
}

// LoadSave simulates loading into a save file with the given bound seed.
// An empty seed means the save has no binding yet.
func (a *InMemoryAdapter) LoadSave(seed string) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.saveLoaded = true
	a.saveSeed = seed
}

// UnloadSave simulates returning to the main menu.
func (a *InMemoryAdapter) UnloadSave() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.saveLoaded = false
	a.saveSeed = ""
}

// AddInventoryItem places an item with the given template directly into the
// inventory, bypassing synthesis. Used to simulate pickups.
func (a *InMemoryAdapter) AddInventoryItem(templateID string) ItemInstance {
	a.lock.Lock()
	defer a.lock.Unlock()
	instance := ItemInstance{
		ID:         uuid.New().String(),
		TemplateID: templateID,
	}
	a.inventory[instance.ID] = instance
	return instance
}

// SetGoalReached sets the goal condition flag.
func (a *InMemoryAdapter) SetGoalReached(reached bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.goalReached = reached
}

// Deaths returns how many times ApplyDeath has been called.
func (a *InMemoryAdapter) Deaths() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.deaths
}

func (a *InMemoryAdapter) ReadInventory(_ context.Context) ([]ItemInstance, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	items := make([]ItemInstance, 0, len(a.inventory))
	for _, item := range a.inventory {
		items = append(items, item)
	}
	return items, nil
}

func (a *InMemoryAdapter) GrantItem(_ context.Context, templateID string) (ItemInstance, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.validTemplates[templateID] {
		return ItemInstance{}, &InvalidTemplateError{TemplateID: templateID}
	}
	instance := ItemInstance{
		ID:         uuid.New().String(),
		TemplateID: templateID,
	}
	a.inventory[instance.ID] = instance
	return instance, nil
}

func (a *InMemoryAdapter) RemoveItem(_ context.Context, instanceID string) (bool, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if _, ok := a.inventory[instanceID]; !ok {
		return false, nil
	}
	delete(a.inventory, instanceID)
	return true, nil
}

func (a *InMemoryAdapter) CurrentSaveSeed(_ context.Context) (string, bool, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.saveLoaded {
		return "", false, nil
	}
	return a.saveSeed, true, nil
}

func (a *InMemoryAdapter) BindSaveSeed(_ context.Context, seed string) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.saveLoaded {
		return &NoSaveLoadedError{}
	}
	a.saveSeed = seed
	return nil
}

func (a *InMemoryAdapter) ApplyDeath(_ context.Context) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.deaths++
	return nil
}

func (a *InMemoryAdapter) GoalReached(_ context.Context) (bool, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.goalReached, nil
}
