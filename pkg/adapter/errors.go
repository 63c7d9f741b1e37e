package adapter

import "fmt"

// InvalidTemplateError is returned by GrantItem when the template id does
// not resolve to a real in-game item.
type InvalidTemplateError struct {
	TemplateID string
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid item template: %s", e.TemplateID)
}

func IsInvalidTemplate(err error) bool {
	_, ok := err.(*InvalidTemplateError)
	return ok
}

// NoSaveLoadedError is returned by operations that require a loaded save.
type NoSaveLoadedError struct{}

func (e *NoSaveLoadedError) Error() string {
	return "no save file is loaded"
}
