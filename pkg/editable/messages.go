// Package editable implements the message protocol between in-place editable
// UI elements and the host editor that controls them.
//
// Elements announce themselves on mount, observe a global edit-mode flag, and
// perform inline edit round trips over the shared bus. The save message is
// fire-and-forget: the element optimistically leaves edit state as soon as it
// is sent, since the protocol defines no acknowledgment.
package editable

// Message type discriminators for the editable-content protocol.
const (
	// Element to host.
	MsgRegister     = "EDITABLE_REGISTER"
	MsgUnregister   = "EDITABLE_UNREGISTER"
	MsgEditResponse = "EDITABLE_EDIT_RESPONSE"
	MsgSaveInline   = "EDITABLE_SAVE_INLINE"

	// Host to element.
	MsgModeChange      = "EDITABLE_MODE_CHANGE"
	MsgStartInlineEdit = "EDITABLE_START_INLINE_EDIT"
	MsgEditRequest     = "EDITABLE_EDIT_REQUEST"
)

// Rect is the bounding geometry of an element as last observed.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RegisterPayload announces an editable element to the host. Content is only
// meaningful when the element wraps plain text.
type RegisterPayload struct {
	ID           string `json:"id"`
	FilePath     string `json:"filePath"`
	PropertyPath string `json:"propertyPath,omitempty"`
	Content      string `json:"content"`
	Rect         Rect   `json:"rect"`
}

// UnregisterPayload withdraws an element by id on unmount.
type UnregisterPayload struct {
	ID string `json:"id"`
}

// ModeChangePayload toggles the global edit-mode flag for all elements.
type ModeChangePayload struct {
	Enabled bool `json:"enabled"`
}

// StartInlineEditPayload instructs one element to enter inline edit state.
type StartInlineEditPayload struct {
	ID string `json:"id"`
}

// EditRequestPayload asks one element to report its current state.
type EditRequestPayload struct {
	ID string `json:"id"`
}

// EditResponsePayload is the element's reply to an edit request.
type EditResponsePayload struct {
	ID           string `json:"id"`
	FilePath     string `json:"filePath"`
	PropertyPath string `json:"propertyPath,omitempty"`
	Content      string `json:"content"`
	Rect         Rect   `json:"rect"`
}

// SaveInlinePayload reports a confirmed inline edit. There is no
// acknowledgment; the sender has already exited edit state.
type SaveInlinePayload struct {
	ID           string `json:"id"`
	FilePath     string `json:"filePath"`
	PropertyPath string `json:"propertyPath,omitempty"`
	OldContent   string `json:"oldContent"`
	NewContent   string `json:"newContent"`
}

// subscriberName is the bus name an element listens under, so the host can
// target it by id.
func subscriberName(id string) string {
	return "editable:" + id
}
