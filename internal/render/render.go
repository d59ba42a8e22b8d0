package render

import "time"

// ReadyPayload is emitted once when a tracker finishes initialising.
type ReadyPayload struct {
	Pair        string    `json:"pair"`
	DisplayName string    `json:"display_name"`
	LogoURL     string    `json:"logo_url,omitempty"`
	At          time.Time `json:"at"`
}

// UpdatePayload carries the full per-tick view of a tracker. String fields
// arrive formatted and ready for display.
type UpdatePayload struct {
	Pair               string    `json:"pair"`
	Elapsed            string    `json:"elapsed"`
	ElapsedSeconds     int64     `json:"elapsed_seconds"`
	Price              string    `json:"price"`
	ChangeFromStart    string    `json:"change_from_start"`
	NetChangeFromStart string    `json:"net_change_from_start"`
	Change1m           string    `json:"change_1m"`
	Change5m           string    `json:"change_5m"`
	CurrentValue       string    `json:"current_value"`
	TargetValue        string    `json:"target_value"`
	SessionLow         string    `json:"session_low"`
	SessionHigh        string    `json:"session_high"`
	SellAlert          bool      `json:"sell_alert"`
	BuyAlert           bool      `json:"buy_alert"`
	At                 time.Time `json:"at"`
}

// Renderer consumes tracker output. Implementations must be safe for
// concurrent use; trackers call them from their tick goroutines.
type Renderer interface {
	Ready(ReadyPayload)
	Update(UpdatePayload)
}

// Multi fans payloads out to several renderers in order.
type Multi []Renderer

// Ready forwards the payload to every renderer.
func (m Multi) Ready(p ReadyPayload) {
	for _, r := range m {
		r.Ready(p)
	}
}

// Update forwards the payload to every renderer.
func (m Multi) Update(p UpdatePayload) {
	for _, r := range m {
		r.Update(p)
	}
}

var _ Renderer = (Multi)(nil)
