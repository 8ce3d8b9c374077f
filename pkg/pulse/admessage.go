package pulse

import "encoding/hex"

// AdMessage is one sponsored message shown in a channel.
type AdMessage struct {
	// OpaqueID is the hex encoded server random id. It is the only stable handle.
	OpaqueID string `json:"opaque_id"`
	// Title is the sponsor title.
	Title string `json:"title"`
	// Text is the message body.
	Text string `json:"text"`
	// URL is the sponsor link.
	URL string `json:"url"`
	// ButtonText labels the call to action.
	ButtonText string `json:"button_text"`
	// SponsorInfo is legal information about the sponsor.
	SponsorInfo string `json:"sponsor_info,omitempty"`
	// AdditionalInfo is extra legal information.
	AdditionalInfo string `json:"additional_info,omitempty"`
	// Recommended marks channel recommendations shown in the ad slot.
	Recommended bool `json:"recommended,omitempty"`
	// CanReport reports whether the ad may be reported.
	CanReport bool `json:"can_report,omitempty"`
}

// OpaqueIDFromRandomID encodes a server random id into an AdMessage handle.
func OpaqueIDFromRandomID(randomID []byte) string {
	return hex.EncodeToString(randomID)
}
