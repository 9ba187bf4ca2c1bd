// Package domain holds the manual alert contracts
package domain

// ManualAlertForm is the multipart payload posted by external detectors.
// BBox is the wire form "x1,y1,x2,y2"; the frame file rides alongside.
type ManualAlertForm struct {
	CameraID        string         `json:"camera_id"        validate:"omitempty,max=64"`
	BBox            string         `json:"bbox"             validate:"required"`
	Confidence      float64        `json:"confidence"       validate:"gte=0,lte=1"`
	PersonName      string         `json:"person_name"      validate:"omitempty,max=128"`
	MatchConfidence float64        `json:"match_confidence" validate:"gte=0,lte=1"`
	Metadata        map[string]any `json:"metadata"         validate:"-"`

	// Frame is the uploaded JPEG
	Frame []byte `json:"-" validate:"required"`
}

// AlertReceipt reports what an injected alert turned into
// swagger:model
type AlertReceipt struct {
	Dispatched bool   `json:"dispatched" example:"true"`
	EventType  string `json:"event_type" example:"unknown_person_detected"`
	FrameURL   string `json:"frame_url,omitempty" example:"http://host:8090/frames/unknown_person_20250823_101542_123456.jpg"`
}
