// Package event defines the detection event wire schema.
//
// Every alert leaving the system, whether over the webhook, MQTT, or the
// websocket feed, is one of these. The field set is fixed: absent attachments
// are carried as JSON null rather than omitted, so consumers can bind a
// single shape.
package event

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"facewarden/internal/core/face"

	"github.com/google/uuid"
)

// Type enumerates the wire event kinds.
type Type string

const (
	// TypeFaceDetected announces one or more faces before identity is known.
	TypeFaceDetected Type = "face_detected"

	// TypeVerifiedPerson announces an enrolled identity matched at or above
	// the verified confidence threshold.
	TypeVerifiedPerson Type = "verified_person_detected"

	// TypeUnknownPerson announces a face that matched no enrolled identity.
	TypeUnknownPerson Type = "unknown_person_detected"

	// TypeTrainingClip announces a recorded clip ready for enrollment use.
	TypeTrainingClip Type = "training_clip_ready"
)

// Valid reports whether t is a known wire type.
func (t Type) Valid() bool {
	switch t {
	case TypeFaceDetected, TypeVerifiedPerson, TypeUnknownPerson, TypeTrainingClip:
		return true
	}
	return false
}

// Types returns the known wire types in stable order.
func Types() []Type {
	return []Type{TypeFaceDetected, TypeVerifiedPerson, TypeUnknownPerson, TypeTrainingClip}
}

// ParseType maps a wire string to its Type.
func ParseType(s string) (Type, bool) {
	t := Type(s)
	return t, t.Valid()
}

// Alert sources recorded in event metadata.
const (
	SourceAutomatic = "automatic"
	SourceManual    = "manual"
)

// Detection is one detected face on the wire. Name is null for faces that
// matched no enrolled identity.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
	Name       *string `json:"name"`
}

// FromDetection converts a pipeline detection to its wire form.
func FromDetection(d face.Detection) Detection {
	w := Detection{Label: face.Label, Confidence: d.Confidence, BBox: d.Box.Slice()}
	if d.Name != "" {
		name := d.Name
		w.Name = &name
	}
	return w
}

// Event is one detection event on the wire.
type Event struct {
	CameraID    string         `json:"camera_id"`
	Type        Type           `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	Detections  []Detection    `json:"detections"`
	FrameURL    *string        `json:"frame_url"`
	FrameBase64 *string        `json:"frame_base64"`
	ClipURL     *string        `json:"clip_url"`
	Metadata    map[string]any `json:"metadata"`
}

// New builds an event stamped with a fresh event_id and the given alert
// source. The timestamp is normalized to UTC so the wire form is stable.
func New(typ Type, cameraID string, at time.Time, dets []Detection, source string) Event {
	if dets == nil {
		dets = []Detection{}
	}
	return Event{
		CameraID:   cameraID,
		Type:       typ,
		Timestamp:  at.UTC(),
		Detections: dets,
		Metadata: map[string]any{
			"event_id":     uuid.NewString(),
			"alert_source": source,
		},
	}
}

// ID returns the event_id from metadata, or "" when absent.
func (e Event) ID() string {
	id, _ := e.Metadata["event_id"].(string)
	return id
}

// AttachFrame records the archived frame URL.
func (e *Event) AttachFrame(url string) { e.FrameURL = &url }

// AttachInline records the frame as base64 for consumers with no reachable
// archive URL.
func (e *Event) AttachInline(jpeg []byte) {
	s := base64.StdEncoding.EncodeToString(jpeg)
	e.FrameBase64 = &s
}

// AttachClip records the archived clip URL.
func (e *Event) AttachClip(url string) { e.ClipURL = &url }

// Marshal validates e against the wire schema and serializes it.
func Marshal(e Event) ([]byte, error) {
	if !e.Type.Valid() {
		return nil, fmt.Errorf("event: unknown type %q", string(e.Type))
	}
	if e.CameraID == "" {
		return nil, fmt.Errorf("event: camera_id is empty")
	}
	if e.Timestamp.IsZero() {
		return nil, fmt.Errorf("event: timestamp is zero")
	}

	w := e
	w.Timestamp = e.Timestamp.UTC()
	if w.Detections == nil {
		w.Detections = []Detection{}
	}
	return json.Marshal(w)
}

// Unmarshal parses wire JSON back into an event.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("event: decode: %w", err)
	}
	if !e.Type.Valid() {
		return Event{}, fmt.Errorf("event: unknown type %q", string(e.Type))
	}
	return e, nil
}
