package event

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"facewarden/internal/core/face"

	"github.com/google/uuid"
)

// TestWireRoundTrip verifies marshal then unmarshal preserves detections,
// timestamp, and metadata.
func TestWireRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 8, 23, 10, 15, 42, 123456000, time.UTC)
	name := "ada"
	e := New(TypeVerifiedPerson, "front_door", at, []Detection{
		{Label: face.Label, Confidence: 0.97, BBox: [4]int{64, 48, 196, 210}, Name: &name},
	}, SourceAutomatic)
	e.AttachFrame("http://host:8090/frames/verified_ada_20250823_101542_123456.jpg")

	data, err := Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.CameraID != "front_door" || got.Type != TypeVerifiedPerson {
		t.Fatalf("identity fields mangled: %+v", got)
	}
	if !got.Timestamp.Equal(at) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, at)
	}
	if len(got.Detections) != 1 {
		t.Fatalf("detections = %d, want 1", len(got.Detections))
	}
	d := got.Detections[0]
	if d.Label != "face" || d.Confidence != 0.97 || d.BBox != [4]int{64, 48, 196, 210} {
		t.Fatalf("detection mangled: %+v", d)
	}
	if d.Name == nil || *d.Name != "ada" {
		t.Fatalf("name mangled: %v", d.Name)
	}
	if got.FrameURL == nil || !strings.HasSuffix(*got.FrameURL, ".jpg") {
		t.Fatalf("frame_url mangled: %v", got.FrameURL)
	}
	if got.Metadata["alert_source"] != SourceAutomatic {
		t.Fatalf("metadata mangled: %v", got.Metadata)
	}
	if got.ID() != e.ID() {
		t.Fatalf("event_id changed across the wire: %q vs %q", got.ID(), e.ID())
	}
}

// TestMarshal_FixedFieldSet verifies absent attachments and unknown names are
// carried as explicit nulls and the timestamp lands in RFC3339 UTC form.
func TestMarshal_FixedFieldSet(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 8, 23, 10, 15, 42, 123456000, time.FixedZone("CEST", 2*3600))
	e := New(TypeUnknownPerson, "front_door", at, []Detection{
		{Label: face.Label, Confidence: 0.92, BBox: [4]int{64, 48, 196, 210}},
	}, SourceAutomatic)

	data, err := Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{
		"camera_id", "event_type", "timestamp", "detections",
		"frame_url", "frame_base64", "clip_url", "metadata",
	} {
		if _, ok := raw[field]; !ok {
			t.Fatalf("field %q missing from the wire form: %s", field, data)
		}
	}
	for _, field := range []string{"frame_url", "frame_base64", "clip_url"} {
		if string(raw[field]) != "null" {
			t.Fatalf("%s = %s, want null", field, raw[field])
		}
	}
	if string(raw["timestamp"]) != `"2025-08-23T08:15:42.123456Z"` {
		t.Fatalf("timestamp = %s, want the UTC microsecond form", raw["timestamp"])
	}
	if !strings.Contains(string(raw["detections"]), `"name":null`) {
		t.Fatalf("unknown detection should carry name null: %s", raw["detections"])
	}
	if !strings.Contains(string(raw["detections"]), `"bbox":[64,48,196,210]`) {
		t.Fatalf("bbox should be a flat array: %s", raw["detections"])
	}
}

// TestMarshal_RejectsSchemaViolations verifies the serialization boundary
// refuses events that would confuse consumers.
func TestMarshal_RejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 8, 23, 10, 15, 42, 0, time.UTC)

	if _, err := Marshal(Event{CameraID: "cam", Type: "detected_something", Timestamp: at}); err == nil {
		t.Fatalf("unknown type accepted")
	}
	if _, err := Marshal(Event{CameraID: "", Type: TypeFaceDetected, Timestamp: at}); err == nil {
		t.Fatalf("empty camera_id accepted")
	}
	if _, err := Marshal(Event{CameraID: "cam", Type: TypeFaceDetected}); err == nil {
		t.Fatalf("zero timestamp accepted")
	}
}

// TestMarshal_NilDetectionsBecomeEmptyArray verifies clip announcements with
// no detections serialize as [] rather than null.
func TestMarshal_NilDetectionsBecomeEmptyArray(t *testing.T) {
	t.Parallel()

	e := Event{
		CameraID:  "front_door",
		Type:      TypeTrainingClip,
		Timestamp: time.Date(2025, 8, 23, 10, 15, 42, 0, time.UTC),
	}
	data, err := Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"detections":[]`) {
		t.Fatalf("nil detections should marshal as []: %s", data)
	}
}

// TestUnmarshal_RejectsBadPayloads verifies consumers of the inbound path get
// errors instead of half-filled events.
func TestUnmarshal_RejectsBadPayloads(t *testing.T) {
	t.Parallel()

	if _, err := Unmarshal([]byte(`{`)); err == nil {
		t.Fatalf("truncated JSON accepted")
	}
	if _, err := Unmarshal([]byte(`{"camera_id":"c","event_type":"nope","timestamp":"2025-08-23T10:15:42Z"}`)); err == nil {
		t.Fatalf("unknown event_type accepted")
	}
}

// TestNew_StampsIdentityMetadata verifies fresh events carry a parseable
// event_id and the alert source.
func TestNew_StampsIdentityMetadata(t *testing.T) {
	t.Parallel()

	e := New(TypeFaceDetected, "front_door", time.Now(), nil, SourceManual)
	if _, err := uuid.Parse(e.ID()); err != nil {
		t.Fatalf("event_id %q is not a uuid: %v", e.ID(), err)
	}
	if e.Metadata["alert_source"] != SourceManual {
		t.Fatalf("alert_source = %v", e.Metadata["alert_source"])
	}
	if e.Detections == nil || len(e.Detections) != 0 {
		t.Fatalf("nil detections should normalize to empty: %#v", e.Detections)
	}

	other := New(TypeFaceDetected, "front_door", time.Now(), nil, SourceManual)
	if e.ID() == other.ID() {
		t.Fatalf("event ids should be unique")
	}
}

// TestAttachInline encodes the frame bytes as base64.
func TestAttachInline(t *testing.T) {
	t.Parallel()

	e := New(TypeUnknownPerson, "front_door", time.Now(), nil, SourceAutomatic)
	e.AttachInline([]byte{0xFF, 0xD8, 0xFF})

	if e.FrameBase64 == nil {
		t.Fatalf("frame_base64 not set")
	}
	raw, err := base64.StdEncoding.DecodeString(*e.FrameBase64)
	if err != nil || len(raw) != 3 || raw[0] != 0xFF {
		t.Fatalf("frame_base64 does not decode back: %v %v", raw, err)
	}
}

// TestFromDetection maps pipeline detections onto the wire shape.
func TestFromDetection(t *testing.T) {
	t.Parallel()

	known := FromDetection(face.Detection{
		Box:        face.BBox{X1: 1, Y1: 2, X2: 3, Y2: 4},
		Confidence: 0.97,
		Name:       "ada",
	})
	if known.Label != "face" || known.BBox != [4]int{1, 2, 3, 4} {
		t.Fatalf("wire detection mangled: %+v", known)
	}
	if known.Name == nil || *known.Name != "ada" {
		t.Fatalf("known name should survive: %v", known.Name)
	}

	unknown := FromDetection(face.Detection{Box: face.BBox{X2: 10, Y2: 10}, Confidence: 0.8})
	if unknown.Name != nil {
		t.Fatalf("empty name should map to null, got %q", *unknown.Name)
	}
}

// TestParseType covers the history API filter values.
func TestParseType(t *testing.T) {
	t.Parallel()

	for _, typ := range Types() {
		got, ok := ParseType(string(typ))
		if !ok || got != typ {
			t.Fatalf("ParseType(%q) = %q, %v", typ, got, ok)
		}
	}
	if _, ok := ParseType("person_spotted"); ok {
		t.Fatalf("ParseType accepted an unknown value")
	}
}
