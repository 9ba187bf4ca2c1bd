// Package domain holds the system module response shapes
package domain

// HealthResponse is the liveness payload
// swagger:model
type HealthResponse struct {
	Status         string `json:"status"          example:"ok"`
	WebhookEnabled bool   `json:"webhook_enabled" example:"true"`
	WebhookURL     string `json:"webhook_url,omitempty" example:"http://hub.local/facewarden"`
}

// SystemInfo describes the running agent
type SystemInfo struct {
	Running        bool   `json:"running"         example:"true"`
	APIVersion     string `json:"api_version"     example:"2.0.0"`
	WebhookEnabled bool   `json:"webhook_enabled" example:"true"`
	UptimeSeconds  int64  `json:"uptime_seconds"  example:"3600"`
}

// RecognitionInfo describes the identity database state
type RecognitionInfo struct {
	Enabled       bool `json:"enabled"        example:"true"`
	EnrolledFaces int  `json:"enrolled_faces" example:"4"`
}

// StorageInfo reports how full the media archives are
type StorageInfo struct {
	FramesStored int `json:"frames_stored" example:"87"`
	ClipsStored  int `json:"clips_stored"  example:"3"`
}

// StatusResponse is the full agent status payload
// swagger:model
type StatusResponse struct {
	Status          string          `json:"status" example:"ok"`
	System          SystemInfo      `json:"system"`
	FaceRecognition RecognitionInfo `json:"face_recognition"`
	Storage         StorageInfo     `json:"storage"`
	Timestamp       string          `json:"timestamp" example:"2025-08-23T10:15:42Z"`
}
