package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Name codec for archived media
//
// Filenames are the archive's only index, so detection history can be
// rebuilt from a directory listing alone. Timestamps are UTC with
// microsecond precision: 20060102_150405_000000

// Kind classifies an archived file by its name shape
type Kind int

const (
	// KindCapture is a routine annotated capture, frame_<ts>.jpg
	KindCapture Kind = iota

	// KindVerified is a verified person snapshot, verified_<slug>_<ts>.jpg
	KindVerified

	// KindUnknown is an unknown person snapshot, unknown_person_<ts>.jpg
	KindUnknown

	// KindClip is a training clip, clip_<ts>.mjpeg
	KindClip
)

// Parsed is the decoded form of an archive filename
type Parsed struct {
	Kind Kind

	// Person is the identity slug for verified snapshots, empty otherwise
	Person string

	// At is the capture time encoded in the name, UTC
	At time.Time
}

// CaptureName encodes a routine capture filename
func CaptureName(at time.Time) string {
	return "frame_" + stamp(at) + ".jpg"
}

// VerifiedName encodes a verified person snapshot filename
// slug must already be filesystem safe, see identity.Slug
func VerifiedName(slug string, at time.Time) string {
	return "verified_" + slug + "_" + stamp(at) + ".jpg"
}

// UnknownName encodes an unknown person snapshot filename
func UnknownName(at time.Time) string {
	return "unknown_person_" + stamp(at) + ".jpg"
}

// ClipName encodes a training clip filename
func ClipName(at time.Time) string {
	return "clip_" + stamp(at) + ".mjpeg"
}

// ParseName decodes an archive filename back into its parts
// ok is false for names that do not follow the codec
func ParseName(name string) (Parsed, bool) {
	switch {
	case strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".jpg"):
		at, ok := parseStampTokens(trim(name, "frame_", ".jpg"))
		return Parsed{Kind: KindCapture, At: at}, ok

	case strings.HasPrefix(name, "unknown_person_") && strings.HasSuffix(name, ".jpg"):
		at, ok := parseStampTokens(trim(name, "unknown_person_", ".jpg"))
		return Parsed{Kind: KindUnknown, At: at}, ok

	case strings.HasPrefix(name, "verified_") && strings.HasSuffix(name, ".jpg"):
		// slug may itself contain underscores, the stamp is always the
		// final three tokens
		tokens := strings.Split(trim(name, "verified_", ".jpg"), "_")
		if len(tokens) < 4 {
			return Parsed{}, false
		}
		at, ok := parseStamp(tokens[len(tokens)-3], tokens[len(tokens)-2], tokens[len(tokens)-1])
		if !ok {
			return Parsed{}, false
		}
		return Parsed{
			Kind:   KindVerified,
			Person: strings.Join(tokens[:len(tokens)-3], "_"),
			At:     at,
		}, true

	case strings.HasPrefix(name, "clip_") && strings.HasSuffix(name, ".mjpeg"):
		at, ok := parseStampTokens(trim(name, "clip_", ".mjpeg"))
		return Parsed{Kind: KindClip, At: at}, ok
	}

	return Parsed{}, false
}

func trim(name, prefix, suffix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
}

// stamp renders at as 20060102_150405_000000 in UTC
func stamp(at time.Time) string {
	at = at.UTC()
	return at.Format("20060102_150405") + "_" + fmt.Sprintf("%06d", at.Nanosecond()/1000)
}

func parseStampTokens(rest string) (time.Time, bool) {
	tokens := strings.Split(rest, "_")
	if len(tokens) != 3 {
		return time.Time{}, false
	}
	return parseStamp(tokens[0], tokens[1], tokens[2])
}

func parseStamp(date, clock, micros string) (time.Time, bool) {
	if len(date) != 8 || len(clock) != 6 || len(micros) != 6 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102_150405", date+"_"+clock)
	if err != nil {
		return time.Time{}, false
	}
	us, err := strconv.Atoi(micros)
	if err != nil || us < 0 {
		return time.Time{}, false
	}
	return t.Add(time.Duration(us) * time.Microsecond), true
}
