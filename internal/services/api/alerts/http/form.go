package http

import (
	"encoding/json"
	"io"
	stdhttp "net/http"
	"strconv"
	"strings"

	"facewarden/internal/core/face"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/net/http/bind"
	"facewarden/internal/services/api/alerts/domain"

	"github.com/go-playground/validator/v10"
)

// maxUploadBytes bounds a multipart alert post; a camera frame is a few
// hundred KB, so this is generous
const maxUploadBytes = 16 << 20

// parseForm reads the multipart alert payload, validates it, and decodes
// the frame-relative bounding box
func parseForm(r *stdhttp.Request) (domain.ManualAlertForm, face.BBox, error) {
	var form domain.ManualAlertForm

	r.Body = stdhttp.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return form, face.BBox{}, perr.Validationf("multipart form: %v", err)
	}

	form.CameraID = strings.TrimSpace(r.FormValue("camera_id"))
	form.BBox = strings.TrimSpace(r.FormValue("bbox"))
	form.PersonName = strings.TrimSpace(r.FormValue("person_name"))

	var err error
	if form.Confidence, err = formFloat(r, "confidence"); err != nil {
		return form, face.BBox{}, err
	}
	if form.MatchConfidence, err = formFloat(r, "match_confidence"); err != nil {
		return form, face.BBox{}, err
	}

	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.Metadata); err != nil {
			return form, face.BBox{}, perr.Validationf("metadata: %v", err)
		}
	}

	file, _, err := r.FormFile("frame")
	if err != nil {
		return form, face.BBox{}, perr.Validationf("frame file is required")
	}
	defer file.Close()
	form.Frame, err = io.ReadAll(file)
	if err != nil {
		return form, face.BBox{}, perr.Validationf("frame file: %v", err)
	}

	if err := bind.Get().Validator.Struct(form); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return form, face.BBox{}, perr.Validationf("validation error")
		}
		_, msg := bind.ValidationFieldAndMessage(err)
		return form, face.BBox{}, perr.Validationf("%s", msg)
	}

	box, err := parseBBox(form.BBox)
	if err != nil {
		return form, face.BBox{}, err
	}
	return form, box, nil
}

func formFloat(r *stdhttp.Request, field string) (float64, error) {
	s := strings.TrimSpace(r.FormValue(field))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, perr.Validationf("%s must be a number", field)
	}
	return v, nil
}

// parseBBox decodes the wire form "x1,y1,x2,y2"
func parseBBox(s string) (face.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return face.BBox{}, perr.Validationf(`bbox must be "x1,y1,x2,y2"`)
	}
	coords := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return face.BBox{}, perr.Validationf(`bbox must be "x1,y1,x2,y2"`)
		}
		coords[i] = v
	}
	return face.BBox{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, nil
}
