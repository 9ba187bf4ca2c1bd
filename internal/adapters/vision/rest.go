package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"facewarden/internal/core/face"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"
)

// restBackend talks to a CompreFace-style detector service: multipart frame
// upload, x-api-key auth, JSON boxes back. Embeddings come from the same
// endpoint with the calculator plugin enabled.
type restBackend struct {
	cfg  Config
	http *http.Client
	log  logger.Logger
}

func newREST(cfg Config, log logger.Logger) *restBackend {
	return &restBackend{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("backend", BackendREST).Logger(),
	}
}

type restBox struct {
	XMin        int     `json:"x_min"`
	YMin        int     `json:"y_min"`
	XMax        int     `json:"x_max"`
	YMax        int     `json:"y_max"`
	Probability float64 `json:"probability"`
}

type restFace struct {
	Box restBox `json:"box"`
	// detection_probability is the detect-endpoint field; older services only
	// fill box.probability
	Confidence float64   `json:"detection_probability"`
	Embedding  []float64 `json:"embedding"`
}

type restResult struct {
	Result []restFace `json:"result"`
}

func (b *restBackend) Locate(ctx context.Context, img image.Image) ([]face.Detection, error) {
	res, err := b.detect(ctx, img, url.Values{
		"det_prob_threshold": {formatFloat(b.cfg.MinConfidence)},
	})
	if err != nil {
		return nil, err
	}

	dets := make([]face.Detection, 0, len(res.Result))
	for _, f := range res.Result {
		conf := f.Confidence
		if conf == 0 {
			conf = f.Box.Probability
		}
		if conf < b.cfg.MinConfidence {
			continue
		}
		dets = append(dets, face.Detection{
			Box:        face.BBox{X1: f.Box.XMin, Y1: f.Box.YMin, X2: f.Box.XMax, Y2: f.Box.YMax},
			Confidence: conf,
		})
	}
	return dets, nil
}

func (b *restBackend) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	res, err := b.detect(ctx, img, url.Values{
		"face_plugins": {"calculator"},
	})
	if err != nil {
		return nil, err
	}
	if len(res.Result) == 0 {
		return nil, perr.NotFoundf("no face in chip")
	}
	emb := res.Result[0].Embedding
	if len(emb) == 0 {
		return nil, perr.Unavailablef("detector returned no embedding")
	}
	return emb, nil
}

func (b *restBackend) Probe(ctx context.Context) error {
	return probeBlank(ctx, b)
}

func (b *restBackend) Close() error { return nil }

func (b *restBackend) detect(ctx context.Context, img image.Image, params url.Values) (restResult, error) {
	jpeg, err := face.EncodeJPEG(img, 85)
	if err != nil {
		return restResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "encode frame for detector")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return restResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "detector form")
	}
	if _, err := fw.Write(jpeg); err != nil {
		return restResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "detector form")
	}
	if err := mw.Close(); err != nil {
		return restResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "detector form")
	}

	u := b.cfg.BaseURL + "/api/v1/detection/detect"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return restResult{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "detector request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if b.cfg.APIKey != "" {
		req.Header.Set("x-api-key", b.cfg.APIKey)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return restResult{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "detector request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if resp.StatusCode >= 500 {
			return restResult{}, perr.Unavailablef("detector status %d: %s", resp.StatusCode, tail)
		}
		return restResult{}, perr.Rejectedf("detector status %d: %s", resp.StatusCode, tail)
	}

	var res restResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return restResult{}, perr.JSONErrf("detector response: %v", err)
	}
	return res, nil
}

func formatFloat(f float64) string {
	data, _ := json.Marshal(f)
	return string(data)
}
