package convert

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/pixload/darkroom/internal/util"
	"github.com/rs/zerolog"
)

type Handler struct {
	service   *Service
	validator *Validator
	maxMemory int64
	logger    zerolog.Logger
}

// Response is the JSON descriptor returned when no binary was requested.
type Response struct {
	OK      bool   `json:"ok"`
	Format  string `json:"format"`
	URL     string `json:"url,omitempty"`
	Key     string `json:"key,omitempty"`
	Error   string `json:"error,omitempty"`
	Deduped bool   `json:"deduped,omitempty"`
	Bytes   int    `json:"bytes"`
	Hash    string `json:"hash"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

type errorResponse struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func NewHandler(service *Service, validator *Validator, maxMemory int64, logger zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		validator: validator,
		maxMemory: maxMemory,
		logger:    logger,
	}
}

// HandleConvert handles a multipart (or urlencoded) conversion request
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := r.ParseMultipartForm(h.maxMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Error().Err(err).Msg("failed to parse multipart form")
		h.writeError(w, invalid("parse form", "Failed to parse form"))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var upload io.Reader
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		upload = file
	}

	req, err := h.validator.Validate(formFromRequest(r), upload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.Convert(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if req.ReturnBinary {
		h.writeBinary(w, result)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, Response{
		OK:      true,
		Format:  result.Format,
		URL:     result.URL,
		Key:     result.Key,
		Error:   result.UploadError,
		Deduped: result.Deduped,
		Bytes:   len(result.Data),
		Hash:    "sha256:" + result.Hash,
		Width:   result.Width,
		Height:  result.Height,
	})
}

func formFromRequest(r *http.Request) Form {
	return Form{
		Token:           r.PostFormValue("token"),
		SourceURL:       r.PostFormValue("src_url"),
		Format:          r.PostFormValue("format"),
		Quality:         r.PostFormValue("q"),
		Size:            r.PostFormValue("size"),
		Square:          r.PostFormValue("square"),
		StripEXIF:       r.PostFormValue("strip_exif"),
		OverlayURL:      r.PostFormValue("overlay_url"),
		OverlayScale:    r.PostFormValue("overlay_scale"),
		OverlaySafeZone: r.PostFormValue("overlay_safe_zone"),
		OverlayOpacity:  r.PostFormValue("overlay_opacity"),
		UploadS3:        r.PostFormValue("upload_s3"),
		KeyName:         r.PostFormValue("key_name"),
		KeyPrefix:       r.PostFormValue("key_prefix"),
		ReturnBinary:    r.PostFormValue("return_binary"),
		AVIFSpeed:       r.PostFormValue("avif_speed"),
	}
}

func (h *Handler) writeBinary(w http.ResponseWriter, result *Result) {
	header := w.Header()
	header.Set("Content-Type", result.ContentType)
	header.Set("Content-Disposition", util.ContentDisposition(result.Filename))
	header.Set("Content-Length", strconv.Itoa(len(result.Data)))
	if result.Key != "" {
		header.Set("X-Storage-Key", result.Key)
		header.Set("X-Storage-URL", result.URL)
	}
	if result.UploadError != "" {
		header.Set("X-Upload-Error", result.UploadError)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		h.logger.Error().Err(err).Msg("failed to write binary response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).Str("kind", string(KindOf(err))).Int("status", status).Msg("conversion rejected")

	h.writeJSONResponse(w, status, errorResponse{OK: false, Detail: DetailOf(err)})
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}
