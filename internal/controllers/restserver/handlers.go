package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/chrissnell/pvyield/internal/weather"
	"github.com/chrissnell/pvyield/internal/yield"
	"github.com/chrissnell/pvyield/pkg/geo"
	"github.com/chrissnell/pvyield/pkg/responseformat"
)

// maxRequestBytes bounds a yield request body.
const maxRequestBytes = 4 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	calculator YieldCalculator
	formatter  *responseformat.Formatter
	logger     *zap.SugaredLogger
}

// NewHandlers creates a new handlers instance
func NewHandlers(calc YieldCalculator, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{
		calculator: calc,
		formatter:  responseformat.NewFormatter(),
		logger:     logger,
	}
}

// PostYield calculates the annual yield of the installation in the body.
func (h *Handlers) PostYield(w http.ResponseWriter, req *http.Request) {
	requestID := RequestID(req.Context())

	var yreq yield.Request
	if err := decodeRequest(w, req, &yreq); err != nil {
		h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}

	res, err := h.calculator.CalculateRequest(req.Context(), yreq)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Errorw("yield calculation failed", "request_id", requestID, "error", err)
		} else {
			h.logger.Infow("yield request rejected", "request_id", requestID, "status", status, "error", err)
		}
		h.writeError(w, req, status, err)
		return
	}

	h.logger.Debugw("yield request served",
		"request_id", requestID,
		"grid_cell", res.GridCell.Key(),
		"with_shadow_kwh", res.WithShadow,
		"without_shadow_kwh", res.WithoutShadow,
	)
	if err := h.formatter.WriteResponse(w, req, http.StatusOK, res.Response()); err != nil {
		h.logger.Errorf("error writing yield response: %v", err)
	}
}

// GetKeepAlive reports that the server is up.
func (h *Handlers) GetKeepAlive(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "success")
}

// GridCellResponse is the body of GET /api/v1/gridcell.
type GridCellResponse struct {
	Location geo.Location `json:"location"`
	GridCell geo.Location `json:"gridCell"`
	Key      string       `json:"key"`
}

// GetGridCell resolves ?longitude=&latitude= to its weather grid cell.
func (h *Handlers) GetGridCell(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	lon, lonErr := strconv.ParseFloat(q.Get("longitude"), 64)
	lat, latErr := strconv.ParseFloat(q.Get("latitude"), 64)
	if err := errors.Join(lonErr, latErr); err != nil {
		h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("longitude and latitude query parameters are required: %w", err))
		return
	}

	loc := geo.Location{Longitude: lon, Latitude: lat}
	if err := loc.Valid(); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}

	cell := geo.NearestGridCell(loc)
	resp := GridCellResponse{
		Location: loc,
		GridCell: cell,
		Key:      cell.Key(),
	}
	if err := h.formatter.WriteResponse(w, req, http.StatusOK, resp); err != nil {
		h.logger.Errorf("error writing grid cell response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, err error) {
	if werr := h.formatter.WriteError(w, req, status, err); werr != nil {
		h.logger.Errorf("error writing error response: %v", werr)
	}
}

// decodeRequest reads a JSON body, or MessagePack when the Content-Type says so.
func decodeRequest(w http.ResponseWriter, req *http.Request, v any) error {
	body := http.MaxBytesReader(w, req.Body, maxRequestBytes)
	defer body.Close()

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == responseformat.ContentTypeMsgPack {
		dec := msgpack.NewDecoder(body)
		dec.SetCustomStructTag("json")
		return dec.Decode(v)
	}

	dec := json.NewDecoder(body)
	return dec.Decode(v)
}

// statusFor maps a calculation error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, yield.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, weather.ErrDataUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
