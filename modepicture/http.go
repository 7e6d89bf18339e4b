package modepicture

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/OE-FET/goxepr/generichttp"
	"github.com/OE-FET/goxepr/lsq"
	"github.com/OE-FET/goxepr/recorder"
)

// FitRequest is the JSON body of a fit-from-dataset request.  Curve keys
// are zoom factors.
type FitRequest struct {
	FreqGHz float64              `json:"freq_ghz"`
	Curves  map[string][]float64 `json:"curves"`
}

// FitResponse is the JSON reply to both fit routes.
type FitResponse struct {
	QValue       float64 `json:"qvalue"`
	QValueStderr float64 `json:"qvalue_stderr"`
	FreqGHz      float64 `json:"freq_ghz"`
	NPts         int     `json:"npts"`
}

// HTTPAnalyzer exposes mode picture analysis over HTTP.  ModePicture
// construction itself is synchronous and single threaded; the only
// shared state is the last result, which is guarded by a mutex.
type HTTPAnalyzer struct {
	// Recorder, when non-nil and enabled, archives every successful
	// fit to disk.
	Recorder *recorder.Recorder

	// RouteTable maps method/path pairs to handlers
	RouteTable generichttp.RouteTable

	mu   sync.Mutex
	last *ModePicture
}

// NewHTTPAnalyzer returns an analyzer with the route table pre-configured
func NewHTTPAnalyzer() *HTTPAnalyzer {
	h := &HTTPAnalyzer{}
	h.RouteTable = generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodPost, Path: "/fit"}:      h.Fit,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/fit-file"}: h.FitFile,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/qvalue"}:    h.LastQValue,
	}
	return h
}

// RT satisfies generichttp.HTTPer
func (h *HTTPAnalyzer) RT() generichttp.RouteTable {
	return h.RouteTable
}

// Fit builds a mode picture from raw multi-zoom curves posted as JSON
// and replies with the derived Q-value.
func (h *HTTPAnalyzer) Fit(w http.ResponseWriter, r *http.Request) {
	req := FitRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data := Dataset{}
	for key, curve := range req.Curves {
		zf, err := strconv.Atoi(key)
		if err != nil {
			http.Error(w, "zoom factor "+strconv.Quote(key)+" is not an integer", http.StatusBadRequest)
			return
		}
		data[zf] = curve
	}
	mp, err := FromDataset(data, req.FreqGHz, nil)
	if err != nil {
		writeFitError(w, err)
		return
	}
	h.finish(w, mp)
}

// FitFile accepts a saved mode picture text file as the request body,
// re-derives its Q-value, and replies like Fit.
func (h *HTTPAnalyzer) FitFile(w http.ResponseWriter, r *http.Request) {
	mp, err := Read(r.Body)
	defer r.Body.Close()
	if err != nil {
		writeFitError(w, err)
		return
	}
	h.finish(w, mp)
}

// LastQValue replies with the most recently computed Q-value as
// {"f64": value}, or 404 before the first fit.
func (h *HTTPAnalyzer) LastQValue(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last == nil {
		http.Error(w, "no mode picture has been fit yet", http.StatusNotFound)
		return
	}
	generichttp.EncodeJSON(w, generichttp.FloatT{F64: last.QValue})
}

func (h *HTTPAnalyzer) finish(w http.ResponseWriter, mp *ModePicture) {
	h.mu.Lock()
	h.last = mp
	h.mu.Unlock()
	h.record(mp)
	generichttp.EncodeJSON(w, FitResponse{
		QValue:       mp.QValue,
		QValueStderr: mp.QValueStderr,
		FreqGHz:      mp.Freq0,
		NPts:         mp.Len(),
	})
}

func (h *HTTPAnalyzer) record(mp *ModePicture) {
	if h.Recorder == nil || !h.Recorder.Enabled {
		return
	}
	var buf bytes.Buffer
	if err := mp.Write(&buf); err != nil {
		return
	}
	if _, err := h.Recorder.Write(buf.Bytes()); err == nil {
		h.Recorder.Incr()
	}
}

// writeFitError maps the error taxonomy to status codes: malformed
// input to 400, a solver that would not converge to 422, anything else
// to 500.
func writeFitError(w http.ResponseWriter, err error) {
	var ve ValidationError
	var pe ParseError
	switch {
	case errors.As(err, &ve), errors.As(err, &pe):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lsq.ErrNoConvergence):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
