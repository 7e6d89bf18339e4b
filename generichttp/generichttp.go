// Package generichttp defines the route table plumbing used to expose
// analysis objects over HTTP, and helpers for the typed JSON payloads
// exchanged with clients.
package generichttp

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// MethodPath is an HTTP method and a route pattern.
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable maps method/path pairs to their handlers.
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints returns the sorted "<METHOD> <path>" strings in the table.
func (rt RouteTable) Endpoints() []string {
	out := make([]string, 0, len(rt))
	for mp := range rt {
		out = append(out, mp.Method+" "+mp.Path)
	}
	sort.Strings(out)
	return out
}

// Bind registers every route in the table on r.
func (rt RouteTable) Bind(r chi.Router) {
	for mp, handler := range rt {
		r.Method(mp.Method, mp.Path, handler)
	}
}

// HTTPer is an object which can yield its route table to be bound to a
// router.
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize normalizes a mount stem, "xepr/mode-picture" =>
// "/xepr/mode-picture".
func SubMuxSanitize(stem string) string {
	if !strings.HasPrefix(stem, "/") {
		stem = "/" + stem
	}
	stem = strings.TrimSuffix(stem, "/*")
	return strings.TrimSuffix(stem, "/")
}

// FloatT is a JSON payload {"f64": value}.
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a JSON payload {"str": value}.
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a JSON payload {"bool": value}.
type BoolT struct {
	Bool bool `json:"bool"`
}

// EncodeJSON writes v as a JSON response.
func EncodeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetString calls a string-getting function and returns the response as
// json {"str": value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		EncodeJSON(w, StrT{Str: s})
	}
}

// GetBool calls a bool-getting function and returns the response as
// json {"bool": value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		EncodeJSON(w, BoolT{Bool: b})
	}
}

// SetBool parses a JSON input of {"bool": value} and calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(b.Bool); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
