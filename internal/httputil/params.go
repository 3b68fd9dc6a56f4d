package httputil

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// FloatParam parses query parameter name as a finite float, returning def
// when it is absent.
func FloatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s parameter %q", name, v)
	}
	return f, nil
}

// IntParam parses query parameter name as an integer in [min, max],
// returning def when it is absent.
func IntParam(r *http.Request, name string, def, min, max int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s parameter, must be %d-%d", name, min, max)
	}
	return n, nil
}

// BoolParam parses query parameter name as a boolean, returning def when it
// is absent.
func BoolParam(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s parameter %q", name, v)
	}
	return b, nil
}

// ListParam splits a comma-separated query parameter, dropping empty items.
func ListParam(r *http.Request, name string) []string {
	var out []string
	for _, s := range strings.Split(r.URL.Query().Get(name), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
