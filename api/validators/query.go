package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter, returning def
// when absent and a CodeValidation error when malformed or outside [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{key: "must be an integer between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)})
	}
	return n, nil
}
