package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON request body into v. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	return nil
}
