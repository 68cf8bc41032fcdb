package couchreq

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// jsonKeys are the query parameters CouchDB expects as JSON values.
var jsonKeys = map[string]bool{
	"key":       true,
	"keys":      true,
	"startkey":  true,
	"start_key": true,
	"endkey":    true,
	"end_key":   true,

	"ensure_dbs_exist": true,
}

// optionsToParams converts query options to URL parameters. Values of the
// keys in jsonKeys are JSON encoded; other values may be strings, string
// slices, booleans or integers.
func optionsToParams(opts ...map[string]interface{}) (url.Values, error) {
	params := url.Values{}
	for _, optsSet := range opts {
		for key, i := range optsSet {
			if jsonKeys[key] {
				value, err := json.Marshal(i)
				if err != nil {
					return nil, &chttp.HTTPError{Status: http.StatusBadRequest, Err: errors.Wrapf(err, "couchreq: invalid value for option %q", key)}
				}
				params.Add(key, string(value))
				continue
			}
			var values []string
			switch v := i.(type) {
			case string:
				values = []string{v}
			case []string:
				values = v
			case bool:
				values = []string{fmt.Sprintf("%t", v)}
			case int, uint, uint8, uint16, uint32, uint64, int8, int16, int32, int64:
				values = []string{fmt.Sprintf("%d", v)}
			default:
				return nil, &chttp.HTTPError{Status: http.StatusBadRequest, Message: fmt.Sprintf("couchreq: invalid type %T for option %q", i, key)}
			}
			for _, value := range values {
				params.Add(key, value)
			}
		}
	}
	return params, nil
}
