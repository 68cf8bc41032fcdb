package couchreq

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Seq is a database sequence ID. CouchDB 1.x uses integers, later versions
// use opaque strings; both decode to their text form.
type Seq string

var _ json.Unmarshaler = new(Seq)

// UnmarshalJSON accepts a JSON string, number or null.
func (s *Seq) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return &DecodeError{Err: errors.New("empty sequence ID")}
	case string(data) == "null":
		*s = ""
		return nil
	case data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return &DecodeError{Err: err}
		}
		*s = Seq(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return &DecodeError{Err: errors.Errorf("invalid sequence ID %s", data)}
	}
	*s = Seq(num)
	return nil
}
