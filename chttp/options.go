// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package chttp

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-kivik/kivik/v4"
	"golang.org/x/net/http/httpguts"
)

// Options are optional parameters which may be sent with a request.
type Options struct {
	// ContentType sets the requests's Content-Type header. No Content-Type
	// is sent when empty.
	ContentType string

	// Body sets the body of the request.
	Body io.ReadCloser

	// GetBody is a function to set the body, and can be used on retries. If
	// set, Body is ignored.
	GetBody func() (io.ReadCloser, error)

	// Destination sets the Destination header, used by COPY requests.
	Destination string

	// Query is appended to the exiting url, if present. If the passed url
	// already contains query parameters, the values in Query are appended.
	// No merging takes place.
	Query url.Values

	// Header is applied after all other headers, and replaces any header
	// of the same name.
	Header http.Header
}

// validate rejects header names and values which cannot be put on the wire.
func (o *Options) validate() error {
	if o == nil {
		return nil
	}
	for k, values := range o.Header {
		if !httpguts.ValidHeaderFieldName(k) {
			return &HTTPError{Status: http.StatusBadRequest, Message: fmt.Sprintf("chttp: invalid header name %q", k)}
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return &HTTPError{Status: http.StatusBadRequest, Message: fmt.Sprintf("chttp: invalid value for header %q", k)}
			}
		}
	}
	return nil
}

type optionUserAgent string

var _ kivik.Option = optionUserAgent("")

func (a optionUserAgent) Apply(target interface{}) {
	if client, ok := target.(*Client); ok {
		client.UserAgents = append(client.UserAgents, string(a))
	}
}

func (a optionUserAgent) String() string {
	return fmt.Sprintf("[UserAgent:%s]", string(a))
}

// OptionUserAgent may be passed as an option when creating a client object,
// to append to the default User-Agent header sent on all requests.
func OptionUserAgent(ua string) kivik.Option {
	return optionUserAgent(ua)
}
