package couchreq

import (
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
	"github.com/sirupsen/logrus"

	"github.com/go-kivik/couchreq/chttp"
)

type optionLogger struct {
	logrus.FieldLogger
}

var _ kivik.Option = optionLogger{}

func (o optionLogger) Apply(target interface{}) {
	if c, ok := target.(*Client); ok {
		c.log = o.FieldLogger
	}
}

func (optionLogger) String() string { return "[Logger]" }

// OptionLogger sets the logger requests are reported to, at debug level. By
// default nothing is logged.
func OptionLogger(l logrus.FieldLogger) kivik.Option {
	return optionLogger{l}
}

type optionHTTPClient struct {
	*http.Client
}

var _ kivik.Option = optionHTTPClient{}

func (o optionHTTPClient) Apply(target interface{}) {
	if c, ok := target.(*Client); ok {
		c.httpClient = o.Client
	}
}

func (o optionHTTPClient) String() string {
	return fmt.Sprintf("[HTTPClient:%p]", o.Client)
}

// OptionHTTPClient sets the *http.Client used for requests. The client is
// copied, so authentication does not alter the caller's value. When the
// client has a Transport, Config.TLS is ignored.
func OptionHTTPClient(c *http.Client) kivik.Option {
	return optionHTTPClient{c}
}

// OptionUserAgent appends ua to the User-Agent header sent on all requests.
func OptionUserAgent(ua string) kivik.Option {
	return chttp.OptionUserAgent(ua)
}
