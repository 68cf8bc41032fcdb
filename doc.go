/*
Package couchreq is a client for making requests to a CouchDB server over
HTTP, and normalizing its replies.

# Requests

A Client is built from a Config value:

	client, err := couchreq.New(couchreq.Config{
	    Host:     "localhost",
	    Port:     5984,
	    Username: "admin",
	    Password: "abc123",
	})

Each of Head, Get, Put, Post, Delete and Copy sends a single request to a path
relative to the server root, and waits for the whole reply. Head and Get send
no body; use Do to send a body with any method. Credentials are
sent with HTTP Basic Authentication.

# Replies

Replies with status 200, 201 or 202 are returned as a *Response. Its Raw field
holds the decoded JSON object as received; OK, ID, Rev, Error and Reason hold
the fields most endpoints share. Absent fields are left at their zero value;
use Has to tell absent from empty.

Endpoint-specific views of a reply are selected by the caller:

	r, err := client.Get(ctx, "/mydb/_all_docs", nil)
	...
	view, err := r.View()

Replies that are not JSON objects are wrapped: a bare integer under "limit",
an array under "results", and text or a bare JSON string under "raw".

# Errors

Any other status returns an *Error, carrying the status and the normalized
reply. Replies that cannot be decoded return a *DecodeError. Failures to reach
the server return a *chttp.HTTPError with status 502. StatusCode extracts the
status from any of these.

# Options

Query options passed to endpoint methods (AllDocs, Query, Changes, ...) are
converted to URL parameters. Values of the following types are accepted:

  - bool
  - string
  - []string
  - int, uint, uint8, uint16, uint32, uint64, int8, int16, int32, int64

The key, keys, startkey, start_key, endkey and end_key options accept any
value, and are JSON encoded. A keys option passed to a view query results in a
POST request, to accommodate an arbitrary number of keys.
*/
package couchreq
