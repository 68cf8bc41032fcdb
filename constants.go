package couchreq

// Version is the current version of this package.
const Version = "1.0.0"

// MethodCopy is CouchDB's non-standard COPY verb.
const MethodCopy = "COPY"

// Keys under which non-object replies are wrapped in Response.Raw.
const (
	// KeyLimit holds a bare JSON integer, as returned by GET /{db}/_revs_limit.
	KeyLimit = "limit"

	// KeyResults holds a bare JSON array, as returned by GET /_all_dbs or
	// POST /{db}/_bulk_docs.
	KeyResults = "results"

	// KeyRaw holds a non-JSON body as text, or a bare JSON string.
	KeyRaw = "raw"
)

// HeaderDestination is the header naming the target of a COPY request.
const HeaderDestination = "Destination"
