package couchreq

// DocumentResult is the reply to a document read or write: a full document
// for GET /{db}/{docid}, or {ok, id, rev} for PUT, POST, DELETE and COPY.
type DocumentResult struct {
	ID  string
	Rev string
	OK  bool

	Deleted          bool
	Conflicts        []string
	DeletedConflicts []string
	Attachments      map[string]Attachment
	RevsInfo         []RevInfo
	Revisions        *Revisions
	LocalSeq         Seq

	// Body is the whole reply object, user fields included.
	Body map[string]interface{}
}

// Attachment is an entry of a document's _attachments.
type Attachment struct {
	ContentType   string `json:"content_type"`
	Digest        string `json:"digest"`
	Length        int64  `json:"length"`
	RevPos        int64  `json:"revpos"`
	Stub          bool   `json:"stub"`
	Encoding      string `json:"encoding"`
	EncodedLength int64  `json:"encoded_length"`

	// Data is set when attachments are requested inline.
	Data []byte `json:"data"`
}

// RevInfo is an entry of _revs_info.
type RevInfo struct {
	Rev    string `json:"rev"`
	Status string `json:"status"`
}

// Revisions is the _revisions history of a document.
type Revisions struct {
	Start int64    `json:"start"`
	IDs   []string `json:"ids"`
}

// Document returns the reply as a document result. Identifiers follow the
// same fallbacks as Response.ID and Response.Rev; the _-prefixed fields
// must hold their documented types.
func (r *Response) Document() (*DocumentResult, error) {
	var meta struct {
		Deleted          bool                  `json:"_deleted"`
		Conflicts        []string              `json:"_conflicts"`
		DeletedConflicts []string              `json:"_deleted_conflicts"`
		Attachments      map[string]Attachment `json:"_attachments"`
		RevsInfo         []RevInfo             `json:"_revs_info"`
		Revisions        *Revisions            `json:"_revisions"`
		LocalSeq         Seq                   `json:"_local_seq"`
		ID               *string               `json:"_id"`
		Rev              *string               `json:"_rev"`
	}
	if err := r.decode(&meta); err != nil {
		return nil, err
	}
	return &DocumentResult{
		ID:               r.ID,
		Rev:              r.Rev,
		OK:               r.OK,
		Deleted:          meta.Deleted,
		Conflicts:        meta.Conflicts,
		DeletedConflicts: meta.DeletedConflicts,
		Attachments:      meta.Attachments,
		RevsInfo:         meta.RevsInfo,
		Revisions:        meta.Revisions,
		LocalSeq:         meta.LocalSeq,
		Body:             r.Raw,
	}, nil
}
