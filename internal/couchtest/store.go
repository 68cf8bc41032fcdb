package couchtest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var validDBName = regexp.MustCompile(`^([a-z][a-z0-9_$()+/-]*|_users|_replicator|_global_changes)$`)

type doc struct {
	id      string
	rev     string
	deleted bool
	seq     int64
	body    map[string]interface{}
}

type index struct {
	ddoc   string
	name   string
	fields []interface{}
}

type database struct {
	name      string
	created   time.Time
	docs      map[string]*doc
	indexes   []index
	revsLimit int
	seq       int64
}

func newDatabase(name string) *database {
	return &database{
		name:      name,
		created:   time.Now(),
		docs:      map[string]*doc{},
		revsLimit: 1000,
	}
}

func newUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func seqString(seq int64) string {
	return fmt.Sprintf("%d-g1AAAAFTeJzLYWBgYMlgTmFQ", seq)
}

func parseSeq(s string) int64 {
	n, _ := strconv.ParseInt(strings.SplitN(s, "-", 2)[0], 10, 64) // nolint: gomnd
	return n
}

func revGeneration(rev string) int64 {
	return parseSeq(rev)
}

// errConflict is returned by put when the given revision is not current.
var errConflict = errors.New("conflict")

// put stores body as docID. rev must be the current revision of a live
// document, and is ignored for new or deleted documents.
func (d *database) put(docID, rev string, body map[string]interface{}, deleted bool) (*doc, error) {
	current, exists := d.docs[docID]
	var gen int64
	if exists {
		if !current.deleted && rev != current.rev {
			return nil, errConflict
		}
		gen = revGeneration(current.rev)
	} else if rev != "" {
		return nil, errConflict
	}
	d.seq++
	stored := make(map[string]interface{}, len(body)+2) // nolint: gomnd
	for k, v := range body {
		if strings.HasPrefix(k, "_") && k != "_attachments" {
			continue
		}
		stored[k] = v
	}
	nd := &doc{
		id:      docID,
		rev:     fmt.Sprintf("%d-%s", gen+1, newUUID()),
		deleted: deleted,
		seq:     d.seq,
		body:    stored,
	}
	d.docs[docID] = nd
	return nd, nil
}

// object returns the document as CouchDB serves it.
func (dc *doc) object() map[string]interface{} {
	obj := make(map[string]interface{}, len(dc.body)+2) // nolint: gomnd
	for k, v := range dc.body {
		obj[k] = v
	}
	obj["_id"] = dc.id
	obj["_rev"] = dc.rev
	if dc.deleted {
		obj["_deleted"] = true
	}
	return obj
}

// live returns the non-deleted documents, sorted by ID.
func (d *database) live() []*doc {
	docs := make([]*doc, 0, len(d.docs))
	for _, dc := range d.docs {
		if !dc.deleted {
			docs = append(docs, dc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].id < docs[j].id })
	return docs
}

func (d *database) info() map[string]interface{} {
	live := d.live()
	var size int64
	for _, dc := range live {
		size += int64(len(fmt.Sprint(dc.body)))
	}
	return map[string]interface{}{
		"db_name":             d.name,
		"doc_count":           len(live),
		"doc_del_count":       len(d.docs) - len(live),
		"update_seq":          seqString(d.seq),
		"purge_seq":           "0-g1AAAAFTeJzLYWBgYMlgTmFQ",
		"compact_running":     false,
		"instance_start_time": strconv.FormatInt(d.created.UnixMicro(), 10),
		"sizes": map[string]interface{}{
			"file":     size + 4096, // nolint: gomnd
			"external": size,
			"active":   size,
		},
		"cluster": map[string]interface{}{
			"q": 2, "n": 1, "w": 1, "r": 1,
		},
		"props": map[string]interface{}{},
	}
}

// matches reports whether body satisfies an equality-only Mango selector.
func matches(body map[string]interface{}, selector map[string]interface{}) bool {
	for field, want := range selector {
		got, ok := body[field]
		if !ok {
			return false
		}
		if cond, isCond := want.(map[string]interface{}); isCond {
			if eq, ok := cond["$eq"]; ok {
				want = eq
			} else {
				continue
			}
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func sortBySeq(docs []*doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
}
