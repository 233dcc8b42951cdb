// Package relation builds the three in-memory relations joined by the
// category resolver: link targets, category membership edges, and pages.
// Each relation is extracted in a single forward pass over one dump file
// (or, alternatively, read from a live MediaWiki replica).
package relation

import (
	"context"
	"time"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/wiki"
)

// Dump table names, fixed by the MediaWiki export schema.
const (
	TableLinkTarget    = "linktarget"
	TableCategoryLinks = "categorylinks"
	TablePage          = "page"
)

// LinkTarget is a normalized (namespace, title) pair referenced by id from
// category membership rows. Immutable once parsed.
type LinkTarget struct {
	ID        int64
	Namespace wiki.Namespace
	Title     string
}

// EdgeKind types a category membership: the member is a file, a
// subcategory, or an ordinary page.
type EdgeKind int

const (
	KindPage EdgeKind = iota
	KindFile
	KindSubcategory
)

// String returns the cl_type enum value used in the dump.
func (k EdgeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindSubcategory:
		return "subcat"
	default:
		return "page"
	}
}

// ParseEdgeKind maps a cl_type enum value to an EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	switch s {
	case "file":
		return KindFile, true
	case "subcat":
		return KindSubcategory, true
	case "page":
		return KindPage, true
	default:
		return 0, false
	}
}

// Member is one membership edge, grouped under its target link-target id.
type Member struct {
	FromPageID int64
	Kind       EdgeKind
}

// Page maps a surrogate page id to its namespace and title.
type Page struct {
	ID        int64
	Namespace wiki.Namespace
	Title     string
}

// Relations holds the three lookup structures the resolver joins.
type Relations struct {
	// LinkTargets maps lt_id to category-namespace link targets only.
	LinkTargets map[int64]LinkTarget
	// Members groups file and subcategory edges by target link-target id,
	// restricted to targets present in LinkTargets.
	Members map[int64][]Member
	// Pages maps page ids referenced by at least one kept edge, restricted
	// to the File and Category namespaces.
	Pages map[int64]Page

	Stats Stats
}

// Stats aggregates scan counters across the three extraction passes.
type Stats struct {
	RowsScanned int64
	RowsSkipped int64
	Duration    time.Duration
}

// Source produces the three relations from some backing store: the dump
// files (DumpSource) or a live replica (DBSource).
type Source interface {
	Load(ctx context.Context) (*Relations, error)
}
