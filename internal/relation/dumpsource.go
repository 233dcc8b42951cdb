package relation

import (
	"context"
	"time"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/dump"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/wiki"
)

// Column positions inside each dump tuple. These mirror the producing
// system's export schema and are a stable external contract.
const (
	ltColID        = 0
	ltColNamespace = 1
	ltColTitle     = 2

	clColFrom     = 0
	clColType     = 4
	clColTargetID = 6

	pageColID        = 0
	pageColNamespace = 1
	pageColTitle     = 2
)

// cancelCheckInterval is how many rows pass between context checks.
const cancelCheckInterval = 100_000

// DumpSource extracts the three relations from gzip-compressed SQL dumps.
// The dumps are scanned strictly in order: linktarget, categorylinks, page.
// Each pass feeds the next its filter set, so memory stays bounded by the
// rows actually relevant to category resolution.
type DumpSource struct {
	linkTargetPath    string
	categoryLinksPath string
	pagePath          string
	allowedExtensions []string
	logger            *logger.Logger
}

// NewDumpSource creates a DumpSource over the three dump file paths.
func NewDumpSource(linkTargetPath, categoryLinksPath, pagePath string, allowedExtensions []string, log *logger.Logger) *DumpSource {
	if log == nil {
		log = logger.NewDefault()
	}
	return &DumpSource{
		linkTargetPath:    linkTargetPath,
		categoryLinksPath: categoryLinksPath,
		pagePath:          pagePath,
		allowedExtensions: allowedExtensions,
		logger:            log,
	}
}

// Load runs the three sequential extraction passes and returns the joined-
// ready relations. A dump that cannot be opened or framed aborts the load
// with a *dump.FormatError; malformed individual rows are skipped and
// counted in Stats.
func (s *DumpSource) Load(ctx context.Context) (*Relations, error) {
	start := time.Now()
	rel := &Relations{}

	targets, stats, err := s.loadLinkTargets(ctx)
	if err != nil {
		return nil, err
	}
	rel.LinkTargets = targets
	rel.Stats.add(stats)

	members, stats, err := s.loadCategoryLinks(ctx, targets)
	if err != nil {
		return nil, err
	}
	rel.Members = members
	rel.Stats.add(stats)

	// Filter set for the page pass: every page id referenced by a kept edge.
	refs := make(map[int64]struct{})
	for _, ms := range members {
		for _, m := range ms {
			refs[m.FromPageID] = struct{}{}
		}
	}

	pages, stats, err := s.loadPages(ctx, refs)
	if err != nil {
		return nil, err
	}
	rel.Pages = pages
	rel.Stats.add(stats)

	rel.Stats.Duration = time.Since(start)
	s.logger.Infow("Relations loaded from dumps",
		"link_targets", len(rel.LinkTargets),
		"member_groups", len(rel.Members),
		"pages", len(rel.Pages),
		"rows_scanned", rel.Stats.RowsScanned,
		"rows_skipped", rel.Stats.RowsSkipped,
		"duration", rel.Stats.Duration,
	)
	return rel, nil
}

func (st *Stats) add(other Stats) {
	st.RowsScanned += other.RowsScanned
	st.RowsSkipped += other.RowsSkipped
}

// loadLinkTargets builds id -> LinkTarget for category-namespace rows.
// This is the smallest of the three relations and is held fully in memory
// to enable fast joins later.
func (s *DumpSource) loadLinkTargets(ctx context.Context) (map[int64]LinkTarget, Stats, error) {
	sc, err := dump.Open(s.linkTargetPath, TableLinkTarget, s.logger)
	if err != nil {
		return nil, Stats{}, err
	}
	defer sc.Close()

	targets := make(map[int64]LinkTarget)
	for sc.Next() {
		if err := checkCancel(ctx, sc.ScannedRows()); err != nil {
			return nil, Stats{}, err
		}
		row := sc.Row()

		id, ok := row.Int(ltColID)
		if !ok {
			continue
		}
		ns, ok := row.Int(ltColNamespace)
		if !ok || wiki.Namespace(ns) != wiki.NamespaceCategory {
			continue
		}
		title, ok := row.String(ltColTitle)
		if !ok {
			continue
		}

		targets[id] = LinkTarget{
			ID:        id,
			Namespace: wiki.Namespace(ns),
			Title:     title,
		}
	}
	if err := sc.Err(); err != nil {
		return nil, Stats{}, err
	}
	s.logger.WithDump(s.linkTargetPath).Debugw("Link target pass complete",
		"kept", len(targets),
		"rows_scanned", sc.ScannedRows(),
		"rows_skipped", sc.SkippedRows(),
	)
	return targets, Stats{RowsScanned: sc.ScannedRows(), RowsSkipped: sc.SkippedRows()}, nil
}

// loadCategoryLinks groups file and subcategory edges by target id. Edges
// whose target is not a known category link target are dropped; this is the
// largest relation and is never materialized as rich objects.
func (s *DumpSource) loadCategoryLinks(ctx context.Context, targets map[int64]LinkTarget) (map[int64][]Member, Stats, error) {
	sc, err := dump.Open(s.categoryLinksPath, TableCategoryLinks, s.logger)
	if err != nil {
		return nil, Stats{}, err
	}
	defer sc.Close()

	members := make(map[int64][]Member)
	for sc.Next() {
		if err := checkCancel(ctx, sc.ScannedRows()); err != nil {
			return nil, Stats{}, err
		}
		row := sc.Row()

		kindStr, ok := row.String(clColType)
		if !ok {
			continue
		}
		kind, ok := ParseEdgeKind(kindStr)
		if !ok || kind == KindPage {
			continue
		}
		targetID, ok := row.Int(clColTargetID)
		if !ok {
			continue
		}
		if _, known := targets[targetID]; !known {
			continue
		}
		from, ok := row.Int(clColFrom)
		if !ok {
			continue
		}

		members[targetID] = append(members[targetID], Member{FromPageID: from, Kind: kind})
	}
	if err := sc.Err(); err != nil {
		return nil, Stats{}, err
	}
	s.logger.WithDump(s.categoryLinksPath).Debugw("Category link pass complete",
		"edge_groups", len(members),
		"rows_scanned", sc.ScannedRows(),
		"rows_skipped", sc.SkippedRows(),
	)
	return members, Stats{RowsScanned: sc.ScannedRows(), RowsSkipped: sc.SkippedRows()}, nil
}

// loadPages builds id -> Page for referenced page ids in the File and
// Category namespaces. File titles failing the extension filter are dropped.
func (s *DumpSource) loadPages(ctx context.Context, refs map[int64]struct{}) (map[int64]Page, Stats, error) {
	sc, err := dump.Open(s.pagePath, TablePage, s.logger)
	if err != nil {
		return nil, Stats{}, err
	}
	defer sc.Close()

	pages := make(map[int64]Page)
	for sc.Next() {
		if err := checkCancel(ctx, sc.ScannedRows()); err != nil {
			return nil, Stats{}, err
		}
		row := sc.Row()

		id, ok := row.Int(pageColID)
		if !ok {
			continue
		}
		if _, referenced := refs[id]; !referenced {
			continue
		}
		nsVal, ok := row.Int(pageColNamespace)
		if !ok {
			continue
		}
		ns := wiki.Namespace(nsVal)
		if ns != wiki.NamespaceFile && ns != wiki.NamespaceCategory {
			continue
		}
		title, ok := row.String(pageColTitle)
		if !ok {
			continue
		}
		if ns == wiki.NamespaceFile && !wiki.HasAllowedExtension(title, s.allowedExtensions) {
			continue
		}

		pages[id] = Page{ID: id, Namespace: ns, Title: title}
	}
	if err := sc.Err(); err != nil {
		return nil, Stats{}, err
	}
	s.logger.WithDump(s.pagePath).Debugw("Page pass complete",
		"kept", len(pages),
		"rows_scanned", sc.ScannedRows(),
		"rows_skipped", sc.SkippedRows(),
	)
	return pages, Stats{RowsScanned: sc.ScannedRows(), RowsSkipped: sc.SkippedRows()}, nil
}

func checkCancel(ctx context.Context, rows int64) error {
	if rows%cancelCheckInterval != 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
