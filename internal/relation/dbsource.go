package relation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/sqlutil"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/wiki"
)

// DBSource extracts the three relations directly from a live MediaWiki
// MySQL replica. The dumps are exports of exactly these tables, so the
// output is interchangeable with DumpSource.
type DBSource struct {
	db        *sql.DB
	prefix    string // optional wiki table prefix, e.g. "commonswiki_"
	allowed   []string
	batchSize int // IN-clause chunk size for the page lookup
	logger    *logger.Logger
}

// NewDBSource creates a DBSource over an open database handle.
func NewDBSource(db *sql.DB, tablePrefix string, allowedExtensions []string, log *logger.Logger) (*DBSource, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &DBSource{
		db:        db,
		prefix:    tablePrefix,
		allowed:   allowedExtensions,
		batchSize: 1000,
		logger:    log,
	}, nil
}

func (s *DBSource) tableName(base string) (string, error) {
	return sqlutil.QuoteIdentifierSafe(s.prefix + base)
}

// Load runs the three SELECTs in the same order as the dump passes.
func (s *DBSource) Load(ctx context.Context) (*Relations, error) {
	start := time.Now()
	rel := &Relations{}

	targets, err := s.loadLinkTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load link targets: %w", err)
	}
	rel.LinkTargets = targets

	members, err := s.loadCategoryLinks(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to load category links: %w", err)
	}
	rel.Members = members

	refs := make(map[int64]struct{})
	for _, ms := range members {
		for _, m := range ms {
			refs[m.FromPageID] = struct{}{}
		}
	}

	pages, err := s.loadPages(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	rel.Pages = pages

	rel.Stats.Duration = time.Since(start)
	s.logger.Infow("Relations loaded from replica",
		"link_targets", len(rel.LinkTargets),
		"member_groups", len(rel.Members),
		"pages", len(rel.Pages),
		"duration", rel.Stats.Duration,
	)
	return rel, nil
}

func (s *DBSource) loadLinkTargets(ctx context.Context) (map[int64]LinkTarget, error) {
	table, err := s.tableName(TableLinkTarget)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT lt_id, lt_namespace, lt_title FROM %s WHERE lt_namespace = ?", table)
	rows, err := s.db.QueryContext(ctx, query, int(wiki.NamespaceCategory))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := make(map[int64]LinkTarget)
	for rows.Next() {
		var (
			id    int64
			ns    int64
			title string
		)
		if err := rows.Scan(&id, &ns, &title); err != nil {
			return nil, err
		}
		targets[id] = LinkTarget{ID: id, Namespace: wiki.Namespace(ns), Title: title}
	}
	return targets, rows.Err()
}

func (s *DBSource) loadCategoryLinks(ctx context.Context, targets map[int64]LinkTarget) (map[int64][]Member, error) {
	table, err := s.tableName(TableCategoryLinks)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT cl_from, cl_type, cl_target_id FROM %s WHERE cl_type IN ('file', 'subcat')", table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[int64][]Member)
	for rows.Next() {
		var (
			from     int64
			kindStr  string
			targetID int64
		)
		if err := rows.Scan(&from, &kindStr, &targetID); err != nil {
			return nil, err
		}
		kind, ok := ParseEdgeKind(kindStr)
		if !ok || kind == KindPage {
			continue
		}
		if _, known := targets[targetID]; !known {
			continue
		}
		members[targetID] = append(members[targetID], Member{FromPageID: from, Kind: kind})
	}
	return members, rows.Err()
}

// loadPages fetches referenced pages in IN-clause chunks to keep statement
// sizes bounded.
func (s *DBSource) loadPages(ctx context.Context, refs map[int64]struct{}) (map[int64]Page, error) {
	table, err := s.tableName(TablePage)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}

	pages := make(map[int64]Page)
	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := strings.TrimRight(strings.Repeat("?,", len(chunk)), ",")
		query := fmt.Sprintf(
			"SELECT page_id, page_namespace, page_title FROM %s WHERE page_namespace IN (?, ?) AND page_id IN (%s)",
			table, placeholders)

		args := make([]interface{}, 0, len(chunk)+2)
		args = append(args, int(wiki.NamespaceFile), int(wiki.NamespaceCategory))
		for _, id := range chunk {
			args = append(args, id)
		}

		if err := s.scanPageChunk(ctx, query, args, pages); err != nil {
			return nil, err
		}
	}
	return pages, nil
}

func (s *DBSource) scanPageChunk(ctx context.Context, query string, args []interface{}, pages map[int64]Page) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			ns    int64
			title string
		)
		if err := rows.Scan(&id, &ns, &title); err != nil {
			return err
		}
		namespace := wiki.Namespace(ns)
		if namespace == wiki.NamespaceFile && !wiki.HasAllowedExtension(title, s.allowed) {
			continue
		}
		pages[id] = Page{ID: id, Namespace: namespace, Title: title}
	}
	return rows.Err()
}
