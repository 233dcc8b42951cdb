// Package resolver computes the set of media file titles reachable from the
// requested categories, joining the three relations extracted from the dumps.
package resolver

import (
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/progress"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/relation"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/wiki"
)

// Result is the outcome of one resolution pass.
type Result struct {
	// Files maps file title to the first category (in traversal order) that
	// discovered it. Insertion order is discovery order, kept deterministic
	// by the ordered map.
	Files *orderedmap.OrderedMap[string, string]
	// ResolvedCategories lists every category expanded this run, requested
	// and recursively discovered, in traversal order.
	ResolvedCategories []string
	// Missing lists requested categories with no resolvable link target.
	Missing []string
	// SkippedProcessed lists requested categories skipped because a prior
	// run already resolved them.
	SkippedProcessed []string

	Duration time.Duration
}

// Resolver joins the three relations into a ResolvedFile set.
type Resolver struct {
	rel       *relation.Relations
	recursive bool
	logger    *logger.Logger
}

// New creates a Resolver over loaded relations. With recursive disabled the
// subcategory closure is skipped and only directly requested categories are
// collected.
func New(rel *relation.Relations, recursive bool, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Resolver{rel: rel, recursive: recursive, logger: log}
}

// queueItem is one category awaiting expansion in the BFS traversal.
type queueItem struct {
	title string
	ids   []int64
}

// Resolve normalizes the requested category titles, drops those the index
// already marks processed, and walks the subcategory graph breadth-first.
// Cycles are cut by a visited set keyed on category title; an unresolvable
// requested category is reported in Missing without aborting the run.
func (r *Resolver) Resolve(requested []string, store *progress.Store) *Result {
	start := time.Now()
	result := &Result{Files: orderedmap.NewOrderedMap[string, string]()}

	// Reverse lookup: category title -> link target ids. A title normally
	// maps to a single id but the dump does not guarantee it.
	byTitle := make(map[string][]int64, len(r.rel.LinkTargets))
	for id, lt := range r.rel.LinkTargets {
		byTitle[lt.Title] = append(byTitle[lt.Title], id)
	}

	visited := make(map[string]bool)
	var queue []queueItem

	seen := make(map[string]bool)
	for _, raw := range requested {
		title := wiki.NormalizeCategory(raw)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true

		if store != nil && store.IsProcessed(title) {
			// Not re-expanded, but still a valid edge target elsewhere.
			result.SkippedProcessed = append(result.SkippedProcessed, title)
			visited[title] = true
			continue
		}

		ids, ok := byTitle[title]
		if !ok {
			r.logger.WithCategory(title).Warn("Category not found in link targets")
			result.Missing = append(result.Missing, title)
			continue
		}
		visited[title] = true
		queue = append(queue, queueItem{title: title, ids: ids})
	}

	// Iterative BFS over subcategory edges. An explicit queue bounds stack
	// depth and the visited set guarantees termination on cyclic graphs.
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		result.ResolvedCategories = append(result.ResolvedCategories, item.title)
		r.collectFiles(item, result)

		if !r.recursive {
			continue
		}
		queue = r.expandSubcategories(item, byTitle, visited, store, queue)
	}

	result.Duration = time.Since(start)
	r.logger.Infow("Category resolution complete",
		"requested", len(requested),
		"resolved_categories", len(result.ResolvedCategories),
		"missing", len(result.Missing),
		"files", result.Files.Len(),
		"duration", result.Duration,
	)
	return result
}

// collectFiles adds every file member of the category to the result set.
// A file reachable via multiple categories keeps its first association.
func (r *Resolver) collectFiles(item queueItem, result *Result) {
	for _, id := range item.ids {
		for _, m := range r.rel.Members[id] {
			if m.Kind != relation.KindFile {
				continue
			}
			page, ok := r.rel.Pages[m.FromPageID]
			if !ok || page.Namespace != wiki.NamespaceFile {
				continue
			}
			if _, exists := result.Files.Get(page.Title); !exists {
				result.Files.Set(page.Title, item.title)
			}
		}
	}
}

// expandSubcategories enqueues unvisited child categories of item.
func (r *Resolver) expandSubcategories(item queueItem, byTitle map[string][]int64,
	visited map[string]bool, store *progress.Store, queue []queueItem) []queueItem {

	for _, id := range item.ids {
		for _, m := range r.rel.Members[id] {
			if m.Kind != relation.KindSubcategory {
				continue
			}
			page, ok := r.rel.Pages[m.FromPageID]
			if !ok || page.Namespace != wiki.NamespaceCategory {
				continue
			}
			child := page.Title
			if visited[child] {
				continue
			}
			visited[child] = true

			if store != nil && store.IsProcessed(child) {
				continue
			}
			ids, ok := byTitle[child]
			if !ok {
				// Subcategory page without a link target row; nothing to
				// expand through.
				r.logger.Debugw("Subcategory has no link target", "category", child)
				continue
			}
			queue = append(queue, queueItem{title: child, ids: ids})
		}
	}
	return queue
}
