package project

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/projectd/internal/kv"
)

// ListOptions selects a page of projects.
type ListOptions struct {
	// Offset skips this many projects (after StartAfter is applied).
	Offset int

	// Limit caps the page size. Zero or negative means the configured
	// default; values above the configured maximum are clamped.
	Limit int

	// StartAfter, when set, begins the page with the first project that
	// sorts after this ID in newest-first order.
	StartAfter string
}

// Page is one page of a newest-first project listing.
type Page struct {
	Projects []*Project `json:"projects"`

	// Total counts every stored project, before pagination.
	Total int `json:"total"`

	// NextStartAfter is the cursor for the following page, empty on the
	// last page.
	NextStartAfter string `json:"nextStartAfter,omitempty"`
}

// List returns projects ordered by numeric ID descending (newest first).
func (s *Store) List(ctx context.Context, opts ListOptions) (page *Page, err error) {
	ctx, span := s.start(ctx, "project.List",
		attribute.Int("offset", opts.Offset),
		attribute.Int("limit", opts.Limit))
	defer func() { finish(span, err) }()

	if opts.Offset < 0 {
		return nil, invalid(ErrNegativeOffset)
	}
	limit := s.pageSize(opts.Limit)

	all, err := s.scanProjects(ctx, nil, 0)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)

	rest := all
	if opts.StartAfter != "" {
		i, _ := slices.BinarySearchFunc(all, opts.StartAfter, func(p *Project, id string) int {
			return compareIDs(p.ID, id)
		})
		// Skip the cursor itself when it is still stored.
		if i < len(all) && all[i].ID == opts.StartAfter {
			i++
		}
		rest = all[i:]
	}

	start := min(opts.Offset, len(rest))
	end := min(start+limit, len(rest))

	page = &Page{
		Projects: rest[start:end],
		Total:    len(all),
	}
	if end < len(rest) && end > start {
		page.NextStartAfter = rest[end-1].ID
	}
	return page, nil
}

// ListByOwner returns every project owned by ownerID, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) (projects []*Project, err error) {
	ctx, span := s.start(ctx, "project.ListByOwner", attribute.String("owner_id", ownerID))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(ownerID) == "" {
		return nil, invalid(ErrEmptyOwnerID)
	}

	projects, err = s.scanProjects(ctx, func(p *Project) bool {
		return p.OwnerID == ownerID
	}, 0)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("%w: no projects for owner %s", ErrNotFound, ownerID)
	}
	sortNewestFirst(projects)
	return projects, nil
}

// Search returns projects whose display name, owner name, or contact email
// contains query, case-insensitively. Results keep scan order and are
// capped at the configured search limit.
func (s *Store) Search(ctx context.Context, query string) (projects []*Project, err error) {
	ctx, span := s.start(ctx, "project.Search", attribute.String("query", query))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(query) == "" {
		return nil, invalid(ErrEmptyQuery)
	}
	needle := strings.ToLower(query)

	projects, err = s.scanProjects(ctx, func(p *Project) bool {
		return containsFold(p.DisplayName, needle) ||
			containsFold(p.OwnerName, needle) ||
			containsFold(p.ContactEmail, needle)
	}, s.limits.SearchLimit)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// Leaderboard returns the most downloaded projects, highest count first.
// Ties keep scan order.
func (s *Store) Leaderboard(ctx context.Context) (projects []*Project, err error) {
	ctx, span := s.start(ctx, "project.Leaderboard")
	defer func() { finish(span, err) }()

	projects, err = s.scanProjects(ctx, nil, 0)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(projects, func(a, b *Project) int {
		switch {
		case a.DownloadCount > b.DownloadCount:
			return -1
		case a.DownloadCount < b.DownloadCount:
			return 1
		}
		return 0
	})
	if len(projects) > s.limits.LeaderboardSize {
		projects = projects[:s.limits.LeaderboardSize]
	}
	return projects, nil
}

// scanProjects decodes every stored project accepted by keep, in key
// order. A nil keep accepts everything; a positive limit stops the scan once
// that many projects were accepted.
func (s *Store) scanProjects(ctx context.Context, keep func(*Project) bool, limit int) ([]*Project, error) {
	projects := make([]*Project, 0)
	err := s.engine.Scan(ctx, projectsPrefix, func(key, value []byte) error {
		p, err := decodeProject(kv.TrimPrefix(key, projectsPrefix), value)
		if err != nil {
			return err
		}
		if keep == nil || keep(p) {
			projects = append(projects, p)
		}
		if limit > 0 && len(projects) >= limit {
			return kv.ErrStopScan
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStorage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan projects: %v", ErrStorage, err)
	}
	return projects, nil
}

func (s *Store) pageSize(requested int) int {
	switch {
	case requested <= 0:
		return s.limits.PageSize
	case requested > s.limits.MaxPageSize:
		return s.limits.MaxPageSize
	}
	return requested
}

func sortNewestFirst(projects []*Project) {
	slices.SortFunc(projects, func(a, b *Project) int {
		return compareIDs(a.ID, b.ID)
	})
}

func containsFold(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}
