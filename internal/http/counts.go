package http

import (
	"context"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

// CountFromStore summarizes stored state for the status endpoint.
//
// Each count is -1 when it cannot be read, so a failing engine degrades the
// status report instead of failing it.
func CountFromStore(ctx context.Context, store *project.Store) StatusCounts {
	counts := StatusCounts{Projects: -1, BannedUsers: -1, NextProjectID: -1}
	if store == nil {
		return counts
	}

	if page, err := store.List(ctx, project.ListOptions{Limit: 1}); err == nil {
		counts.Projects = page.Total
	}
	if users, err := store.BannedUsers(ctx); err == nil {
		counts.BannedUsers = len(users)
	}
	if next, err := store.Allocator().Next(ctx); err == nil {
		counts.NextProjectID = int64(next)
	}
	return counts
}
