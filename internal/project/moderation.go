package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/kv"
)

var bannedMarker = []byte("true")

// Ban blocks userID from creating projects. Banning twice is a no-op.
func (s *Store) Ban(ctx context.Context, userID string) (err error) {
	ctx, span := s.start(ctx, "project.Ban", attribute.String("user_id", userID))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return invalid(ErrEmptyUserID)
	}
	if err := s.engine.Set(ctx, banKey(userID), bannedMarker); err != nil {
		return fmt.Errorf("%w: ban %s: %v", ErrStorage, userID, err)
	}
	s.log(ctx).Info("user banned", zap.String("user_id", userID))
	return nil
}

// Unban lifts a ban. Unbanning a user who is not banned is a no-op.
func (s *Store) Unban(ctx context.Context, userID string) (err error) {
	ctx, span := s.start(ctx, "project.Unban", attribute.String("user_id", userID))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return invalid(ErrEmptyUserID)
	}
	if err := s.engine.Delete(ctx, banKey(userID)); err != nil {
		return fmt.Errorf("%w: unban %s: %v", ErrStorage, userID, err)
	}
	s.log(ctx).Info("user unbanned", zap.String("user_id", userID))
	return nil
}

// IsBanned reports whether userID is on the ban list.
func (s *Store) IsBanned(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	_, err := s.engine.Get(ctx, banKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read ban %s: %v", ErrStorage, userID, err)
	}
	return true, nil
}

// BannedUsers returns every banned user ID in key order.
func (s *Store) BannedUsers(ctx context.Context) ([]string, error) {
	prefix := kv.Prefix(bannedNamespace)
	users := make([]string, 0)
	err := s.engine.Scan(ctx, prefix, func(key, _ []byte) error {
		users = append(users, kv.TrimPrefix(key, prefix))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan bans: %v", ErrStorage, err)
	}
	return users, nil
}

func banKey(userID string) []byte {
	return kv.Key(bannedNamespace, userID)
}
