package events

import (
	"context"

	"github.com/roach88/metastore/internal/authz"
)

// PermissionNotifier turns permission changes into PERMISSION events. The
// acting user is read from the context (authz.ActorFromContext).
type PermissionNotifier struct {
	Emitter Emitter
}

var _ authz.Notifier = (*PermissionNotifier)(nil)

func (n *PermissionNotifier) emit(ctx context.Context, t Type, p authz.Permission, old *authz.Level, cca bool) error {
	return n.Emitter.Emit(ctx, Event{
		Category:                CategoryPermission,
		Type:                    t,
		Actor:                   authz.ActorFromContext(ctx),
		Permission:              &p,
		OldLevel:                old,
		CreateCollectionAllowed: cca,
	})
}

// PermissionAdded implements authz.Notifier.
func (n *PermissionNotifier) PermissionAdded(ctx context.Context, p authz.Permission, cca bool) error {
	return n.emit(ctx, TypePermissionAdded, p, nil, cca)
}

// PermissionModified implements authz.Notifier.
func (n *PermissionNotifier) PermissionModified(ctx context.Context, p authz.Permission, old authz.Level, cca bool) error {
	return n.emit(ctx, TypePermissionModified, p, &old, cca)
}

// PermissionDeleted implements authz.Notifier.
func (n *PermissionNotifier) PermissionDeleted(ctx context.Context, p authz.Permission) error {
	return n.emit(ctx, TypePermissionDeleted, p, nil, false)
}
