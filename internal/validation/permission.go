package validation

import (
	"context"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/fact"
)

// PermissionReader answers permission queries.
type PermissionReader interface {
	GetPermission(ctx context.Context, actor, resource string) (authz.Permission, error)
}

// PermissionChecking rejects changes to a registered resource by an actor
// holding less than Write on it. Subjects that are not registered resources
// are not protected.
type PermissionChecking struct {
	Permissions PermissionReader
	Policy      *MachineOnly
}

// Name implements Validator.
func (PermissionChecking) Name() string { return "permission" }

// Validate implements Validator.
func (v PermissionChecking) Validate(ctx context.Context, req Request, report func(Violation)) error {
	if v.Policy.IsSystemActor(req.Actor) {
		return nil
	}

	cs := fact.ChangeSet{Remove: req.Remove, Add: req.Add}
	for _, subject := range cs.Subjects() {
		if !subject.IsIRI() {
			continue
		}
		perm, err := v.Permissions.GetPermission(ctx, req.Actor, subject.Value)
		if authz.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if perm.Level < authz.Write {
			report(Violation{
				Message: "actor " + req.Actor + " holds " + perm.Level.String() + " on this resource; Write is required",
				Subject: subject,
			})
		}
	}
	return nil
}
