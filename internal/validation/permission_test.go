package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/fact"
)

func TestPermissionChecking(t *testing.T) {
	perms := fakePermissions{resources: map[string]map[string]authz.Level{
		"urn:c1": {"creator": authz.Manage, "writer": authz.Write, "reader": authz.Read},
	}}
	v := PermissionChecking{Permissions: perms, Policy: NewMachineOnly([]string{"system"}, nil, nil, "")}
	protected := meta("urn:c1", fact.RDFSLabel, fact.Literal("renamed"))
	open := meta("urn:free", fact.RDFSLabel, fact.Literal("anything"))
	blank := fact.New(metaGraph, fact.Blank("b0"), fact.RDFSLabel, fact.Literal("anon"))

	tests := []struct {
		name       string
		actor      string
		violations int
	}{
		{"manage may write", "creator", 0},
		{"write may write", "writer", 0},
		{"read may not write", "reader", 1},
		{"no grant may not write", "stranger", 1},
		{"system actor bypasses", "system", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(tt.actor, metaGraph, newReader(), nil, []fact.Fact{protected, open, blank})
			vs, err := Collect(context.Background(), v, req)
			require.NoError(t, err)
			require.Len(t, vs, tt.violations)
			if tt.violations > 0 {
				assert.Equal(t, fact.IRI("urn:c1"), vs[0].Subject)
				assert.Contains(t, vs[0].Message, "Write is required")
			}
		})
	}
}

func TestPermissionCheckingPropagatesErrors(t *testing.T) {
	v := PermissionChecking{Permissions: fakePermissions{err: errors.New("db down")}}
	req := request("alice", metaGraph, newReader(), nil, []fact.Fact{meta("urn:c1", fact.RDFSLabel, fact.Literal("x"))})

	_, err := Collect(context.Background(), v, req)
	assert.ErrorContains(t, err, "db down")
}
