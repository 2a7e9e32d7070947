package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/metastore/internal/authz"
)

// AuthorizeOptions holds flags for the authorize command.
type AuthorizeOptions struct {
	*RootOptions
	Actor                   string
	Subject                 string
	Resource                string
	Level                   string
	CreateCollectionAllowed bool
}

// NewAuthorizeCommand creates the authorize command.
func NewAuthorizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthorizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Grant, change or revoke an access level",
		Long: `Set the access level of subject on resource, acting as actor. The actor must
hold Manage on the resource and cannot change their own level. Level None
revokes the grant.

Example:
  metastore authorize --actor alice --subject bob --resource urn:coll --level Write`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthorize(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "identity making the change (required)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "identity receiving the level (required)")
	cmd.Flags().StringVar(&opts.Resource, "resource", "", "resource IRI (required)")
	cmd.Flags().StringVar(&opts.Level, "level", "", "None, Read, Write or Manage (required)")
	cmd.Flags().BoolVar(&opts.CreateCollectionAllowed, "create-collection", false, "allow the subject to create collections under the resource")
	for _, name := range []string{"actor", "subject", "resource", "level"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runAuthorize(opts *AuthorizeOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	level, err := authz.ParseLevel(opts.Level)
	if err != nil {
		return out.Fail("invalid level", err)
	}

	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	err = s.app.Engine.Authorize(commandContext(cmd), opts.Actor, opts.Subject, opts.Resource, level, opts.CreateCollectionAllowed)
	if err != nil {
		return s.out.Fail("authorize failed", err)
	}
	return s.out.Success(permissionLine(authz.Permission{Subject: opts.Subject, Resource: opts.Resource, Level: level}))
}

// permissionLine renders one grant as "subject resource level".
type permissionLine authz.Permission

func (p permissionLine) String() string {
	return fmt.Sprintf("%s %s %s", p.Subject, p.Resource, p.Level)
}

// PermissionOptions holds flags for the permission command.
type PermissionOptions struct {
	*RootOptions
	Actor    string
	Resource string
}

// NewPermissionCommand creates the permission command.
func NewPermissionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PermissionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Show an actor's access level on a resource",
		Long: `Show the access level actor holds on resource. An actor without a grant
holds None; an unknown resource is an error.

Example:
  metastore permission --actor bob --resource urn:coll`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPermission(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "identity to look up (required)")
	cmd.Flags().StringVar(&opts.Resource, "resource", "", "resource IRI (required)")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func runPermission(opts *PermissionOptions, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.app.Engine.GetPermission(commandContext(cmd), opts.Actor, opts.Resource)
	if err != nil {
		return s.out.Fail("permission lookup failed", err)
	}
	return s.out.Success(permissionLine(p))
}

// NewPermissionsCommand creates the permissions command.
func NewPermissionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions <resource>",
		Short: "List every grant on a resource",
		Long: `List every grant on a resource, ordered by subject.

Example:
  metastore permissions urn:coll --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPermissions(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

type permissionList []authz.Permission

func (l permissionList) String() string {
	if len(l) == 0 {
		return "(no grants)"
	}
	lines := make([]string, len(l))
	for i, p := range l {
		lines[i] = permissionLine(p).String()
	}
	return strings.Join(lines, "\n")
}

func runPermissions(opts *RootOptions, resource string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	perms, err := s.app.Engine.Permissions(commandContext(cmd), resource)
	if err != nil {
		return s.out.Fail("permission listing failed", err)
	}
	if perms == nil {
		perms = []authz.Permission{}
	}
	return s.out.Success(permissionList(perms))
}
