// ABOUTME: Command implementations for coven-identity-admin
// ABOUTME: Each command maps flags onto one or two IdentityService calls

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-identity/internal/api"
)

func cmdStatus(ctx context.Context, c *api.Client, _ *flags) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	color.New(color.FgCyan).Print(banner)
	fmt.Println()

	resp, err := c.Health(ctx)
	if err != nil {
		yellow.Printf("  Server:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	green.Printf("  Server:  ")
	fmt.Printf("%s (%s)\n", resp.Status, getEnv("COVEN_IDENTITY_GRPC", "localhost:50061"))

	yellow.Printf("  Token:   ")
	if getToken() == "" {
		fmt.Println("(none - set COVEN_IDENTITY_TOKEN)")
	} else {
		fmt.Println("configured")
	}
	fmt.Println()
	return nil
}

func printUser(u api.User) {
	header("User")
	fmt.Printf("  ID:       %s\n", u.ID)
	fmt.Printf("  Status:   %s\n", u.Status)
	fmt.Printf("  Created:  %s\n", formatTime(u.CreatedAt))
	fmt.Println()
}

func cmdUsers(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand(""); sub {
	case "provision", "create":
		userID := ""
		if len(f.positional) > 0 {
			userID = f.positional[0]
		}
		resp, err := c.ProvisionUser(ctx, &api.ProvisionUserRequest{UserID: userID, ActorUserID: f.get("as")})
		if err != nil {
			return fmt.Errorf("ProvisionUser: %w", err)
		}
		printUser(resp.User)
	case "get", "show":
		userID, err := f.arg("user id")
		if err != nil {
			return err
		}
		resp, err := c.GetUser(ctx, &api.UserRequest{UserID: userID})
		if err != nil {
			return fmt.Errorf("GetUser: %w", err)
		}
		printUser(resp.User)
	case "suspend":
		userID, err := f.arg("user id")
		if err != nil {
			return err
		}
		if err := c.SuspendUser(ctx, &api.UserRequest{UserID: userID, ActorUserID: f.get("as")}); err != nil {
			return fmt.Errorf("SuspendUser: %w", err)
		}
		color.Green("  ✓ Suspended user %s\n", userID)
	default:
		return unknown("users", sub, "provision, get, suspend")
	}
	return nil
}

func printIdentity(ident api.Identity) {
	header("Identity")
	fmt.Printf("  ID:           %s\n", ident.ID)
	fmt.Printf("  Channel:      %s\n", ident.Channel)
	fmt.Printf("  Thread:       %s\n", ident.ThreadID)
	fmt.Printf("  Status:       %s\n", ident.VerificationStatus)
	fmt.Printf("  User:         %s\n", orDash(ident.PersistentUserID))
	if ident.VerificationMethod != "" {
		fmt.Printf("  Verified via: %s (%s)\n", ident.VerificationMethod, ident.VerificationContact)
	}
	if ident.CodeExpiresAt != nil {
		fmt.Printf("  Code expires: %s\n", formatTime(*ident.CodeExpiresAt))
	}
	fmt.Printf("  Created:      %s\n", formatTime(ident.CreatedAt))
	fmt.Println()
}

func cmdIdentities(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand(""); sub {
	case "create":
		if err := f.require("channel", "thread"); err != nil {
			return err
		}
		resp, err := c.CreateIdentity(ctx, &api.CreateIdentityRequest{Channel: f.get("channel"), ThreadID: f.get("thread")})
		if err != nil {
			return fmt.Errorf("CreateIdentity: %w", err)
		}
		printIdentity(resp.Identity)
	case "get", "show":
		req := &api.GetIdentityRequest{ThreadID: f.get("thread")}
		if req.ThreadID == "" {
			id, err := f.arg("identity id or --thread")
			if err != nil {
				return err
			}
			req.IdentityID = id
		}
		resp, err := c.GetIdentity(ctx, req)
		if err != nil {
			return fmt.Errorf("GetIdentity: %w", err)
		}
		printIdentity(resp.Identity)
	case "list", "ls":
		if err := f.require("user"); err != nil {
			return err
		}
		resp, err := c.ListIdentities(ctx, &api.UserRequest{UserID: f.get("user")})
		if err != nil {
			return fmt.Errorf("ListIdentities: %w", err)
		}
		header("Identities of " + f.get("user"))
		if len(resp.Identities) == 0 {
			fmt.Println("  (no identities)")
			fmt.Println()
			return nil
		}
		w := newTable()
		fmt.Fprintln(w, "  ID\tCHANNEL\tTHREAD\tSTATUS\tMERGED")
		for _, ident := range resp.Identities {
			merged := "-"
			if ident.MergedAt != nil {
				merged = formatTime(*ident.MergedAt)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", truncate(ident.ID, 28), ident.Channel, truncate(ident.ThreadID, 24), ident.VerificationStatus, merged)
		}
		_ = w.Flush()
		fmt.Println()
	default:
		return unknown("identities", sub, "create, get, list")
	}
	return nil
}

func cmdVerify(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand(""); sub {
	case "request":
		if err := f.require("identity", "method", "contact"); err != nil {
			return err
		}
		resp, err := c.RequestVerification(ctx, &api.RequestVerificationRequest{
			IdentityID: f.get("identity"),
			Method:     f.get("method"),
			Contact:    f.get("contact"),
		})
		if err != nil {
			return fmt.Errorf("RequestVerification: %w", err)
		}
		fmt.Println()
		color.Green("  ✓ Verification code issued\n")
		fmt.Println()
		fmt.Println("  Deliver this code to " + f.get("contact") + ":")
		fmt.Println()
		fmt.Println("  " + resp.Code)
		fmt.Println()
	case "confirm":
		if err := f.require("identity", "code"); err != nil {
			return err
		}
		resp, err := c.ConfirmVerification(ctx, &api.ConfirmVerificationRequest{
			IdentityID:   f.get("identity"),
			Code:         f.get("code"),
			TargetUserID: f.get("user"),
		})
		if err != nil {
			return fmt.Errorf("ConfirmVerification: %w", err)
		}
		printIdentity(resp.Identity)
		if resp.Token != "" {
			fmt.Println("  User token (keep this secret!):")
			fmt.Println()
			fmt.Println("  " + resp.Token)
			fmt.Println()
		}
	default:
		return unknown("verify", sub, "request, confirm")
	}
	return nil
}

func printWorkspace(ws api.Workspace) {
	header("Workspace")
	fmt.Printf("  ID:       %s\n", ws.ID)
	fmt.Printf("  Name:     %s\n", ws.Name)
	fmt.Printf("  Type:     %s\n", ws.Type)
	fmt.Printf("  Owner:    %s %s\n", ws.Owner.Kind, ws.Owner.ID)
	fmt.Printf("  Created:  %s\n", formatTime(ws.CreatedAt))
	fmt.Println()
}

func printMembers(title string, members []api.Member) {
	header(title)
	if len(members) == 0 {
		fmt.Println("  (no members)")
		fmt.Println()
		return
	}
	w := newTable()
	fmt.Fprintln(w, "  USER\tROLE\tGRANTED BY\tSINCE")
	for _, m := range members {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", m.UserID, m.Role, orDash(m.GrantedBy), formatTime(m.CreatedAt))
	}
	_ = w.Flush()
	fmt.Println()
}

func cmdWorkspaces(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand(""); sub {
	case "create":
		if err := f.require("type", "owner-kind", "owner"); err != nil {
			return err
		}
		resp, err := c.CreateWorkspace(ctx, &api.CreateWorkspaceRequest{
			Type:        f.get("type"),
			Owner:       api.Owner{Kind: f.get("owner-kind"), ID: f.get("owner")},
			Name:        f.get("name"),
			ActorUserID: f.get("as"),
		})
		if err != nil {
			return fmt.Errorf("CreateWorkspace: %w", err)
		}
		printWorkspace(resp.Workspace)
	case "individual":
		if err := f.require("user"); err != nil {
			return err
		}
		resp, err := c.EnsureIndividualWorkspace(ctx, &api.UserRequest{UserID: f.get("user")})
		if err != nil {
			return fmt.Errorf("EnsureIndividualWorkspace: %w", err)
		}
		printWorkspace(resp.Workspace)
	case "get", "show":
		id, err := f.arg("workspace id")
		if err != nil {
			return err
		}
		resp, err := c.GetWorkspace(ctx, &api.WorkspaceRequest{WorkspaceID: id})
		if err != nil {
			return fmt.Errorf("GetWorkspace: %w", err)
		}
		printWorkspace(resp.Workspace)
	case "members":
		id, err := f.arg("workspace id")
		if err != nil {
			return err
		}
		resp, err := c.ListMembers(ctx, &api.WorkspaceRequest{WorkspaceID: id})
		if err != nil {
			return fmt.Errorf("ListMembers: %w", err)
		}
		printMembers("Members of "+id, resp.Members)
	case "grant":
		if err := f.require("workspace", "user", "role"); err != nil {
			return err
		}
		err := c.GrantMembership(ctx, &api.MembershipRequest{
			WorkspaceID: f.get("workspace"),
			UserID:      f.get("user"),
			Role:        f.get("role"),
			ActorUserID: f.get("as"),
		})
		if err != nil {
			return fmt.Errorf("GrantMembership: %w", err)
		}
		color.Green("  ✓ %s is now %s of %s\n", f.get("user"), f.get("role"), f.get("workspace"))
	case "revoke":
		if err := f.require("workspace", "user"); err != nil {
			return err
		}
		err := c.RevokeMembership(ctx, &api.MembershipRequest{
			WorkspaceID: f.get("workspace"),
			UserID:      f.get("user"),
			ActorUserID: f.get("as"),
		})
		if err != nil {
			return fmt.Errorf("RevokeMembership: %w", err)
		}
		color.Green("  ✓ Revoked %s from %s\n", f.get("user"), f.get("workspace"))
	default:
		return unknown("workspaces", sub, "create, individual, get, members, grant, revoke")
	}
	return nil
}

func cmdGroups(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand(""); sub {
	case "create":
		if err := f.require("name", "creator"); err != nil {
			return err
		}
		resp, err := c.CreateGroup(ctx, &api.CreateGroupRequest{Name: f.get("name"), ActorUserID: f.get("creator")})
		if err != nil {
			return fmt.Errorf("CreateGroup: %w", err)
		}
		color.Green("  ✓ Created group %s (%s)\n", resp.Group.Name, resp.Group.ID)
	case "get", "show":
		id, err := f.arg("group id")
		if err != nil {
			return err
		}
		resp, err := c.GetGroup(ctx, &api.GroupRequest{GroupID: id})
		if err != nil {
			return fmt.Errorf("GetGroup: %w", err)
		}
		header("Group")
		fmt.Printf("  ID:       %s\n", resp.Group.ID)
		fmt.Printf("  Name:     %s\n", resp.Group.Name)
		fmt.Printf("  Created:  %s\n", formatTime(resp.Group.CreatedAt))
		fmt.Println()
	case "members":
		id, err := f.arg("group id")
		if err != nil {
			return err
		}
		resp, err := c.ListGroupMembers(ctx, &api.GroupRequest{GroupID: id})
		if err != nil {
			return fmt.Errorf("ListGroupMembers: %w", err)
		}
		printMembers("Members of "+id, resp.Members)
	case "add":
		if err := f.require("group", "user"); err != nil {
			return err
		}
		err := c.AddGroupMember(ctx, &api.GroupMemberRequest{
			GroupID:     f.get("group"),
			UserID:      f.get("user"),
			Role:        f.get("role"),
			ActorUserID: f.get("as"),
		})
		if err != nil {
			return fmt.Errorf("AddGroupMember: %w", err)
		}
		color.Green("  ✓ Added %s to %s\n", f.get("user"), f.get("group"))
	case "remove", "rm":
		if err := f.require("group", "user"); err != nil {
			return err
		}
		err := c.RemoveGroupMember(ctx, &api.GroupMemberRequest{
			GroupID:     f.get("group"),
			UserID:      f.get("user"),
			ActorUserID: f.get("as"),
		})
		if err != nil {
			return fmt.Errorf("RemoveGroupMember: %w", err)
		}
		color.Green("  ✓ Removed %s from %s\n", f.get("user"), f.get("group"))
	default:
		return unknown("groups", sub, "create, get, members, add, remove")
	}
	return nil
}

// target reads exactly one of --user and --group.
func (f *flags) target() (api.Target, error) {
	t := api.Target{UserID: f.get("user"), GroupID: f.get("group")}
	if (t.UserID == "") == (t.GroupID == "") {
		return t, fmt.Errorf("exactly one of --user and --group is required")
	}
	return t, nil
}

func describeTarget(t api.Target) string {
	if t.GroupID != "" {
		return "group:" + t.GroupID
	}
	return "user:" + t.UserID
}

func cmdGrants(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand("list"); sub {
	case "create", "add":
		if err := f.require("workspace", "type", "resource", "permission"); err != nil {
			return err
		}
		target, err := f.target()
		if err != nil {
			return err
		}
		req := &api.GrantRequest{
			WorkspaceID:  f.get("workspace"),
			ResourceType: f.get("type"),
			ResourceID:   f.get("resource"),
			Target:       target,
			Permission:   f.get("permission"),
			ActorUserID:  f.get("as"),
		}
		if raw := f.get("expires"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid --expires: %w", err)
			}
			expires := time.Now().Add(d).UTC()
			req.ExpiresAt = &expires
		}
		resp, err := c.GrantACL(ctx, req)
		if err != nil {
			return fmt.Errorf("GrantACL: %w", err)
		}
		color.Green("  ✓ Granted %s on %s/%s to %s (%s)\n", resp.Grant.Permission, resp.Grant.ResourceType, resp.Grant.ResourceID, describeTarget(resp.Grant.Target), resp.Grant.ID)
	case "list", "ls":
		if err := f.require("workspace", "type", "resource"); err != nil {
			return err
		}
		resp, err := c.ListGrants(ctx, &api.ResourceRequest{
			WorkspaceID:  f.get("workspace"),
			ResourceType: f.get("type"),
			ResourceID:   f.get("resource"),
		})
		if err != nil {
			return fmt.Errorf("ListGrants: %w", err)
		}
		header("Active grants on " + f.get("type") + "/" + f.get("resource"))
		if len(resp.Grants) == 0 {
			fmt.Println("  (no grants)")
			fmt.Println()
			return nil
		}
		w := newTable()
		fmt.Fprintln(w, "  ID\tTARGET\tPERMISSION\tEXPIRES")
		for _, g := range resp.Grants {
			expires := "never"
			if g.ExpiresAt != nil {
				expires = formatTime(*g.ExpiresAt)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", truncate(g.ID, 12), describeTarget(g.Target), g.Permission, expires)
		}
		_ = w.Flush()
		fmt.Println()
	case "revoke", "rm":
		if err := f.require("workspace", "type", "resource"); err != nil {
			return err
		}
		target, err := f.target()
		if err != nil {
			return err
		}
		err = c.RevokeACL(ctx, &api.RevokeGrantRequest{
			WorkspaceID:  f.get("workspace"),
			ResourceType: f.get("type"),
			ResourceID:   f.get("resource"),
			Target:       target,
			ActorUserID:  f.get("as"),
		})
		if err != nil {
			return fmt.Errorf("RevokeACL: %w", err)
		}
		color.Green("  ✓ Revoked grants of %s on %s/%s\n", describeTarget(target), f.get("type"), f.get("resource"))
	default:
		return unknown("grants", sub, "create, list, revoke")
	}
	return nil
}

func cmdResolve(ctx context.Context, c *api.Client, f *flags) error {
	if err := f.require("user", "workspace", "type", "resource"); err != nil {
		return err
	}
	resp, err := c.Resolve(ctx, &api.ResolveRequest{
		UserID:       f.get("user"),
		WorkspaceID:  f.get("workspace"),
		ResourceType: f.get("type"),
		ResourceID:   f.get("resource"),
	})
	if err != nil {
		return fmt.Errorf("Resolve: %w", err)
	}

	header("Effective permission")
	fmt.Printf("  Permission:   ")
	color.New(color.FgGreen, color.Bold).Println(resp.Permission)
	fmt.Printf("  Role:         %s\n", orDash(resp.Role))
	fmt.Printf("  From role:    %s\n", resp.FromRole)
	fmt.Printf("  From grants:  %s\n", resp.FromGrants)
	fmt.Println()
	return nil
}

func printOperation(op api.Operation) {
	header("Operation")
	fmt.Printf("  ID:        %s\n", op.ID)
	fmt.Printf("  Type:      %s\n", op.Type)
	fmt.Printf("  Status:    ")
	switch op.Status {
	case "completed":
		color.Green("%s", op.Status)
	case "failed":
		color.Red("%s", op.Status)
	default:
		color.Yellow("%s", op.Status)
	}
	fmt.Printf("  User:      %s\n", orDash(op.TargetUserID))
	fmt.Printf("  Sources:   %s\n", strings.Join(op.SourceThreadIDs, ", "))
	fmt.Printf("  Affected:  %s\n", orDash(strings.Join(op.AffectedThreadIDs, ", ")))
	if op.ErrorMessage != "" {
		fmt.Printf("  Error:     %s\n", op.ErrorMessage)
	}
	fmt.Printf("  Created:   %s\n", formatTime(op.CreatedAt))
	fmt.Println()
}

func cmdMerge(ctx context.Context, c *api.Client, f *flags) error {
	if err := f.require("threads", "user"); err != nil {
		return err
	}
	resp, err := c.Merge(ctx, &api.MergeRequest{
		SourceThreadIDs: f.list("threads"),
		TargetUserID:    f.get("user"),
		Channel:         f.get("channel"),
	})
	if err != nil {
		return fmt.Errorf("Merge: %w", err)
	}
	printOperation(resp.Operation)
	return nil
}

func cmdSplit(ctx context.Context, c *api.Client, f *flags) error {
	if err := f.require("user", "threads"); err != nil {
		return err
	}
	resp, err := c.Split(ctx, &api.SplitRequest{UserID: f.get("user"), ThreadIDs: f.list("threads")})
	if err != nil {
		return fmt.Errorf("Split: %w", err)
	}
	printOperation(resp.Operation)
	return nil
}

func cmdRemove(ctx context.Context, c *api.Client, f *flags) error {
	if err := f.require("policy"); err != nil {
		return err
	}
	if f.get("user") == "" && f.get("threads") == "" {
		return fmt.Errorf("--user or --threads is required")
	}
	resp, err := c.Remove(ctx, &api.RemoveRequest{
		UserID:    f.get("user"),
		ThreadIDs: f.list("threads"),
		Policy:    f.get("policy"),
	})
	if err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	printOperation(resp.Operation)
	return nil
}

func cmdOps(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand("list"); sub {
	case "list", "ls":
		limit, err := f.int("limit")
		if err != nil {
			return err
		}
		resp, err := c.ListOperations(ctx, &api.ListOperationsRequest{
			TargetUserID: f.get("user"),
			Type:         f.get("type"),
			Status:       f.get("status"),
			Limit:        limit,
		})
		if err != nil {
			return fmt.Errorf("ListOperations: %w", err)
		}
		header("Operations")
		if len(resp.Operations) == 0 {
			fmt.Println("  (no operations)")
			fmt.Println()
			return nil
		}
		w := newTable()
		fmt.Fprintln(w, "  ID\tTYPE\tSTATUS\tUSER\tTHREADS\tCREATED")
		for _, op := range resp.Operations {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%d\t%s\n", truncate(op.ID, 12), op.Type, op.Status, orDash(op.TargetUserID), len(op.SourceThreadIDs), formatTime(op.CreatedAt))
		}
		_ = w.Flush()
		fmt.Println()
	case "get", "show":
		id, err := f.arg("operation id")
		if err != nil {
			return err
		}
		resp, err := c.GetOperation(ctx, &api.OperationRequest{OperationID: id})
		if err != nil {
			return fmt.Errorf("GetOperation: %w", err)
		}
		printOperation(resp.Operation)
	case "rollback":
		id, err := f.arg("operation id")
		if err != nil {
			return err
		}
		if err := f.require("reason"); err != nil {
			return err
		}
		resp, err := c.MarkRolledBack(ctx, &api.RollbackRequest{OperationID: id, Reason: f.get("reason"), ActorUserID: f.get("as")})
		if err != nil {
			return fmt.Errorf("MarkRolledBack: %w", err)
		}
		printOperation(resp.Operation)
	default:
		return unknown("ops", sub, "list, get, rollback")
	}
	return nil
}

func cmdOwnership(ctx context.Context, c *api.Client, f *flags) error {
	switch sub := f.subcommand("list"); sub {
	case "register":
		if err := f.require("kind", "resource", "thread"); err != nil {
			return err
		}
		resp, err := c.RegisterOwnership(ctx, &api.RegisterOwnershipRequest{
			ResourceKind: f.get("kind"),
			ResourceID:   f.get("resource"),
			ThreadID:     f.get("thread"),
		})
		if err != nil {
			return fmt.Errorf("RegisterOwnership: %w", err)
		}
		color.Green("  ✓ %s %s owned by thread %s (user %s)\n", resp.Ownership.ResourceKind, resp.Ownership.ResourceID, resp.Ownership.ThreadID, orDash(resp.Ownership.UserID))
	case "list", "ls":
		resp, err := c.ListOwnership(ctx, &api.ListOwnershipRequest{
			ResourceKind: f.get("kind"),
			ThreadID:     f.get("thread"),
			UserID:       f.get("user"),
		})
		if err != nil {
			return fmt.Errorf("ListOwnership: %w", err)
		}
		header("Resource ownership")
		if len(resp.Rows) == 0 {
			fmt.Println("  (no rows)")
			fmt.Println()
			return nil
		}
		w := newTable()
		fmt.Fprintln(w, "  KIND\tRESOURCE\tTHREAD\tUSER")
		for _, row := range resp.Rows {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", row.ResourceKind, truncate(row.ResourceID, 40), truncate(row.ThreadID, 24), orDash(row.UserID))
		}
		_ = w.Flush()
		fmt.Println()
	default:
		return unknown("ownership", sub, "register, list")
	}
	return nil
}

// formatDetail renders audit detail as sorted key=value pairs.
func formatDetail(detail map[string]any) string {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return strings.Join(parts, " ")
}

func cmdAudit(ctx context.Context, c *api.Client, f *flags) error {
	limit, err := f.int("limit")
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = 50
	}
	resp, err := c.ListAuditLog(ctx, &api.ListAuditLogRequest{
		ActorUserID: f.get("actor"),
		Action:      f.get("action"),
		TargetType:  f.get("target-type"),
		TargetID:    f.get("target"),
		Limit:       limit,
	})
	if err != nil {
		return fmt.Errorf("ListAuditLog: %w", err)
	}

	header("Audit log")
	if len(resp.Entries) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "  TIME\tACTOR\tACTION\tTARGET\tDETAIL")
	for _, e := range resp.Entries {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s:%s\t%s\n", formatTime(e.Timestamp), e.ActorUserID, e.Action, e.TargetType, truncate(e.TargetID, 24), formatDetail(e.Detail))
	}
	_ = w.Flush()
	fmt.Println()
	return nil
}

func cmdToken(ctx context.Context, c *api.Client, f *flags) error {
	if sub := f.subcommand(""); sub != "create" {
		return fmt.Errorf("usage: token create --subject <id> --kind operator|user [--ttl <days>]")
	}
	if err := f.require("subject", "kind"); err != nil {
		return err
	}
	ttlDays, err := f.int("ttl")
	if err != nil {
		return err
	}
	if ttlDays == 0 {
		ttlDays = 30
	}

	resp, err := c.CreateToken(ctx, &api.CreateTokenRequest{
		Subject:    f.get("subject"),
		Kind:       f.get("kind"),
		TTLSeconds: int64(ttlDays) * 24 * 60 * 60,
	})
	if err != nil {
		return fmt.Errorf("CreateToken: %w", err)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	green.Println("  Token created successfully")
	fmt.Println()
	cyan.Println("  Subject:  " + f.get("subject") + " (" + f.get("kind") + ")")
	cyan.Println("  Expires:  " + resp.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Token (keep this secret!):")
	fmt.Println()
	fmt.Println("  " + resp.Token)
	fmt.Println()
	return nil
}
