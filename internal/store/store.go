// ABOUTME: Store interfaces and data types for coven-identity persistence
// ABOUTME: Defines users, identities, workspaces, groups, ACL grants, and merge operations

package store

import (
	"context"
	"time"
)

// UserStatus is the lifecycle state of a canonical user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User is a canonical account. Users are suspended, never deleted.
type User struct {
	ID        string
	Status    UserStatus
	CreatedAt time.Time
}

// VerificationStatus is the verification state of an identity.
// Transitions only move forward: anonymous -> pending -> verified.
type VerificationStatus string

const (
	VerificationAnonymous VerificationStatus = "anonymous"
	VerificationPending   VerificationStatus = "pending"
	VerificationVerified  VerificationStatus = "verified"
)

// Identity is the per-thread record of who is talking.
type Identity struct {
	ID                  string // display form: anon_<channel>_<local-id>
	PersistentUserID    *string
	Channel             string
	ThreadID            string // unique across all identities
	VerificationStatus  VerificationStatus
	VerificationMethod  string
	VerificationContact string
	CodeHash            string     // bcrypt hash, only while pending
	CodeExpiresAt       *time.Time // only while pending
	CreatedAt           time.Time
	MergedAt            *time.Time // non-nil iff PersistentUserID is non-nil
}

// IsBound reports whether the identity is attached to a persistent user.
func (i *Identity) IsBound() bool {
	return i.PersistentUserID != nil
}

// GroupRole is a role inside a team group.
type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// Group is a team construct independent of storage workspaces.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// GroupMember is a user's membership in a group.
type GroupMember struct {
	GroupID   string
	UserID    string
	Role      GroupRole
	CreatedAt time.Time
}

// WorkspaceType determines which owner reference a workspace carries.
type WorkspaceType string

const (
	WorkspaceIndividual WorkspaceType = "individual"
	WorkspaceGroup      WorkspaceType = "group"
	WorkspacePublic     WorkspaceType = "public"
)

// PublicOwnerID is the only valid system owner of a workspace.
const PublicOwnerID = "public"

// OwnerKind tags which owner reference of a workspace is set.
type OwnerKind string

const (
	OwnerUser   OwnerKind = "user"
	OwnerGroup  OwnerKind = "group"
	OwnerPublic OwnerKind = "public"
)

// OwnerRef is a tagged owner reference.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

// Workspace is a storage/access boundary. Exactly one of the owner
// references is set, and it must agree with Type.
type Workspace struct {
	ID            string
	Type          WorkspaceType
	Name          string
	OwnerUserID   *string
	OwnerGroupID  *string
	OwnerSystemID *string
	CreatedAt     time.Time
}

// Owner returns the tagged owner reference of the workspace. The zero
// OwnerRef is returned when no owner reference is set.
func (w *Workspace) Owner() OwnerRef {
	switch {
	case w.OwnerUserID != nil:
		return OwnerRef{Kind: OwnerUser, ID: *w.OwnerUserID}
	case w.OwnerGroupID != nil:
		return OwnerRef{Kind: OwnerGroup, ID: *w.OwnerGroupID}
	case w.OwnerSystemID != nil:
		return OwnerRef{Kind: OwnerPublic, ID: *w.OwnerSystemID}
	default:
		return OwnerRef{}
	}
}

// WorkspaceRole is a coarse role applying to every resource in a workspace.
type WorkspaceRole string

const (
	WorkspaceRoleAdmin  WorkspaceRole = "admin"
	WorkspaceRoleEditor WorkspaceRole = "editor"
	WorkspaceRoleReader WorkspaceRole = "reader"
)

// WorkspaceMember is a user's role in a workspace.
type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	Role        WorkspaceRole
	GrantedBy   string
	GrantedAt   time.Time
}

// Permission is an effective access level, ordered none < read < write < admin.
type Permission string

const (
	PermissionNone  Permission = "none"
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// Rank orders permissions; unknown values rank as none.
func (p Permission) Rank() int {
	switch p {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// MaxPermission returns the more permissive of a and b.
func MaxPermission(a, b Permission) Permission {
	if b.Rank() > a.Rank() {
		return b
	}
	if a == "" {
		return PermissionNone
	}
	return a
}

// GrantTarget names exactly one user or group an ACL grant applies to.
type GrantTarget struct {
	UserID  *string
	GroupID *string
}

// TargetUser returns a grant target for a user.
func TargetUser(id string) GrantTarget {
	return GrantTarget{UserID: &id}
}

// TargetGroup returns a grant target for a group.
func TargetGroup(id string) GrantTarget {
	return GrantTarget{GroupID: &id}
}

// ACLGrant is a fine-grained, resource-scoped, possibly time-bounded grant.
// Permission is only ever read or write; admin comes from roles.
type ACLGrant struct {
	ID            string
	WorkspaceID   string
	ResourceType  string
	ResourceID    string
	TargetUserID  *string
	TargetGroupID *string
	Permission    Permission
	CreatedAt     time.Time
	ExpiresAt     *time.Time // nil = non-expiring
}

// Target returns the grant's target reference.
func (g *ACLGrant) Target() GrantTarget {
	return GrantTarget{UserID: g.TargetUserID, GroupID: g.TargetGroupID}
}

// ActiveAt reports whether the grant is in effect at t.
func (g *ACLGrant) ActiveAt(t time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(t)
}

// OperationType is the kind of identity consolidation recorded in the audit relation.
type OperationType string

const (
	OperationMerge  OperationType = "merge"
	OperationSplit  OperationType = "split"
	OperationRemove OperationType = "remove"
)

// OperationStatus is the state of a MergeOperation.
type OperationStatus string

const (
	OperationPending    OperationStatus = "pending"
	OperationCompleted  OperationStatus = "completed"
	OperationFailed     OperationStatus = "failed"
	OperationRolledBack OperationStatus = "rolled_back"
)

// MergeOperation is the permanent audit record of a merge, split, or remove
// attempt. Rows are never deleted.
type MergeOperation struct {
	ID                string
	Type              OperationType
	SourceThreadIDs   []string // ordered set
	AffectedThreadIDs []string // threads whose identity actually changed
	TargetUserID      string
	Channel           string
	Status            OperationStatus
	ErrorMessage      string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// MergeOperationFilter specifies filtering options for listing operations.
type MergeOperationFilter struct {
	TargetUserID *string
	Type         *OperationType
	Status       *OperationStatus
	Limit        int // default 100, max 1000
}

// ResourceOwnership records which thread (and, once merged, which user)
// owns a resource kept by a storage collaborator.
type ResourceOwnership struct {
	ResourceKind string
	ResourceID   string
	ThreadID     string
	UserID       *string
	CreatedAt    time.Time
}

// OwnershipFilter specifies filtering options for listing ownership rows.
type OwnershipFilter struct {
	ResourceKind *string
	ThreadID     *string
	UserID       *string
}

// Tx exposes repository operations that run inside a single transaction.
// Implementations must make all writes in a Tx visible atomically.
type Tx interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUserStatus(ctx context.Context, id string, status UserStatus) error

	// Identities
	CreateIdentity(ctx context.Context, i *Identity) error
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	GetIdentityByThread(ctx context.Context, threadID string) (*Identity, error)
	LockIdentityByThread(ctx context.Context, threadID string) (*Identity, error)
	UpdateIdentity(ctx context.Context, i *Identity) error
	DeleteIdentity(ctx context.Context, id string) error
	ListIdentitiesByUser(ctx context.Context, userID string) ([]*Identity, error)

	// Groups
	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	UpsertGroupMember(ctx context.Context, m *GroupMember) error
	GetGroupMember(ctx context.Context, groupID, userID string) (*GroupMember, error)
	DeleteGroupMember(ctx context.Context, groupID, userID string) error
	ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]GroupMember, error)
	DeleteGroupMembershipsForUser(ctx context.Context, userID string) error

	// Workspaces
	CreateWorkspace(ctx context.Context, w *Workspace) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	GetIndividualWorkspace(ctx context.Context, userID string) (*Workspace, error)
	GetPublicWorkspace(ctx context.Context) (*Workspace, error)
	UpsertWorkspaceMember(ctx context.Context, m *WorkspaceMember) error
	GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error)
	DeleteWorkspaceMember(ctx context.Context, workspaceID, userID string) error
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error)
	DeleteWorkspaceMembershipsForUser(ctx context.Context, userID string) error

	// ACL grants
	UpsertGrant(ctx context.Context, g *ACLGrant) error
	DeleteGrant(ctx context.Context, workspaceID, resourceType, resourceID string, target GrantTarget) error
	ListGrants(ctx context.Context, workspaceID, resourceType, resourceID string, activeAt time.Time) ([]ACLGrant, error)
	DeleteGrantsForUser(ctx context.Context, userID string) error

	// Merge operations
	CreateMergeOperation(ctx context.Context, op *MergeOperation) error
	UpdateMergeOperation(ctx context.Context, op *MergeOperation) error
	GetMergeOperation(ctx context.Context, id string) (*MergeOperation, error)
	ListMergeOperations(ctx context.Context, f MergeOperationFilter) ([]*MergeOperation, error)

	// Resource ownership
	SetOwnership(ctx context.Context, o *ResourceOwnership) error
	ListOwnership(ctx context.Context, f OwnershipFilter) ([]ResourceOwnership, error)
	ReassignOwnership(ctx context.Context, kind, fromThreadID string, toUserID *string) (int64, error)
	DeleteOwnershipByThread(ctx context.Context, kind, threadID string) (int64, error)
	AnonymizeOwnershipByThread(ctx context.Context, kind, threadID, tombstone string) (int64, error)

	// Audit log
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
}

// Store runs repository operations inside transactions.
//
// Update serializes against every other Update: identities read inside an
// Update are locked until it returns. View sees a consistent snapshot and
// never observes a half-applied Update. If fn returns an error, every write
// made through the Tx is discarded.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error

	// ListAuditLog returns audit entries matching the filter, newest first.
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
