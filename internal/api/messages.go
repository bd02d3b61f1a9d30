// ABOUTME: Request and response messages of the IdentityService
// ABOUTME: Wire shapes use snake_case JSON and RFC 3339 timestamps

package api

import "time"

// Empty is the request or response of methods that carry no data.
type Empty struct{}

// User is the wire form of store.User.
type User struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the wire form of store.Identity. Code hashes never leave the server.
type Identity struct {
	ID                  string     `json:"id"`
	PersistentUserID    string     `json:"persistent_user_id,omitempty"`
	Channel             string     `json:"channel"`
	ThreadID            string     `json:"thread_id"`
	VerificationStatus  string     `json:"verification_status"`
	VerificationMethod  string     `json:"verification_method,omitempty"`
	VerificationContact string     `json:"verification_contact,omitempty"`
	CodeExpiresAt       *time.Time `json:"code_expires_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	MergedAt            *time.Time `json:"merged_at,omitempty"`
}

// Owner is a tagged owner reference: kind is user, group, or public.
type Owner struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Workspace is the wire form of store.Workspace.
type Workspace struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Owner     Owner     `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a workspace or group membership.
type Member struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	GrantedBy string    `json:"granted_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is the wire form of store.Group.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Target names exactly one of a user or a group.
type Target struct {
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// Grant is the wire form of store.ACLGrant.
type Grant struct {
	ID           string     `json:"id"`
	WorkspaceID  string     `json:"workspace_id"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	Target       Target     `json:"target"`
	Permission   string     `json:"permission"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Operation is the wire form of store.MergeOperation.
type Operation struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	SourceThreadIDs   []string   `json:"source_thread_ids"`
	AffectedThreadIDs []string   `json:"affected_thread_ids"`
	TargetUserID      string     `json:"target_user_id,omitempty"`
	Channel           string     `json:"channel,omitempty"`
	Status            string     `json:"status"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Ownership is the wire form of store.ResourceOwnership.
type Ownership struct {
	ResourceKind string    `json:"resource_kind"`
	ResourceID   string    `json:"resource_id"`
	ThreadID     string    `json:"thread_id"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry is the wire form of store.AuditEntry.
type AuditEntry struct {
	ID          string         `json:"id"`
	ActorUserID string         `json:"actor_user_id"`
	Action      string         `json:"action"`
	TargetType  string         `json:"target_type"`
	TargetID    string         `json:"target_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// HealthResponse reports server liveness and store reachability.
type HealthResponse struct {
	Status string `json:"status"`
}

// Users

type ProvisionUserRequest struct {
	UserID      string `json:"user_id,omitempty"` // empty = generated
	ActorUserID string `json:"actor_user_id,omitempty"`
}

type UserRequest struct {
	UserID      string `json:"user_id"`
	ActorUserID string `json:"actor_user_id,omitempty"`
}

type UserResponse struct {
	User User `json:"user"`
}

// Identities

type CreateIdentityRequest struct {
	Channel  string `json:"channel"`
	ThreadID string `json:"thread_id"`
}

type GetIdentityRequest struct {
	IdentityID string `json:"identity_id,omitempty"`
	ThreadID   string `json:"thread_id,omitempty"`
}

type IdentityResponse struct {
	Identity Identity `json:"identity"`
}

type ListIdentitiesResponse struct {
	Identities []Identity `json:"identities"`
}

type RequestVerificationRequest struct {
	IdentityID string `json:"identity_id"`
	Method     string `json:"method"`
	Contact    string `json:"contact"`
}

// RequestVerificationResponse carries the plaintext code for delivery.
type RequestVerificationResponse struct {
	Code string `json:"code"`
}

type ConfirmVerificationRequest struct {
	IdentityID   string `json:"identity_id"`
	Code         string `json:"code"`
	TargetUserID string `json:"target_user_id,omitempty"`
}

// ConfirmVerificationResponse carries a user token when tokens are enabled.
type ConfirmVerificationResponse struct {
	Identity       Identity   `json:"identity"`
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

// Workspaces and groups

type CreateWorkspaceRequest struct {
	Type        string `json:"type"`
	Owner       Owner  `json:"owner"`
	Name        string `json:"name,omitempty"`
	ActorUserID string `json:"actor_user_id,omitempty"`
}

type WorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

type WorkspaceResponse struct {
	Workspace Workspace `json:"workspace"`
}

type MembershipRequest struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	Role        string `json:"role,omitempty"` // grant only
	ActorUserID string `json:"actor_user_id,omitempty"`
}

type MembersResponse struct {
	Members []Member `json:"members"`
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	ActorUserID string `json:"actor_user_id,omitempty"` // becomes the first group admin
}

type GroupRequest struct {
	GroupID string `json:"group_id"`
}

type GroupResponse struct {
	Group Group `json:"group"`
}

type GroupMemberRequest struct {
	GroupID     string `json:"group_id"`
	UserID      string `json:"user_id"`
	Role        string `json:"role,omitempty"` // add only
	ActorUserID string `json:"actor_user_id,omitempty"`
}

// ACL and resolution

type GrantRequest struct {
	WorkspaceID  string     `json:"workspace_id"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	Target       Target     `json:"target"`
	Permission   string     `json:"permission"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ActorUserID  string     `json:"actor_user_id,omitempty"`
}

type GrantResponse struct {
	Grant Grant `json:"grant"`
}

type RevokeGrantRequest struct {
	WorkspaceID  string `json:"workspace_id"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Target       Target `json:"target"`
	ActorUserID  string `json:"actor_user_id,omitempty"`
}

type ResourceRequest struct {
	WorkspaceID  string `json:"workspace_id"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

type ListGrantsResponse struct {
	Grants []Grant `json:"grants"`
}

type ResolveRequest struct {
	UserID       string `json:"user_id,omitempty"` // empty = the calling user
	WorkspaceID  string `json:"workspace_id"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

// ResolveResponse is the effective permission with its contributions.
type ResolveResponse struct {
	Permission string `json:"permission"`
	Role       string `json:"role,omitempty"`
	FromRole   string `json:"from_role"`
	FromGrants string `json:"from_grants"`
}

// Operations

type MergeRequest struct {
	SourceThreadIDs []string `json:"source_thread_ids"`
	TargetUserID    string   `json:"target_user_id"`
	Channel         string   `json:"channel,omitempty"`
}

type SplitRequest struct {
	UserID    string   `json:"user_id"`
	ThreadIDs []string `json:"thread_ids"`
}

type RemoveRequest struct {
	UserID    string   `json:"user_id,omitempty"`
	ThreadIDs []string `json:"thread_ids,omitempty"`
	Policy    string   `json:"policy"`
}

type OperationRequest struct {
	OperationID string `json:"operation_id"`
}

type OperationResponse struct {
	Operation Operation `json:"operation"`
}

type ListOperationsRequest struct {
	TargetUserID string `json:"target_user_id,omitempty"`
	Type         string `json:"type,omitempty"`
	Status       string `json:"status,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

type ListOperationsResponse struct {
	Operations []Operation `json:"operations"`
}

type RollbackRequest struct {
	OperationID string `json:"operation_id"`
	Reason      string `json:"reason"`
	ActorUserID string `json:"actor_user_id,omitempty"`
}

type RegisterOwnershipRequest struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   string `json:"resource_id"`
	ThreadID     string `json:"thread_id"`
}

type OwnershipResponse struct {
	Ownership Ownership `json:"ownership"`
}

type ListOwnershipRequest struct {
	ResourceKind string `json:"resource_kind,omitempty"`
	ThreadID     string `json:"thread_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

type ListOwnershipResponse struct {
	Rows []Ownership `json:"rows"`
}

// Audit and tokens

type ListAuditLogRequest struct {
	ActorUserID string     `json:"actor_user_id,omitempty"`
	Action      string     `json:"action,omitempty"`
	TargetType  string     `json:"target_type,omitempty"`
	TargetID    string     `json:"target_id,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

type ListAuditLogResponse struct {
	Entries []AuditEntry `json:"entries"`
}

type CreateTokenRequest struct {
	Subject    string `json:"subject"`
	Kind       string `json:"kind"` // operator | user
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type CreateTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
