// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite; Update works on a copy that is swapped in on success

package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// errReadOnly is returned by writes attempted inside MockStore.View.
var errReadOnly = errors.New("write in read-only transaction")

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu   sync.RWMutex
	data *mockData
}

// mockData holds every relation. Values are stored by value so a shallow
// map copy is a full snapshot.
type mockData struct {
	users      map[string]User
	identities map[string]Identity // keyed by identity ID
	byThread   map[string]string   // thread ID -> identity ID
	groups     map[string]Group
	groupMem   map[string]GroupMember // keyed by "groupID\x00userID"
	workspaces map[string]Workspace
	wsMembers  map[string]WorkspaceMember // keyed by "workspaceID\x00userID"
	grants     map[string]ACLGrant        // keyed by tuple
	operations map[string]MergeOperation
	ownership  map[string]ResourceOwnership // keyed by "kind\x00id"
	audit      []AuditEntry
}

func newMockData() *mockData {
	return &mockData{
		users:      make(map[string]User),
		identities: make(map[string]Identity),
		byThread:   make(map[string]string),
		groups:     make(map[string]Group),
		groupMem:   make(map[string]GroupMember),
		workspaces: make(map[string]Workspace),
		wsMembers:  make(map[string]WorkspaceMember),
		grants:     make(map[string]ACLGrant),
		operations: make(map[string]MergeOperation),
		ownership:  make(map[string]ResourceOwnership),
	}
}

func (d *mockData) clone() *mockData {
	return &mockData{
		users:      maps.Clone(d.users),
		identities: maps.Clone(d.identities),
		byThread:   maps.Clone(d.byThread),
		groups:     maps.Clone(d.groups),
		groupMem:   maps.Clone(d.groupMem),
		workspaces: maps.Clone(d.workspaces),
		wsMembers:  maps.Clone(d.wsMembers),
		grants:     maps.Clone(d.grants),
		operations: maps.Clone(d.operations),
		ownership:  maps.Clone(d.ownership),
		audit:      append([]AuditEntry(nil), d.audit...),
	}
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{data: newMockData()}
}

// View runs fn against the current state. Writes fail.
func (m *MockStore) View(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&mockTx{d: m.data, readOnly: true})
}

// Update runs fn against a copy of the state and publishes it only when
// fn succeeds.
func (m *MockStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(&mockTx{d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := []AuditEntry{}
	for i := len(m.data.audit) - 1; i >= 0; i-- {
		e := m.data.audit[i]
		switch {
		case f.Since != nil && e.Timestamp.Before(*f.Since):
			continue
		case f.Until != nil && e.Timestamp.After(*f.Until):
			continue
		case f.ActorUserID != nil && e.ActorUserID != *f.ActorUserID:
			continue
		case f.Action != nil && e.Action != *f.Action:
			continue
		case f.TargetType != nil && e.TargetType != *f.TargetType:
			continue
		case f.TargetID != nil && e.TargetID != *f.TargetID:
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit := normalizeAuditLimit(f.Limit); len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for MockStore.
func (m *MockStore) Close() error { return nil }

// mockTx implements Tx over one mockData snapshot.
type mockTx struct {
	d        *mockData
	readOnly bool
}

func (t *mockTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func memberKey(a, b string) string { return a + "\x00" + b }

func grantKey(workspaceID, resourceType, resourceID string, target GrantTarget) string {
	return workspaceID + "\x00" + resourceType + "\x00" + resourceID + "\x00" +
		derefString(target.UserID) + "\x00" + derefString(target.GroupID)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Users

func (t *mockTx) CreateUser(ctx context.Context, u *User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if _, ok := t.d.users[u.ID]; ok {
		return fmt.Errorf("%w: user already exists", ErrConflict)
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	u.CreatedAt = nowIfZero(u.CreatedAt)
	t.d.users[u.ID] = *u
	return nil
}

func (t *mockTx) GetUser(ctx context.Context, id string) (*User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return &u, nil
}

func (t *mockTx) UpdateUserStatus(ctx context.Context, id string, status UserStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	u, ok := t.d.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	u.Status = status
	t.d.users[id] = u
	return nil
}

// Identities

func (t *mockTx) CreateIdentity(ctx context.Context, i *Identity) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := ValidateIdentity(i); err != nil {
		return err
	}
	if _, ok := t.d.byThread[i.ThreadID]; ok {
		return fmt.Errorf("%w: thread %s already has an identity", ErrConflict, i.ThreadID)
	}
	if _, ok := t.d.identities[i.ID]; ok {
		return fmt.Errorf("%w: identity already exists", ErrConflict)
	}
	if err := t.checkUserRef(i.PersistentUserID); err != nil {
		return err
	}
	i.CreatedAt = nowIfZero(i.CreatedAt)
	t.d.identities[i.ID] = copyIdentity(i)
	t.d.byThread[i.ThreadID] = i.ID
	return nil
}

func (t *mockTx) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	i, ok := t.d.identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: identity %s", ErrNotFound, id)
	}
	c := copyIdentity(&i)
	return &c, nil
}

func (t *mockTx) GetIdentityByThread(ctx context.Context, threadID string) (*Identity, error) {
	id, ok := t.d.byThread[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: identity for thread %s", ErrNotFound, threadID)
	}
	return t.GetIdentity(ctx, id)
}

func (t *mockTx) LockIdentityByThread(ctx context.Context, threadID string) (*Identity, error) {
	return t.GetIdentityByThread(ctx, threadID)
}

func (t *mockTx) UpdateIdentity(ctx context.Context, i *Identity) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := ValidateIdentity(i); err != nil {
		return err
	}
	existing, ok := t.d.identities[i.ID]
	if !ok {
		return fmt.Errorf("%w: identity %s", ErrNotFound, i.ID)
	}
	if err := t.checkUserRef(i.PersistentUserID); err != nil {
		return err
	}
	// Channel, thread, and creation time are immutable.
	c := copyIdentity(i)
	c.Channel = existing.Channel
	c.ThreadID = existing.ThreadID
	c.CreatedAt = existing.CreatedAt
	t.d.identities[i.ID] = c
	return nil
}

func (t *mockTx) DeleteIdentity(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if i, ok := t.d.identities[id]; ok {
		delete(t.d.byThread, i.ThreadID)
		delete(t.d.identities, id)
	}
	return nil
}

func (t *mockTx) ListIdentitiesByUser(ctx context.Context, userID string) ([]*Identity, error) {
	var out []*Identity
	for _, i := range t.d.identities {
		if i.PersistentUserID != nil && *i.PersistentUserID == userID {
			c := copyIdentity(&i)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func copyIdentity(i *Identity) Identity {
	c := *i
	c.PersistentUserID = copyString(i.PersistentUserID)
	c.CodeExpiresAt = copyTime(i.CodeExpiresAt)
	c.MergedAt = copyTime(i.MergedAt)
	return c
}

func (t *mockTx) checkUserRef(id *string) error {
	if id == nil {
		return nil
	}
	if _, ok := t.d.users[*id]; !ok {
		return fmt.Errorf("%w: unknown user %s", ErrValidation, *id)
	}
	return nil
}

func (t *mockTx) checkGroupRef(id *string) error {
	if id == nil {
		return nil
	}
	if _, ok := t.d.groups[*id]; !ok {
		return fmt.Errorf("%w: unknown group %s", ErrValidation, *id)
	}
	return nil
}

// Groups

func (t *mockTx) CreateGroup(ctx context.Context, g *Group) error {
	if err := t.writable(); err != nil {
		return err
	}
	if g.ID == "" || g.Name == "" {
		return fmt.Errorf("%w: group id and name are required", ErrValidation)
	}
	if _, ok := t.d.groups[g.ID]; ok {
		return fmt.Errorf("%w: group already exists", ErrConflict)
	}
	g.CreatedAt = nowIfZero(g.CreatedAt)
	t.d.groups[g.ID] = *g
	return nil
}

func (t *mockTx) GetGroup(ctx context.Context, id string) (*Group, error) {
	g, ok := t.d.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, id)
	}
	return &g, nil
}

func (t *mockTx) UpsertGroupMember(ctx context.Context, m *GroupMember) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !IsValidGroupRole(m.Role) {
		return fmt.Errorf("%w: invalid group role %q", ErrValidation, m.Role)
	}
	if err := t.checkGroupRef(&m.GroupID); err != nil {
		return err
	}
	if err := t.checkUserRef(&m.UserID); err != nil {
		return err
	}
	key := memberKey(m.GroupID, m.UserID)
	if existing, ok := t.d.groupMem[key]; ok {
		existing.Role = m.Role
		t.d.groupMem[key] = existing
		return nil
	}
	m.CreatedAt = nowIfZero(m.CreatedAt)
	t.d.groupMem[key] = *m
	return nil
}

func (t *mockTx) GetGroupMember(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	m, ok := t.d.groupMem[memberKey(groupID, userID)]
	if !ok {
		return nil, fmt.Errorf("%w: group member %s/%s", ErrNotFound, groupID, userID)
	}
	return &m, nil
}

func (t *mockTx) DeleteGroupMember(ctx context.Context, groupID, userID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.d.groupMem, memberKey(groupID, userID))
	return nil
}

func (t *mockTx) ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	out := []GroupMember{}
	for _, m := range t.d.groupMem {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (t *mockTx) ListGroupsForUser(ctx context.Context, userID string) ([]GroupMember, error) {
	out := []GroupMember{}
	for _, m := range t.d.groupMem {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (t *mockTx) DeleteGroupMembershipsForUser(ctx context.Context, userID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for k, m := range t.d.groupMem {
		if m.UserID == userID {
			delete(t.d.groupMem, k)
		}
	}
	return nil
}

// Workspaces

func (t *mockTx) CreateWorkspace(ctx context.Context, w *Workspace) error {
	if err := t.writable(); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("%w: workspace id is required", ErrValidation)
	}
	if err := ValidateWorkspace(w); err != nil {
		return err
	}
	if _, ok := t.d.workspaces[w.ID]; ok {
		return fmt.Errorf("%w: workspace already exists", ErrConflict)
	}
	if err := t.checkUserRef(w.OwnerUserID); err != nil {
		return err
	}
	if err := t.checkGroupRef(w.OwnerGroupID); err != nil {
		return err
	}
	for _, other := range t.d.workspaces {
		if w.Type == WorkspaceIndividual && other.Type == WorkspaceIndividual && *other.OwnerUserID == *w.OwnerUserID {
			return fmt.Errorf("%w: workspace already exists", ErrConflict)
		}
		if w.Type == WorkspacePublic && other.Type == WorkspacePublic {
			return fmt.Errorf("%w: workspace already exists", ErrConflict)
		}
	}
	w.CreatedAt = nowIfZero(w.CreatedAt)
	c := *w
	c.OwnerUserID = copyString(w.OwnerUserID)
	c.OwnerGroupID = copyString(w.OwnerGroupID)
	c.OwnerSystemID = copyString(w.OwnerSystemID)
	t.d.workspaces[w.ID] = c
	return nil
}

func (t *mockTx) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	w, ok := t.d.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: workspace %s", ErrNotFound, id)
	}
	return &w, nil
}

func (t *mockTx) GetIndividualWorkspace(ctx context.Context, userID string) (*Workspace, error) {
	for _, w := range t.d.workspaces {
		if w.Type == WorkspaceIndividual && *w.OwnerUserID == userID {
			return &w, nil
		}
	}
	return nil, fmt.Errorf("%w: individual workspace for user %s", ErrNotFound, userID)
}

func (t *mockTx) GetPublicWorkspace(ctx context.Context) (*Workspace, error) {
	for _, w := range t.d.workspaces {
		if w.Type == WorkspacePublic {
			return &w, nil
		}
	}
	return nil, fmt.Errorf("%w: workspace %s", ErrNotFound, PublicOwnerID)
}

func (t *mockTx) UpsertWorkspaceMember(ctx context.Context, m *WorkspaceMember) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !IsValidWorkspaceRole(m.Role) {
		return fmt.Errorf("%w: invalid workspace role %q", ErrValidation, m.Role)
	}
	if _, ok := t.d.workspaces[m.WorkspaceID]; !ok {
		return fmt.Errorf("%w: unknown workspace %s", ErrValidation, m.WorkspaceID)
	}
	if err := t.checkUserRef(&m.UserID); err != nil {
		return err
	}
	m.GrantedAt = nowIfZero(m.GrantedAt)
	t.d.wsMembers[memberKey(m.WorkspaceID, m.UserID)] = *m
	return nil
}

func (t *mockTx) GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error) {
	m, ok := t.d.wsMembers[memberKey(workspaceID, userID)]
	if !ok {
		return nil, fmt.Errorf("%w: workspace member %s/%s", ErrNotFound, workspaceID, userID)
	}
	return &m, nil
}

func (t *mockTx) DeleteWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.d.wsMembers, memberKey(workspaceID, userID))
	return nil
}

func (t *mockTx) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error) {
	out := []WorkspaceMember{}
	for _, m := range t.d.wsMembers {
		if m.WorkspaceID == workspaceID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *mockTx) DeleteWorkspaceMembershipsForUser(ctx context.Context, userID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for k, m := range t.d.wsMembers {
		if m.UserID == userID {
			delete(t.d.wsMembers, k)
		}
	}
	return nil
}

// ACL grants

func (t *mockTx) UpsertGrant(ctx context.Context, g *ACLGrant) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := ValidateGrant(g); err != nil {
		return err
	}
	if _, ok := t.d.workspaces[g.WorkspaceID]; !ok {
		return fmt.Errorf("%w: unknown workspace %s", ErrValidation, g.WorkspaceID)
	}
	if err := t.checkUserRef(g.TargetUserID); err != nil {
		return err
	}
	if err := t.checkGroupRef(g.TargetGroupID); err != nil {
		return err
	}
	key := grantKey(g.WorkspaceID, g.ResourceType, g.ResourceID, g.Target())
	if existing, ok := t.d.grants[key]; ok {
		existing.Permission = g.Permission
		existing.ExpiresAt = copyTime(g.ExpiresAt)
		t.d.grants[key] = existing
		return nil
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	g.CreatedAt = nowIfZero(g.CreatedAt)
	c := *g
	c.TargetUserID = copyString(g.TargetUserID)
	c.TargetGroupID = copyString(g.TargetGroupID)
	c.ExpiresAt = copyTime(g.ExpiresAt)
	t.d.grants[key] = c
	return nil
}

func (t *mockTx) DeleteGrant(ctx context.Context, workspaceID, resourceType, resourceID string, target GrantTarget) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := ValidateGrantTarget(target); err != nil {
		return err
	}
	delete(t.d.grants, grantKey(workspaceID, resourceType, resourceID, target))
	return nil
}

func (t *mockTx) ListGrants(ctx context.Context, workspaceID, resourceType, resourceID string, activeAt time.Time) ([]ACLGrant, error) {
	out := []ACLGrant{}
	for _, g := range t.d.grants {
		if g.WorkspaceID == workspaceID && g.ResourceType == resourceType && g.ResourceID == resourceID && g.ActiveAt(activeAt) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *mockTx) DeleteGrantsForUser(ctx context.Context, userID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for k, g := range t.d.grants {
		if g.TargetUserID != nil && *g.TargetUserID == userID {
			delete(t.d.grants, k)
		}
	}
	return nil
}

// Merge operations

func (t *mockTx) CreateMergeOperation(ctx context.Context, op *MergeOperation) error {
	if err := t.writable(); err != nil {
		return err
	}
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if _, ok := t.d.operations[op.ID]; ok {
		return fmt.Errorf("%w: merge operation already exists", ErrConflict)
	}
	op.CreatedAt = nowIfZero(op.CreatedAt)
	if op.Status == "" {
		op.Status = OperationPending
	}
	t.d.operations[op.ID] = copyOperation(op)
	return nil
}

func (t *mockTx) UpdateMergeOperation(ctx context.Context, op *MergeOperation) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.d.operations[op.ID]
	if !ok {
		return fmt.Errorf("%w: merge operation %s", ErrNotFound, op.ID)
	}
	existing.SourceThreadIDs = append([]string(nil), op.SourceThreadIDs...)
	existing.AffectedThreadIDs = append([]string(nil), op.AffectedThreadIDs...)
	existing.Status = op.Status
	existing.ErrorMessage = op.ErrorMessage
	existing.CompletedAt = copyTime(op.CompletedAt)
	t.d.operations[op.ID] = existing
	return nil
}

func (t *mockTx) GetMergeOperation(ctx context.Context, id string) (*MergeOperation, error) {
	op, ok := t.d.operations[id]
	if !ok {
		return nil, fmt.Errorf("%w: merge operation %s", ErrNotFound, id)
	}
	c := copyOperation(&op)
	return &c, nil
}

func (t *mockTx) ListMergeOperations(ctx context.Context, f MergeOperationFilter) ([]*MergeOperation, error) {
	out := []*MergeOperation{}
	for _, op := range t.d.operations {
		switch {
		case f.TargetUserID != nil && op.TargetUserID != *f.TargetUserID:
			continue
		case f.Type != nil && op.Type != *f.Type:
			continue
		case f.Status != nil && op.Status != *f.Status:
			continue
		}
		c := copyOperation(&op)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := normalizeAuditLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyOperation(op *MergeOperation) MergeOperation {
	c := *op
	c.SourceThreadIDs = append([]string(nil), op.SourceThreadIDs...)
	c.AffectedThreadIDs = append([]string(nil), op.AffectedThreadIDs...)
	c.CompletedAt = copyTime(op.CompletedAt)
	return c
}

// Resource ownership

func (t *mockTx) SetOwnership(ctx context.Context, o *ResourceOwnership) error {
	if err := t.writable(); err != nil {
		return err
	}
	if o.ResourceKind == "" || o.ResourceID == "" || o.ThreadID == "" {
		return fmt.Errorf("%w: resource kind, resource id, and thread id are required", ErrValidation)
	}
	key := memberKey(o.ResourceKind, o.ResourceID)
	if existing, ok := t.d.ownership[key]; ok {
		existing.ThreadID = o.ThreadID
		existing.UserID = copyString(o.UserID)
		t.d.ownership[key] = existing
		return nil
	}
	o.CreatedAt = nowIfZero(o.CreatedAt)
	c := *o
	c.UserID = copyString(o.UserID)
	t.d.ownership[key] = c
	return nil
}

func (t *mockTx) ListOwnership(ctx context.Context, f OwnershipFilter) ([]ResourceOwnership, error) {
	out := []ResourceOwnership{}
	for _, o := range t.d.ownership {
		switch {
		case f.ResourceKind != nil && o.ResourceKind != *f.ResourceKind:
			continue
		case f.ThreadID != nil && o.ThreadID != *f.ThreadID:
			continue
		case f.UserID != nil && (o.UserID == nil || *o.UserID != *f.UserID):
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResourceKind == out[j].ResourceKind {
			return out[i].ResourceID < out[j].ResourceID
		}
		return out[i].ResourceKind < out[j].ResourceKind
	})
	return out, nil
}

func (t *mockTx) ReassignOwnership(ctx context.Context, kind, fromThreadID string, toUserID *string) (int64, error) {
	return t.rewriteOwnership(kind, fromThreadID, func(o *ResourceOwnership) bool {
		o.UserID = copyString(toUserID)
		return true
	})
}

func (t *mockTx) DeleteOwnershipByThread(ctx context.Context, kind, threadID string) (int64, error) {
	return t.rewriteOwnership(kind, threadID, func(*ResourceOwnership) bool { return false })
}

func (t *mockTx) AnonymizeOwnershipByThread(ctx context.Context, kind, threadID, tombstone string) (int64, error) {
	return t.rewriteOwnership(kind, threadID, func(o *ResourceOwnership) bool {
		o.ThreadID = tombstone
		o.UserID = nil
		return true
	})
}

// rewriteOwnership applies fn to each matching row; rows for which fn
// returns false are deleted.
func (t *mockTx) rewriteOwnership(kind, threadID string, fn func(*ResourceOwnership) bool) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var n int64
	for k, o := range t.d.ownership {
		if o.ResourceKind != kind || o.ThreadID != threadID {
			continue
		}
		n++
		if fn(&o) {
			t.d.ownership[k] = o
		} else {
			delete(t.d.ownership, k)
		}
	}
	return n, nil
}

// Audit log

func (t *mockTx) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if err := t.writable(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ActorUserID == "" {
		e.ActorUserID = SystemActor
	}
	e.Timestamp = nowIfZero(e.Timestamp)
	t.d.audit = append(t.d.audit, *e)
	return nil
}

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Tx    = (*mockTx)(nil)
)
