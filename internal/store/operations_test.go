// ABOUTME: Tests for the merge operation audit relation and resource ownership relation
// ABOUTME: Covers status updates, thread id lists, filtering, and ownership reassignment

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOperation_Lifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		op := &MergeOperation{
			Type:            OperationMerge,
			SourceThreadIDs: []string{"threadA", "threadB"},
			TargetUserID:    "userZ",
			Channel:         "telegram",
			CreatedAt:       testTime,
		}
		mustUpdate(t, s, func(tx Tx) error { return tx.CreateMergeOperation(ctx, op) })
		assert.NotEmpty(t, op.ID)
		assert.Equal(t, OperationPending, op.Status)

		completed := testTime.Add(time.Second)
		op.Status = OperationFailed
		op.ErrorMessage = "conflict: threadA bound to userX"
		op.CompletedAt = &completed
		mustUpdate(t, s, func(tx Tx) error { return tx.UpdateMergeOperation(ctx, op) })

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			got, err := tx.GetMergeOperation(ctx, op.ID)
			require.NoError(t, err)
			assert.Equal(t, OperationFailed, got.Status)
			assert.Equal(t, []string{"threadA", "threadB"}, got.SourceThreadIDs)
			assert.Empty(t, got.AffectedThreadIDs)
			assert.Equal(t, "conflict: threadA bound to userX", got.ErrorMessage)
			require.NotNil(t, got.CompletedAt)
			assert.True(t, completed.Equal(*got.CompletedAt))
			return nil
		}))
	})
}

func TestMergeOperation_List(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustUpdate(t, s, func(tx Tx) error {
			for i, typ := range []OperationType{OperationMerge, OperationSplit, OperationMerge} {
				op := &MergeOperation{
					Type:            typ,
					SourceThreadIDs: []string{generateTestID("thread", i)},
					TargetUserID:    "user-1",
					Channel:         "telegram",
					CreatedAt:       testTime.Add(time.Duration(i) * time.Minute),
				}
				if err := tx.CreateMergeOperation(ctx, op); err != nil {
					return err
				}
			}
			return tx.CreateMergeOperation(ctx, &MergeOperation{
				Type: OperationRemove, TargetUserID: "user-2", Channel: "cli", CreatedAt: testTime,
			})
		})

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			all, err := tx.ListMergeOperations(ctx, MergeOperationFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 4)

			user := "user-1"
			typ := OperationMerge
			merges, err := tx.ListMergeOperations(ctx, MergeOperationFilter{TargetUserID: &user, Type: &typ})
			require.NoError(t, err)
			require.Len(t, merges, 2)
			assert.Equal(t, []string{"thread-c"}, merges[0].SourceThreadIDs, "newest first")

			limited, err := tx.ListMergeOperations(ctx, MergeOperationFilter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)
			return nil
		}))
	})
}

func TestMergeOperation_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			_, err := tx.GetMergeOperation(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			return nil
		}))
	})
}

func TestOwnership_ReassignAndSplit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustUpdate(t, s, func(tx Tx) error {
			for _, o := range []ResourceOwnership{
				{ResourceKind: "file_path", ResourceID: "/a.txt", ThreadID: "tg:1"},
				{ResourceKind: "file_path", ResourceID: "/b.txt", ThreadID: "tg:1"},
				{ResourceKind: "table_path", ResourceID: "db.t", ThreadID: "tg:1"},
				{ResourceKind: "file_path", ResourceID: "/c.txt", ThreadID: "tg:2"},
			} {
				if err := tx.SetOwnership(ctx, &o); err != nil {
					return err
				}
			}
			return nil
		})

		var n int64
		mustUpdate(t, s, func(tx Tx) error {
			var err error
			n, err = tx.ReassignOwnership(ctx, "file_path", "tg:1", strPtr("user-1"))
			return err
		})
		assert.Equal(t, int64(2), n)

		user := "user-1"
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			owned, err := tx.ListOwnership(ctx, OwnershipFilter{UserID: &user})
			require.NoError(t, err)
			assert.Len(t, owned, 2)
			return nil
		}))

		mustUpdate(t, s, func(tx Tx) error {
			_, err := tx.ReassignOwnership(ctx, "file_path", "tg:1", nil)
			return err
		})
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			owned, err := tx.ListOwnership(ctx, OwnershipFilter{UserID: &user})
			require.NoError(t, err)
			assert.Empty(t, owned)
			return nil
		}))
	})
}

func TestOwnership_DeleteAndAnonymize(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustUpdate(t, s, func(tx Tx) error {
			if err := tx.SetOwnership(ctx, &ResourceOwnership{ResourceKind: "file_path", ResourceID: "/a.txt", ThreadID: "tg:1", UserID: strPtr("user-1")}); err != nil {
				return err
			}
			return tx.SetOwnership(ctx, &ResourceOwnership{ResourceKind: "reminder", ResourceID: "r1", ThreadID: "tg:1", UserID: strPtr("user-1")})
		})

		mustUpdate(t, s, func(tx Tx) error {
			if _, err := tx.DeleteOwnershipByThread(ctx, "file_path", "tg:1"); err != nil {
				return err
			}
			_, err := tx.AnonymizeOwnershipByThread(ctx, "reminder", "tg:1", "removed:op-1")
			return err
		})

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			all, err := tx.ListOwnership(ctx, OwnershipFilter{})
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "reminder", all[0].ResourceKind)
			assert.Equal(t, "removed:op-1", all[0].ThreadID)
			assert.Nil(t, all[0].UserID)
			return nil
		}))
	})
}
