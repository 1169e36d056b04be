// Package repotest holds the behaviour every Transactions/AuditLogs backend must share.
package repotest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
)

func pending(id string, amount models.Money) *models.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Transaction{
		ID:           id,
		Amount:       amount,
		State:        models.StatePending,
		Origin:       models.OriginCreated,
		Presentation: models.Presentation{Code: "000201pix", Image: "data:image/png;base64,AA=="},
		Customer:     &models.Party{Name: "Ana", Document: "12345678901"},
		Metadata:     map[string]any{"delivery": "https://example.com/d/1"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Run exercises a backend. newRepos must return an empty store.
func Run(t *testing.T, newRepos func(t *testing.T) repo.Repositories) {
	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		r := newRepos(t)
		_, err := r.Transactions.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, repo.ErrNotFound)

		ok, err := r.Transactions.Exists(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("upsert inserts and round-trips fields", func(t *testing.T) {
		r := newRepos(t)
		ctx := context.Background()
		want := pending("tx-1", 1000)

		got, err := r.Transactions.Upsert(ctx, "tx-1", func(cur *models.Transaction) (repo.Mutation, error) {
			assert.Nil(t, cur)
			return repo.Mutation{Next: want}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "tx-1", got.ID)

		stored, err := r.Transactions.Get(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, want.Amount, stored.Amount)
		assert.Equal(t, want.State, stored.State)
		assert.Equal(t, want.Presentation, stored.Presentation)
		assert.Equal(t, want.Customer, stored.Customer)
		assert.Equal(t, "https://example.com/d/1", stored.Metadata["delivery"])
		assert.True(t, want.CreatedAt.Equal(stored.CreatedAt))
		assert.Nil(t, stored.ConfirmedAt)
		assert.Nil(t, stored.Payer)

		ok, err := r.Transactions.Exists(ctx, "tx-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("fn error aborts without writing", func(t *testing.T) {
		r := newRepos(t)
		ctx := context.Background()
		boom := errors.New("boom")

		_, err := r.Transactions.Upsert(ctx, "tx-2", func(*models.Transaction) (repo.Mutation, error) {
			return repo.Mutation{}, boom
		})
		assert.ErrorIs(t, err, boom)

		ok, err := r.Transactions.Exists(ctx, "tx-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("audit is written with the mutation even when next is nil", func(t *testing.T) {
		r := newRepos(t)
		ctx := context.Background()

		_, err := r.Transactions.Upsert(ctx, "tx-3", func(*models.Transaction) (repo.Mutation, error) {
			return repo.Mutation{Audit: &models.AuditLog{
				Source:        models.SourceCallback,
				TransactionID: "tx-3",
				RawPayload:    json.RawMessage(`{"status":"weird"}`),
				Outcome:       models.OutcomeNoop,
			}}, nil
		})
		require.NoError(t, err)

		logs, err := r.AuditLogs.List(ctx, repo.AuditFilter{TransactionID: "tx-3"})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.OutcomeNoop, logs[0].Outcome)
		assert.NotEmpty(t, logs[0].ID)
		assert.False(t, logs[0].Timestamp.IsZero())
		assert.JSONEq(t, `{"status":"weird"}`, string(logs[0].RawPayload))
	})

	t.Run("concurrent upserts on one id never lose an update", func(t *testing.T) {
		r := newRepos(t)
		ctx := context.Background()
		_, err := r.Transactions.Upsert(ctx, "counter", func(*models.Transaction) (repo.Mutation, error) {
			return repo.Mutation{Next: pending("counter", 0)}, nil
		})
		require.NoError(t, err)

		const n = 25
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.Transactions.Upsert(ctx, "counter", func(cur *models.Transaction) (repo.Mutation, error) {
					next := cur.Clone()
					next.Amount++
					return repo.Mutation{Next: &next}, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := r.Transactions.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, models.Money(n), got.Amount)
	})

	t.Run("list pages newest first and filters audit", func(t *testing.T) {
		r := newRepos(t)
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Microsecond)
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("l-%d", i)
			tx := pending(id, 100)
			tx.CreatedAt = base.Add(time.Duration(i) * time.Second)
			_, err := r.Transactions.Upsert(ctx, id, func(*models.Transaction) (repo.Mutation, error) {
				return repo.Mutation{Next: tx, Audit: &models.AuditLog{
					Source: models.SourceCreation, TransactionID: id, Outcome: models.OutcomeApplied,
				}}, nil
			})
			require.NoError(t, err)
		}
		require.NoError(t, r.AuditLogs.Create(ctx, models.AuditLog{Source: models.SourceCallback, Outcome: models.OutcomeRejected}))

		all, err := r.Transactions.List(ctx, 2, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "l-2", all[0].ID)
		assert.Equal(t, "l-1", all[1].ID)

		rest, err := r.Transactions.List(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "l-0", rest[0].ID)

		rejected, err := r.AuditLogs.List(ctx, repo.AuditFilter{Source: models.SourceCallback})
		require.NoError(t, err)
		require.Len(t, rejected, 1)
		assert.Equal(t, models.OutcomeRejected, rejected[0].Outcome)
	})
}
