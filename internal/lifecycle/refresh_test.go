package lifecycle_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clickref/internal/clickup"
	"clickref/internal/lifecycle"
	"clickref/internal/refstore"
)

func Test_Refresh_Merges_Metadata_Without_Touching_Span(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.repo.records["T1"] = clickup.TaskRecord{
		ID:      "T1",
		Name:    "Fix login",
		Status:  clickup.TaskStatus{Status: "open", Color: "#0f0"},
		List:    clickup.NamedRef{ID: "L1", Name: "Sprint"},
		Updated: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	_, err := e.coord.Save(context.Background(), jsDoc("code()\n// clickup:T1\n"))
	require.NoError(t, err)

	before := e.store.Get(docURI)[0].Span

	summary, err := e.coord.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Refreshed)
	require.Zero(t, summary.Failed)
	require.Zero(t, summary.Skipped)

	got := e.store.Get(docURI)[0]
	require.Equal(t, before, got.Span)
	require.NotNil(t, got.Meta)
	require.Equal(t, "Fix login", got.Meta.Name)
	require.Equal(t, "open", got.Meta.Status)
	require.Equal(t, "Sprint", got.Meta.ListName)
}

func Test_Refresh_Collects_Failures_And_Continues(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.repo.records["good"] = clickup.TaskRecord{ID: "good", Name: "Fine"}
	e.repo.errs["bad"] = errBoom

	_, err := e.coord.Save(context.Background(), jsDoc("// clickup:good\n// clickup:bad\n"))
	require.NoError(t, err)

	summary, err := e.coord.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Refreshed)
	require.Equal(t, 1, summary.Failed)

	refs := e.store.Get(docURI)
	require.Len(t, refs, 2)

	for _, ref := range refs {
		if ref.TaskID == "good" {
			require.NotNil(t, ref.Meta)
			require.Equal(t, "Fine", ref.Meta.Name)
		}

		if ref.TaskID == "bad" {
			require.Nil(t, ref.Meta, "failed lookup must leave metadata untouched")
		}
	}
}

func Test_Refresh_Failure_Keeps_Previously_Fetched_Metadata(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.repo.records["T1"] = clickup.TaskRecord{ID: "T1", Name: "Cached"}

	_, err := e.coord.Save(context.Background(), jsDoc("// clickup:T1\n"))
	require.NoError(t, err)

	_, err = e.coord.Refresh(context.Background())
	require.NoError(t, err)

	// Remote starts failing; the cached name must survive.
	e.repo.mu.Lock()
	e.repo.errs["T1"] = errBoom
	e.repo.mu.Unlock()

	summary, err := e.coord.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)

	got := e.store.Get(docURI)[0]
	require.NotNil(t, got.Meta)
	require.Equal(t, "Cached", got.Meta.Name)
}

func Test_Refresh_Fetches_Shared_Task_Once(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.repo.records["shared"] = clickup.TaskRecord{ID: "shared", Name: "Both"}

	ctx := context.Background()

	_, err := e.coord.Save(ctx, jsDoc("// clickup:shared\n"))
	require.NoError(t, err)

	other := jsDoc("// clickup:shared\n")
	other.URI = "file:///src/other.js"

	_, err = e.coord.Save(ctx, other)
	require.NoError(t, err)

	summary, err := e.coord.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Refreshed)

	e.repo.mu.Lock()
	calls := e.repo.calls["shared"]
	e.repo.mu.Unlock()

	require.Equal(t, 1, calls)
}

func Test_Refresh_Never_Resurrects_A_Purged_Reference(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.repo.records["gone"] = clickup.TaskRecord{ID: "gone", Name: "Zombie"}

	ctx := context.Background()

	_, err := e.coord.Save(ctx, jsDoc("// clickup:gone\n"))
	require.NoError(t, err)

	// Simulate the purge landing between the refresh snapshot and merge:
	// here, simply purge first — the merge must then be a no-op for it.
	_, err = e.coord.Save(ctx, jsDoc("nothing here\n"))
	require.NoError(t, err)

	summary, err := e.coord.Refresh(ctx, docURI)
	require.NoError(t, err)
	require.Zero(t, summary.Refreshed)
	require.Empty(t, e.store.Get(docURI))
}

func Test_Refresh_Without_Repository_Fails(t *testing.T) {
	t.Parallel()

	coord, err := lifecycle.New(lifecycle.Config{
		Store: refstore.New(),
		KV:    refstore.NewFileKV(filepath.Join(t.TempDir(), "refs.json"), nil),
	})
	require.NoError(t, err)

	_, err = coord.Refresh(context.Background())
	require.Error(t, err)
}

func Test_Refresh_With_No_Task_References_Is_A_NoOp(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)

	summary, err := e.coord.Refresh(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.Refreshed)
}
