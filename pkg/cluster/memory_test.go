package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncwarden/pkg/resource"
)

func configMapSpec(name, value string) resource.Spec {
	return resource.Spec{
		ID:     resource.Identity{Kind: resource.KindConfigMap, Namespace: "default", Name: name},
		Fields: map[string]interface{}{"data": map[string]interface{}{"key": value}},
	}
}

func TestMemory_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	spec := configMapSpec("app", "v1")

	created, err := m.Create(ctx, spec)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Version)
	assert.Equal(t, resource.ManagedByValue, created.Labels[resource.ManagedByLabel])

	_, err = m.Create(ctx, spec)
	assert.True(t, IsConflict(err), "second create must conflict")

	spec.Fields["data"] = map[string]interface{}{"key": "v2"}
	updated, err := m.Update(ctx, spec, created.Version)
	require.NoError(t, err)
	assert.NotEqual(t, created.Version, updated.Version)

	got, err := m.Get(ctx, spec.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Fields["data"].(map[string]interface{})["key"])

	require.NoError(t, m.Delete(ctx, got))
	_, err = m.Get(ctx, spec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, m.Delete(ctx, got))
}

func TestMemory_UpdateWithStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	spec := configMapSpec("app", "v1")

	created, err := m.Create(ctx, spec)
	require.NoError(t, err)
	require.NoError(t, m.Mutate(spec.ID, map[string]interface{}{"data": map[string]interface{}{"key": "edited"}}))

	_, err = m.Update(ctx, spec, created.Version)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, spec.ID, conflict.ID)
}

func TestMemory_ListOnlyManaged(t *testing.T) {
	unmanaged := resource.State{
		ID:     resource.Identity{Kind: resource.KindConfigMap, Namespace: "default", Name: "foreign"},
		Labels: map[string]string{resource.ManagedByLabel: "helm"},
	}
	managed := resource.StateFromSpec(configMapSpec("mine", "x"), "")
	ns := resource.State{ID: resource.Identity{Kind: resource.KindNamespace, Name: "default"}}

	m := NewMemory(unmanaged, managed, ns)

	cms, err := m.List(context.Background(), resource.KindConfigMap)
	require.NoError(t, err)
	require.Len(t, cms, 1)
	assert.Equal(t, "mine", cms[0].ID.Name)

	all, err := ListAll(context.Background(), m, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, resource.KindConfigMap, all[0].ID.Kind)
	assert.Equal(t, resource.KindNamespace, all[1].ID.Kind)
}

func TestMemory_InjectedFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	spec := configMapSpec("app", "v1")

	m.Fail(OpCreate, spec.ID, errors.New("connection refused"), 2)

	_, err := m.Create(ctx, spec)
	assert.True(t, IsTransient(err))
	_, err = m.Create(ctx, spec)
	assert.True(t, IsTransient(err))
	_, err = m.Create(ctx, spec)
	require.NoError(t, err)

	assert.Equal(t, []Call{
		{Op: OpCreate, ID: spec.ID},
		{Op: OpCreate, ID: spec.ID},
		{Op: OpCreate, ID: spec.ID},
	}, m.Calls())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().List(ctx, resource.KindConfigMap)

	assert.ErrorIs(t, err, context.Canceled)
}
