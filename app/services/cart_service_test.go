package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
)

const owner = "65f0c0ffee0000000000aaaa"

func TestAddCountsEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Roble")

	e1, n, err := f.cart.Add(ctx, owner, p.ID.Hex(), map[string]any{"Cantidad": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEmpty(t, e1.EntryID)

	e2, n, err := f.cart.Add(ctx, owner, p.ID.Hex(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEqual(t, e1.EntryID, e2.EntryID)
	assert.Equal(t, map[string]any{}, e2.Form)

	_, n, err = f.cart.Add(ctx, "someone-else", p.ID.Hex(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "carts are per owner")
}

func TestAddRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Roble")

	_, _, err := f.cart.Add(ctx, "", p.ID.Hex(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, _, err = f.cart.Add(ctx, owner, "xyz", nil)
	assert.ErrorIs(t, err, models.ErrInvalidID)
	_, _, err = f.cart.Add(ctx, owner, "65f0c0ffee0000000000abcd", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListWithProductDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "Roble")
	b := f.product(t, "Cedro")

	_, _, err := f.cart.Add(ctx, owner, a.ID.Hex(), map[string]any{"Cantidad": 1})
	require.NoError(t, err)
	_, _, err = f.cart.Add(ctx, owner, b.ID.Hex(), map[string]any{"Cantidad": 4})
	require.NoError(t, err)
	require.NoError(t, f.store.Products().Delete(ctx, b.ID))

	lines, err := f.cart.ListWithProductDetails(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "Roble", lines[0].Model)
	require.NotNil(t, lines[0].Image)
	assert.Equal(t, models.DataURI("Um9ibGUtcHJpbWFyeQ=="), *lines[0].Image)

	assert.Equal(t, models.UnknownModel, lines[1].Model)
	assert.Nil(t, lines[1].Image)
	assert.Equal(t, map[string]any{"Cantidad": 4}, lines[1].Form)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Roble")

	byToken, _, err := f.cart.Add(ctx, owner, p.ID.Hex(), nil)
	require.NoError(t, err)
	byRow, _, err := f.cart.Add(ctx, owner, p.ID.Hex(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, f.cart.Remove(ctx, "intruder", byToken.EntryID), models.ErrNotFound)

	require.NoError(t, f.cart.Remove(ctx, owner, byToken.EntryID))
	require.NoError(t, f.cart.Remove(ctx, owner, byRow.ID.Hex()))
	assert.ErrorIs(t, f.cart.Remove(ctx, owner, byRow.ID.Hex()), models.ErrNotFound)

	n, err := f.cart.Count(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, n)
}
