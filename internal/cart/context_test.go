package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("no store attached", func(t *testing.T) {
		c, err := FromContext(context.Background())
		require.ErrorIs(t, err, ErrNotInitialized)
		require.Nil(t, c)
	})

	t.Run("nil store attached", func(t *testing.T) {
		_, err := FromContext(NewContext(context.Background(), nil))
		require.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("active store", func(t *testing.T) {
		s := newTestStore(t, newFakeStorage())
		ctx := NewContext(context.Background(), s)

		c, err := FromContext(ctx)
		require.NoError(t, err)

		c.AddToCart(Product{ID: "A"})
		require.Equal(t, s.Items(), c.Items())
	})

	t.Run("closed store", func(t *testing.T) {
		s := New(newFakeStorage())
		require.NoError(t, s.Close(context.Background()))

		_, err := FromContext(NewContext(context.Background(), s))
		require.ErrorIs(t, err, ErrNotInitialized)
	})
}

func TestMustFromContextPanics(t *testing.T) {
	require.PanicsWithError(t, ErrNotInitialized.Error(), func() {
		MustFromContext(context.Background())
	})
}
