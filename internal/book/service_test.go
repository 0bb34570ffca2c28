package book

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Content(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects negative page without touching the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := NewService(NewMockRepository(ctrl), nil)

		_, err := svc.Content(ctx, "1342", -3)
		assert.ErrorIs(t, err, ErrInvalidPage)
	})

	t.Run("no chunks is not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		repo.EXPECT().FindByExternalID(ctx, "1342").Return(Book{ID: "b1"}, nil)
		repo.EXPECT().FindChunks(ctx, "b1", AllPages).Return([]Chunk{}, nil)

		_, err := NewService(repo, nil).Content(ctx, "1342", AllPages)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("store errors pass through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		boom := errors.New("connection reset")
		repo.EXPECT().FindByExternalID(ctx, "1342").Return(Book{ID: "b1"}, nil)
		repo.EXPECT().FindChunks(ctx, "b1", 1).Return(nil, boom)

		_, err := NewService(repo, nil).Content(ctx, "1342", 1)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("returns chunks in order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		want := []Chunk{{BookID: "b1", Order: 1, Text: "a"}, {BookID: "b1", Order: 2, Text: "b"}}
		repo.EXPECT().FindByExternalID(ctx, "1342").Return(Book{ID: "b1"}, nil)
		repo.EXPECT().FindChunks(ctx, "b1", AllPages).Return(want, nil)

		got, err := NewService(repo, nil).Content(ctx, "1342", AllPages)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestRef_Validate(t *testing.T) {
	assert.NoError(t, Book{ID: "b1", ExternalID: "1342"}.Ref().Validate())
	assert.Error(t, Ref{ExternalID: "1342"}.Validate())
	assert.Error(t, Ref{ID: "b1", ExternalID: "  "}.Validate())
}
