package feed

import (
	"context"
	"testing"

	"github.com/bryan-buckman/headlines/internal/feed/mocks"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func threePages(_ context.Context, req model.PageRequest) (model.Page, error) {
	if req.Index >= 3 {
		return model.Page{Index: req.Index, Items: []model.Article{}}, nil
	}
	return fullPage("it", req.Index), nil
}

func TestPages_WalksUntilEmptyPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().FetchPage(gomock.Any(), gomock.Any()).DoAndReturn(threePages).Times(9)

	seq := Pages(context.Background(), src, model.Filters{Category: "Health"}, 10)

	// Ranging twice restarts from the first page.
	for run := 0; run < 2; run++ {
		var indexes []int
		for page, err := range seq {
			require.NoError(t, err)
			indexes = append(indexes, page.Index)
		}
		assert.Equal(t, []int{0, 1, 2}, indexes)
	}

	// Breaking early stops fetching.
	for page, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, 0, page.Index)
		break
	}
}

func TestPages_StopsOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	gomock.InOrder(
		src.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(fullPage("e", 0), nil),
		src.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(model.Page{}, model.ErrNetwork),
	)

	var errs []error
	n := 0
	for page, err := range Pages(context.Background(), src, model.Filters{}, 0) {
		if err != nil {
			errs = append(errs, err)
			assert.Equal(t, 1, page.Index)
			continue
		}
		n++
	}
	assert.Equal(t, 1, n)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], model.ErrNetwork)
}

func TestPages_HonorsHasNext(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	last := fullPage("h", 0)
	last.HasNext = false
	src.EXPECT().FetchPage(gomock.Any(), model.PageRequest{Index: 0, Size: 10}).Return(last, nil)

	n := 0
	for range Pages(context.Background(), src, model.Filters{}, 10) {
		n++
	}
	assert.Equal(t, 1, n)
}
