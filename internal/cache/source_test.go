package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryan-buckman/headlines/internal/feed/mocks"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func page(index int, titles ...string) model.Page {
	items := make([]model.Article, len(titles))
	for i, t := range titles {
		items[i] = model.Article{Title: t}
	}
	return model.Page{Index: index, Items: items, HasNext: len(items) > 0}
}

func TestSource_HitSkipsUpstream(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	req := model.PageRequest{Filters: model.Filters{Country: "us"}, Index: 0, Size: 10}
	src.EXPECT().FetchPage(gomock.Any(), req).Return(page(0, "a", "b"), nil).Times(1)

	c := New(src, 8, time.Minute)
	first, err := c.FetchPage(context.Background(), req)
	require.NoError(t, err)
	second, err := c.FetchPage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestSource_KeyIncludesFiltersAndPosition(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req model.PageRequest) (model.Page, error) {
			return page(req.Index, "x"), nil
		}).Times(3)

	c := New(src, 8, time.Minute)
	ctx := context.Background()
	for _, req := range []model.PageRequest{
		{Filters: model.Filters{Country: "us"}, Index: 0, Size: 10},
		{Filters: model.Filters{Country: "us"}, Index: 1, Size: 10},
		{Filters: model.Filters{Country: "gb"}, Index: 0, Size: 10},
		{Filters: model.Filters{Country: "United States"}, Index: 0, Size: 10},
	} {
		_, err := c.FetchPage(ctx, req)
		require.NoError(t, err)
	}
}

func TestSource_ErrorsAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	req := model.PageRequest{Index: 0, Size: 10}
	gomock.InOrder(
		src.EXPECT().FetchPage(gomock.Any(), req).Return(model.Page{}, model.ErrNetwork),
		src.EXPECT().FetchPage(gomock.Any(), req).Return(page(0, "ok"), nil),
	)

	c := New(src, 8, time.Minute)
	_, err := c.FetchPage(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrNetwork)

	got, err := c.FetchPage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Items[0].Title)
}

func TestSource_EntriesExpire(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	req := model.PageRequest{Index: 0, Size: 10}
	src.EXPECT().FetchPage(gomock.Any(), req).Return(page(0, "a"), nil).Times(2)

	c := New(src, 8, 20*time.Millisecond)
	_, err := c.FetchPage(context.Background(), req)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.FetchPage(context.Background(), req)
	require.NoError(t, err)
}

func TestSource_ConcurrentCallsShareOneLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	release := make(chan struct{})
	req := model.PageRequest{Filters: model.Filters{Query: "go"}, Index: 0, Size: 10}
	src.EXPECT().FetchPage(gomock.Any(), req).
		DoAndReturn(func(context.Context, model.PageRequest) (model.Page, error) {
			<-release
			return page(0, "shared"), nil
		}).Times(1)

	c := New(src, 8, time.Minute)
	var wg sync.WaitGroup
	results := make([]model.Page, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.FetchPage(context.Background(), req)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, p := range results {
		assert.Equal(t, "shared", p.Items[0].Title)
	}
}

func TestSource_CanceledCallerDoesNotPoisonOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	release := make(chan struct{})
	req := model.PageRequest{Index: 0, Size: 10}
	src.EXPECT().FetchPage(gomock.Any(), req).
		DoAndReturn(func(ctx context.Context, _ model.PageRequest) (model.Page, error) {
			<-release
			if ctx.Err() != nil {
				return model.Page{}, ctx.Err()
			}
			return page(0, "fresh"), nil
		}).Times(1)

	c := New(src, 8, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.FetchPage(ctx, req)
		leaderDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	followerDone := make(chan model.Page, 1)
	go func() {
		p, err := c.FetchPage(context.Background(), req)
		assert.NoError(t, err)
		followerDone <- p
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-leaderDone, context.Canceled))

	close(release)
	p := <-followerDone
	assert.Equal(t, "fresh", p.Items[0].Title)
}

func TestSource_ReturnedItemsAreCopies(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	req := model.PageRequest{Index: 0, Size: 10}
	src.EXPECT().FetchPage(gomock.Any(), req).Return(page(0, "orig"), nil)

	c := New(src, 8, time.Minute)
	p, err := c.FetchPage(context.Background(), req)
	require.NoError(t, err)
	p.Items[0].Title = "mutated"

	again, err := c.FetchPage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "orig", again.Items[0].Title)
}

func TestSource_FreshFirstPageDropsLaterPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	var calls sync.Map
	src.EXPECT().FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req model.PageRequest) (model.Page, error) {
			n, _ := calls.LoadOrStore(req, new(int))
			*n.(*int)++
			return page(req.Index, "x"), nil
		}).AnyTimes()

	c := New(src, 3, time.Minute)
	ctx := context.Background()
	fetch := func(country string, index int) {
		t.Helper()
		_, err := c.FetchPage(ctx, model.PageRequest{Filters: model.Filters{Country: country}, Index: index, Size: 10})
		require.NoError(t, err)
	}
	count := func(country string, index int) int {
		n, ok := calls.Load(model.PageRequest{Filters: model.Filters{Country: country}, Index: index, Size: 10})
		if !ok {
			return 0
		}
		return *n.(*int)
	}

	fetch("us", 0)
	fetch("us", 1)
	fetch("gb", 0)
	fetch("us", 1) // hit; leaves "us" page 0 as the oldest entry
	fetch("de", 0) // evicts "us" page 0
	require.Equal(t, 1, count("us", 1))

	fetch("us", 0)
	fetch("us", 1)
	assert.Equal(t, 2, count("us", 0))
	assert.Equal(t, 2, count("us", 1), "page 1 must come from the same download as page 0")
}

func TestSource_LaterPageFromOldListIsNotKept(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	release := make(chan struct{})
	first := model.PageRequest{Index: 0, Size: 10}
	second := model.PageRequest{Index: 1, Size: 10}

	var once sync.Once
	src.EXPECT().FetchPage(gomock.Any(), second).
		DoAndReturn(func(context.Context, model.PageRequest) (model.Page, error) {
			once.Do(func() { <-release })
			return page(1, "old"), nil
		}).Times(2)
	src.EXPECT().FetchPage(gomock.Any(), first).Return(page(0, "new"), nil).Times(1)

	c := New(src, 8, time.Minute)
	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.FetchPage(ctx, second)
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := c.FetchPage(ctx, first)
	require.NoError(t, err)
	close(release)
	<-done

	_, err = c.FetchPage(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}
