package feed

import (
	"context"
	"iter"

	"github.com/bryan-buckman/headlines/internal/model"
)

// Pages lazily walks a feed from page 0 until the source reports no further
// pages or fails. Each range over the sequence fetches from the first page
// again; nothing is cached between iterations.
func Pages(ctx context.Context, src Source, filters model.Filters, size int) iter.Seq2[model.Page, error] {
	if size <= 0 {
		size = model.DefaultPageSize
	}
	filters = filters.Normalize()
	return func(yield func(model.Page, error) bool) {
		for index := model.FirstPageIndex; ; index++ {
			page, err := src.FetchPage(ctx, model.PageRequest{Filters: filters, Index: index, Size: size})
			if err != nil {
				yield(model.Page{Index: index}, err)
				return
			}
			if len(page.Items) == 0 {
				return
			}
			if !yield(page, nil) || !page.HasNext {
				return
			}
		}
	}
}
