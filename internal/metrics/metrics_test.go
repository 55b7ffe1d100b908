package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordFavoriteWrite(t *testing.T) {
	ok := FavoriteWritesTotal.WithLabelValues("add", "ok")
	failed := FavoriteWritesTotal.WithLabelValues("add", "error")
	beforeOK, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordFavoriteWrite("add", nil)
	RecordFavoriteWrite("add", errors.New("disk full"))

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(ok))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}

func TestRecordCache(t *testing.T) {
	hit := CacheLookupsTotal.WithLabelValues("hit")
	miss := CacheLookupsTotal.WithLabelValues("miss")
	beforeHit, beforeMiss := testutil.ToFloat64(hit), testutil.ToFloat64(miss)

	RecordCache(true)
	RecordCache(false)
	RecordCache(false)

	assert.Equal(t, beforeHit+1, testutil.ToFloat64(hit))
	assert.Equal(t, beforeMiss+2, testutil.ToFloat64(miss))
}

func TestRecordStale(t *testing.T) {
	before := testutil.ToFloat64(StaleResultsTotal)
	RecordStale()
	assert.Equal(t, before+1, testutil.ToFloat64(StaleResultsTotal))
}
