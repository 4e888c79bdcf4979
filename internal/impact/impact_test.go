package impact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contracttape/internal/match"
)

func bucketOf(bucket match.Bucket, kinds ...match.Kind) match.ErrorBucket {
	var c match.Collector
	for _, k := range kinds {
		c.Add(bucket, match.DiffError{Kind: k})
	}
	return c.Drain()
}

func TestClassify_Empty(t *testing.T) {
	assert.Equal(t, None, Classify(match.ErrorBucket{}))
}

func TestClassify_Rules(t *testing.T) {
	tests := []struct {
		bucket match.Bucket
		kind   match.Kind
		want   Level
	}{
		{match.BucketRemoved, match.KindResponse, Major},
		{match.BucketChanged, match.KindResponse, Major},
		{match.BucketChanged, match.KindStatus, Major},
		{match.BucketRemoved, match.KindResponseHeader, Major},
		{match.BucketChanged, match.KindResponseHeader, Major},
		{match.BucketAdded, match.KindLength, Major},
		{match.BucketRemoved, match.KindLength, Major},

		{match.BucketAdded, match.KindResponse, Minor},
		{match.BucketAdded, match.KindResponseHeader, Minor},

		{match.BucketChanged, match.KindRequestHeader, Patch},
		{match.BucketAdded, match.KindRequestHeader, Patch},
		{match.BucketChanged, match.KindRequestBody, Patch},
		{match.BucketChanged, match.KindMethod, Patch},
		{match.BucketChanged, match.KindPath, Patch},
		{match.BucketChanged, match.KindBaseURL, Patch},
		{match.BucketChanged, match.Kind("SOMETHING_NEW"), Patch},
	}

	for _, tt := range tests {
		t.Run(string(tt.bucket)+"/"+string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(bucketOf(tt.bucket, tt.kind)))
		})
	}
}

func TestClassify_Scenarios(t *testing.T) {
	// old has one interaction, new has none
	b := match.ErrorBucket{Removed: []match.DiffError{{Kind: match.KindLength, Index: -1, Old: "1", New: "0"}}}
	assert.Equal(t, Major, Classify(b))

	// response gained a field
	b = match.ErrorBucket{Added: []match.DiffError{{Kind: match.KindResponse}}}
	assert.Equal(t, Minor, Classify(b))

	// request content-type changed
	b = match.ErrorBucket{Changed: []match.DiffError{{Kind: match.KindRequestHeader, Header: "content-type", Old: "text/plain", New: "application/json"}}}
	assert.Equal(t, Patch, Classify(b))

	// status 200 -> 404
	b = match.ErrorBucket{Changed: []match.DiffError{{Kind: match.KindStatus, Old: "200", New: "404"}}}
	assert.Equal(t, Major, Classify(b))
}

func TestClassify_Monotonic(t *testing.T) {
	allBuckets := []match.Bucket{match.BucketAdded, match.BucketRemoved, match.BucketChanged}

	// Grow a bucket one finding at a time over every (bucket, kind) pair, in
	// several orders, and check the level never drops.
	orders := [][]match.Kind{
		match.Kinds,
		reversed(match.Kinds),
		{match.KindRequestBody, match.KindResponse, match.KindMethod, match.KindLength},
	}

	for _, kinds := range orders {
		for _, start := range allBuckets {
			var b match.ErrorBucket
			prev := None
			for _, kind := range kinds {
				for _, bucket := range append([]match.Bucket{start}, allBuckets...) {
					e := match.DiffError{Kind: kind}
					switch bucket {
					case match.BucketAdded:
						b.Added = append(b.Added, e)
					case match.BucketRemoved:
						b.Removed = append(b.Removed, e)
					default:
						b.Changed = append(b.Changed, e)
					}

					level := Classify(b)
					require.GreaterOrEqual(t, level, prev, "adding %s %s", bucket, kind)
					prev = level
				}
			}
			assert.Equal(t, Major, prev)
		}
	}
}

func reversed(kinds []match.Kind) []match.Kind {
	out := make([]match.Kind, len(kinds))
	for i, k := range kinds {
		out[len(kinds)-1-i] = k
	}
	return out
}

func TestReasons(t *testing.T) {
	b := match.ErrorBucket{
		Added: []match.DiffError{
			{Kind: match.KindResponse, Index: 0},
			{Kind: match.KindResponse, Index: 1},
		},
		Changed: []match.DiffError{
			{Kind: match.KindRequestHeader},
			{Kind: match.KindStatus},
		},
	}

	assert.Equal(t, []Reason{
		{Level: Major, Bucket: match.BucketChanged, Kind: match.KindStatus},
		{Level: Minor, Bucket: match.BucketAdded, Kind: match.KindResponse},
		{Level: Patch, Bucket: match.BucketChanged, Kind: match.KindRequestHeader},
	}, Reasons(b))

	assert.Empty(t, Reasons(match.ErrorBucket{}))
}

func TestLevel_Ordering(t *testing.T) {
	assert.Less(t, None, Patch)
	assert.Less(t, Patch, Minor)
	assert.Less(t, Minor, Major)
}

func TestLevel_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Level{"impact": Minor})
	require.NoError(t, err)
	assert.JSONEq(t, `{"impact":"minor"}`, string(data))

	var got struct {
		Impact Level `json:"impact"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"impact":"MAJOR"}`), &got))
	assert.Equal(t, Major, got.Impact)

	assert.Error(t, json.Unmarshal([]byte(`{"impact":"huge"}`), &got))
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{None, Patch, Minor, Major} {
		parsed, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	assert.Equal(t, "Level(9)", Level(9).String())
}
