package versioning

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/szhorvath/s3plus/pkg/storage/memory"
	"github.com/szhorvath/s3plus/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	prometheusgo "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "versioned-bucket"

// =============================================================================
// Test Helpers
// =============================================================================

func newTestController(t *testing.T, cfg Config, opts ...Option) (*Controller, *memory.Store) {
	t.Helper()
	if cfg.Bucket == "" {
		cfg.Bucket = testBucket
	}

	store := memory.NewStore([]string{cfg.Bucket})
	c, err := NewController(store, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, c.EnableVersioning(context.Background()))
	return c, store
}

func uniqueKey(prefix string) string {
	return prefix + "-" + uuid.NewString() + ".txt"
}

func write(t *testing.T, c *Controller, path, data string) string {
	t.Helper()
	versionID, ok, err := c.Write(context.Background(), path, strings.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, versionID)
	return versionID
}

func versions(t *testing.T, c *Controller, path string) []types.VersionEntry {
	t.Helper()
	entries, err := c.Versions(context.Background(), path)
	require.NoError(t, err)
	return entries
}

// assertHistory checks ordering and the single-latest invariant
func assertHistory(t *testing.T, entries []types.VersionEntry) {
	t.Helper()
	latest := 0
	for i, e := range entries {
		if e.IsLatest {
			latest++
		}
		if i > 0 {
			assert.False(t, e.UpdatedAt.After(entries[i-1].UpdatedAt), "entries must be newest first")
		}
	}
	if len(entries) > 0 {
		assert.Equal(t, 1, latest, "exactly one entry must be latest")
		assert.True(t, entries[0].IsLatest, "newest entry must be latest")
	}
}

// trackingAPI records whether streamed bodies were closed
type trackingAPI struct {
	*memory.Store
	closed atomic.Int32
}

type trackedBody struct {
	io.ReadCloser
	api *trackingAPI
}

func (b *trackedBody) Close() error {
	b.api.closed.Add(1)
	return b.ReadCloser.Close()
}

func (a *trackingAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	out, err := a.Store.GetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	out.Body = &trackedBody{ReadCloser: out.Body, api: a}
	return out, nil
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewController_Validation(t *testing.T) {
	t.Parallel()

	store := memory.NewStore([]string{testBucket})

	_, err := NewController(nil, Config{Bucket: testBucket})
	assert.Error(t, err)

	_, err = NewController(store, Config{})
	assert.ErrorContains(t, err, "bucket required")

	_, err = NewController(store, Config{Bucket: testBucket, Policy: FailurePolicy(7)})
	assert.ErrorContains(t, err, "unknown failure policy")

	_, err = NewController(store, Config{Bucket: testBucket, DeleteConcurrency: -1})
	assert.Error(t, err)

	c, err := NewController(store, Config{Bucket: testBucket, Root: "uploads/"})
	require.NoError(t, err)
	assert.Equal(t, testBucket, c.Bucket())
	assert.Equal(t, "uploads/", c.Prefixer().Prefix())
	assert.Equal(t, PolicyPropagate, c.Policy())
}

func TestPolicyFromThrow(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PolicyPropagate, PolicyFromThrow(true))
	assert.Equal(t, PolicySuppress, PolicyFromThrow(false))
	assert.Equal(t, "suppress", PolicySuppress.String())
}

// =============================================================================
// Read / Write Tests
// =============================================================================

func TestController_RoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("roundtrip")
	content := "hello\x00world\n"

	write(t, c, key, content)

	data, err := c.Get(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, []byte(content), data)
}

func TestController_WriteNonSeekable(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("multi")

	body := io.MultiReader(strings.NewReader("part1-"), strings.NewReader("part2"))
	_, ok, err := c.Write(context.Background(), key, body, -1)
	require.NoError(t, err)
	require.True(t, ok)

	data, err := c.Get(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, "part1-part2", string(data))
}

func TestController_WriteFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota exceeded")

	t.Run("propagate", func(t *testing.T) {
		t.Parallel()
		c, store := newTestController(t, Config{Policy: PolicyPropagate})
		store.Fail(memory.OpPutObject, "", boom)

		versionID, ok, err := c.Write(context.Background(), "w.txt", strings.NewReader("data"), 4)
		assert.False(t, ok)
		assert.Empty(t, versionID)
		assert.ErrorIs(t, err, ErrWriteFailed)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("suppress reports not ok", func(t *testing.T) {
		t.Parallel()
		c, store := newTestController(t, Config{Policy: PolicySuppress})
		store.Fail(memory.OpPutObject, "", boom)

		versionID, ok, err := c.Write(context.Background(), "w.txt", strings.NewReader("data"), 4)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, versionID)
	})
}

func TestController_GetPinnedVersion(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("pinned")

	v1 := write(t, c, key, "first")
	v2 := write(t, c, key, "second")

	latest, err := c.Get(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, "second", string(latest))

	old, err := c.Get(context.Background(), key, v1)
	require.NoError(t, err)
	assert.Equal(t, "first", string(old))

	pinned, err := c.Get(context.Background(), key, v2)
	require.NoError(t, err)
	assert.Equal(t, "second", string(pinned))
}

func TestController_GetMissingVersion(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("missing")
	write(t, c, key, "data")

	_, err := c.Get(context.Background(), key, "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.True(t, IsNotFound(err))

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, key, verr.Key)
	assert.Equal(t, "does-not-exist", verr.VersionID)
}

func TestController_ReadBuffered(t *testing.T) {
	t.Parallel()

	store := memory.NewStore([]string{testBucket})
	api := &trackingAPI{Store: store}
	c, err := NewController(api, Config{Bucket: testBucket})
	require.NoError(t, err)
	require.NoError(t, c.EnableVersioning(context.Background()))
	write(t, c, "buffered.txt", "buffered")

	rc, err := c.Read(context.Background(), "buffered.txt", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.closed.Load(), "buffered reads release the body before returning")

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "buffered", string(data))
	require.NoError(t, rc.Close())
}

func TestController_ReadStreamReleasesOnEOF(t *testing.T) {
	t.Parallel()

	store := memory.NewStore([]string{testBucket})
	api := &trackingAPI{Store: store}
	c, err := NewController(api, Config{Bucket: testBucket, StreamReads: true})
	require.NoError(t, err)
	require.NoError(t, c.EnableVersioning(context.Background()))
	write(t, c, "stream.txt", "streamed content")

	rc, err := c.Read(context.Background(), "stream.txt", "")
	require.NoError(t, err)
	assert.Equal(t, int32(0), api.closed.Load(), "stream stays open until consumed")

	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	assert.Equal(t, "streamed content", buf.String())
	assert.Equal(t, int32(1), api.closed.Load())

	// Close after release is a no-op
	require.NoError(t, rc.Close())
	assert.Equal(t, int32(1), api.closed.Load())
}

func TestController_ReadStreamReleasesOnClose(t *testing.T) {
	t.Parallel()

	store := memory.NewStore([]string{testBucket})
	api := &trackingAPI{Store: store}
	c, err := NewController(api, Config{Bucket: testBucket, StreamReads: true})
	require.NoError(t, err)
	require.NoError(t, c.EnableVersioning(context.Background()))
	write(t, c, "partial.txt", "0123456789")

	rc, err := c.Read(context.Background(), "partial.txt", "")
	require.NoError(t, err)

	p := make([]byte, 3)
	_, err = rc.Read(p)
	require.NoError(t, err)

	require.NoError(t, rc.Close())
	assert.Equal(t, int32(1), api.closed.Load())
}

func TestController_Exists(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("exists")

	ok, err := c.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)

	write(t, c, key, "x")
	ok, err = c.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Delete(context.Background(), Key(key))
	require.NoError(t, err)
	ok, err = c.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestController_ExistsStoreFailure(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, Config{})
	store.Fail(memory.OpHeadObject, "", errors.New("timeout"))

	_, err := c.Exists(context.Background(), "k")
	assert.ErrorIs(t, err, ErrReadFailed)
}

// =============================================================================
// Versions Tests
// =============================================================================

func TestController_VersionsTwoPuts(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("two-puts")

	v1 := write(t, c, key, "DataVersion1")
	v2 := write(t, c, key, "DataVersionTwo")

	entries := versions(t, c, key)
	require.Len(t, entries, 2)
	assertHistory(t, entries)

	assert.Equal(t, v2, entries[0].VersionID)
	assert.True(t, entries[0].IsLatest)
	assert.Equal(t, int64(len("DataVersionTwo")), entries[0].Size)
	assert.Equal(t, types.KindFile, entries[0].Kind)

	assert.Equal(t, v1, entries[1].VersionID)
	assert.False(t, entries[1].IsLatest)
	assert.Equal(t, int64(len("DataVersion1")), entries[1].Size)

	for _, e := range entries {
		assert.Equal(t, key, e.Key)
		assert.NotContains(t, e.ContentHash, `"`)
		assert.Len(t, e.ContentHash, 32)
	}
}

func TestController_VersionsPutsAndDeletes(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("mixed")

	const puts, deletes = 4, 3
	for i := 0; i < puts; i++ {
		write(t, c, key, strings.Repeat("x", i+1))
		if i < deletes {
			ok, err := c.Delete(context.Background(), Key(key))
			require.NoError(t, err)
			require.True(t, ok)
		}
		assertHistory(t, versions(t, c, key))
	}

	entries := versions(t, c, key)
	require.Len(t, entries, puts+deletes)
	assert.Equal(t, puts, types.CountKind(entries, types.KindFile))
	assert.Equal(t, deletes, types.CountKind(entries, types.KindDeleteMarker))
	assert.Equal(t, types.StatePresent, types.State(entries))

	for _, e := range entries {
		if e.IsDeleteMarker() {
			assert.Zero(t, e.Size)
			assert.Empty(t, e.ContentHash)
		}
	}
}

func TestController_VersionsWithRoot(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{Root: "tenant-a"})
	write(t, c, "/docs/report.pdf", "pdf")

	entries := versions(t, c, "docs/report.pdf")
	require.Len(t, entries, 1)
	assert.Equal(t, "tenant-a/docs/report.pdf", entries[0].Key)
	assert.Equal(t, "docs/report.pdf", c.Prefixer().StripPrefix(entries[0].Key))
}

func TestController_VersionsIgnoresSiblings(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	write(t, c, "a.txt", "a")
	write(t, c, "a.txt.bak", "b")

	assert.Len(t, versions(t, c, "a.txt"), 1)
}

func TestController_VersionsPaginates(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, Config{}, WithHistoryPageSize(2))
	key := uniqueKey("paged")
	for i := 0; i < 5; i++ {
		write(t, c, key, "v")
	}

	before := store.Calls(memory.OpListObjectVersions)
	entries := versions(t, c, key)
	assert.Len(t, entries, 5)
	assertHistory(t, entries)
	assert.Equal(t, 3, store.Calls(memory.OpListObjectVersions)-before)
}

func TestController_VersionsNeverWritten(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	entries := versions(t, c, "nothing-here")
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Equal(t, types.StateAbsent, types.State(entries))
}

func TestController_VersionsFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("access denied")

	t.Run("propagate", func(t *testing.T) {
		t.Parallel()
		c, store := newTestController(t, Config{Policy: PolicyPropagate})
		store.Fail(memory.OpListObjectVersions, "", boom)

		_, err := c.Versions(context.Background(), "k")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVersionListingFailed)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "unable to retrieve the versions for file at location: k")
	})

	t.Run("suppress", func(t *testing.T) {
		t.Parallel()
		c, store := newTestController(t, Config{Policy: PolicySuppress})
		store.Fail(memory.OpListObjectVersions, "", boom)

		entries, err := c.Versions(context.Background(), "k")
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

// =============================================================================
// Soft Delete Tests
// =============================================================================

func TestController_SoftDelete(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("soft")
	v1 := write(t, c, key, "data")

	before := versions(t, c, key)
	ok, err := c.Delete(context.Background(), Key(key))
	require.NoError(t, err)
	assert.True(t, ok)

	after := versions(t, c, key)
	require.Len(t, after, len(before)+1)
	assertHistory(t, after)
	assert.True(t, after[0].IsDeleteMarker())
	assert.True(t, after[0].IsLatest)
	assert.Equal(t, types.StateAbsent, types.State(after))

	// Prior versions are untouched
	assert.Equal(t, before[0].VersionID, after[1].VersionID)
	assert.Equal(t, before[0].ContentHash, after[1].ContentHash)

	_, err = c.Get(context.Background(), key, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadFailed)

	data, err := c.Get(context.Background(), key, v1)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func counterValue(c prometheus.Counter) float64 {
	var m prometheusgo.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return 0
}

func TestController_GetDeletedSuppressed(t *testing.T) {
	c, _ := newTestController(t, Config{Policy: PolicySuppress})
	key := uniqueKey("suppressed")
	write(t, c, key, "data")
	_, err := c.Delete(context.Background(), Key(key))
	require.NoError(t, err)

	before := counterValue(suppressedTotal.WithLabelValues(opGet))

	data, err := c.Get(context.Background(), key, "")
	assert.NoError(t, err)
	assert.Nil(t, data)

	rc, err := c.Read(context.Background(), key, "")
	assert.NoError(t, err)
	assert.Nil(t, rc)

	assert.GreaterOrEqual(t, counterValue(suppressedTotal.WithLabelValues(opGet))-before, float64(2))
}

// =============================================================================
// Permanent Delete Tests
// =============================================================================

func TestController_PermanentDelete(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("permanent")
	v1 := write(t, c, key, "one")
	v2 := write(t, c, key, "two")

	ok, err := c.Delete(context.Background(), Versions(map[string]string{v2: key}))
	require.NoError(t, err)
	assert.True(t, ok)

	entries := versions(t, c, key)
	require.Len(t, entries, 1)
	assert.Equal(t, v1, entries[0].VersionID)
	assertHistory(t, entries)

	// The next entry became latest
	data, err := c.Get(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	_, err = c.Get(context.Background(), key, v2)
	assert.ErrorIs(t, err, ErrReadFailed)
}

func TestController_PermanentDeleteOfMarkerUndeletes(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("unmark")
	write(t, c, key, "keep")

	report := c.DeleteAll(context.Background(), Key(key))
	require.True(t, report.Succeeded())
	marker := report.Outcomes[0]
	require.True(t, marker.DeleteMarker)

	ok, err := c.Delete(context.Background(), Versions(map[string]string{marker.VersionID: key}))
	require.NoError(t, err)
	require.True(t, ok)

	entries := versions(t, c, key)
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatePresent, types.State(entries))
}

func TestController_PermanentDeleteLastVersion(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("last")
	v1 := write(t, c, key, "only")

	ok, err := c.Delete(context.Background(), Versions(map[string]string{v1: key}))
	require.NoError(t, err)
	require.True(t, ok)

	entries := versions(t, c, key)
	assert.Empty(t, entries)
	assert.Equal(t, types.StateAbsent, types.State(entries))
}

// =============================================================================
// Restore Tests
// =============================================================================

func TestController_RestoreOverwritten(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("restore")
	v1 := write(t, c, key, "original")
	write(t, c, key, "overwritten")

	before := versions(t, c, key)
	ok, err := c.Restore(context.Background(), key, v1)
	require.NoError(t, err)
	assert.True(t, ok)

	after := versions(t, c, key)
	require.Len(t, after, len(before)+1)
	assertHistory(t, after)

	// Restored content is duplicated as a new latest version
	assert.NotEqual(t, v1, after[0].VersionID)
	assert.Equal(t, before[1].ContentHash, after[0].ContentHash)
	assert.Equal(t, v1, after[len(after)-1].VersionID)

	data, err := c.Get(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestController_RestoreDeleted(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{})
	key := uniqueKey("undelete")
	v1 := write(t, c, key, "payload")

	_, err := c.Delete(context.Background(), Key(key))
	require.NoError(t, err)
	require.Equal(t, types.StateAbsent, types.State(versions(t, c, key)))

	ok, err := c.Restore(context.Background(), key, v1)
	require.NoError(t, err)
	assert.True(t, ok)

	entries := versions(t, c, key)
	require.Len(t, entries, 3)
	assertHistory(t, entries)
	assert.Equal(t, types.StatePresent, types.State(entries))
	assert.Equal(t, 1, types.CountKind(entries, types.KindDeleteMarker), "the marker stays in history")

	data, err := c.Get(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestController_RestoreWithRootAndSpaces(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, Config{Root: "root dir"})
	key := "sub dir/file name+1.txt"
	v1 := write(t, c, key, "a")
	write(t, c, key, "b")

	ok, err := c.Restore(context.Background(), key, v1)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := c.Get(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestController_RestoreFailure(t *testing.T) {
	t.Parallel()

	t.Run("unknown version", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestController(t, Config{})
		key := uniqueKey("bad-restore")
		write(t, c, key, "a")

		ok, err := c.Restore(context.Background(), key, "nope")
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrRestoreFailed)
		assert.Len(t, versions(t, c, key), 1, "failed restore leaves history alone")
	})

	t.Run("empty version", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestController(t, Config{})

		ok, err := c.Restore(context.Background(), "k", "")
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrRestoreFailed)
		assert.ErrorIs(t, err, errVersionRequired)
	})

	t.Run("suppress", func(t *testing.T) {
		t.Parallel()
		c, store := newTestController(t, Config{Policy: PolicySuppress})
		store.Fail(memory.OpCopyObject, "", errors.New("boom"))

		ok, err := c.Restore(context.Background(), "k", "v")
		assert.False(t, ok)
		assert.NoError(t, err)
	})
}

// =============================================================================
// Bucket Versioning Tests
// =============================================================================

func TestController_BucketVersioning(t *testing.T) {
	t.Parallel()

	store := memory.NewStore([]string{testBucket})
	c, err := NewController(store, Config{Bucket: testBucket})
	require.NoError(t, err)

	status, err := c.VersioningStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VersioningDisabled, status)

	require.NoError(t, c.EnableVersioning(context.Background()))
	status, err = c.VersioningStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VersioningEnabled, status)

	require.NoError(t, c.SuspendVersioning(context.Background()))
	status, err = c.VersioningStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VersioningSuspended, status)

	store.Fail(memory.OpGetBucketVersioning, "", errors.New("denied"))
	_, err = c.VersioningStatus(context.Background())
	assert.ErrorIs(t, err, ErrBucketConfigFailed)
}
