package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raine/wardrobe/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	name        string
	AnalyzeFunc func(ctx context.Context, img Image) (*ProviderResult, error)

	mu    sync.Mutex
	calls int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Analyze(ctx context.Context, img Image) (*ProviderResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.AnalyzeFunc(ctx, img)
}

func (m *mockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func succeeding(name string, tags ...string) *mockProvider {
	return &mockProvider{
		name: name,
		AnalyzeFunc: func(ctx context.Context, img Image) (*ProviderResult, error) {
			return &ProviderResult{Tags: tags}, nil
		},
	}
}

func failing(name string) *mockProvider {
	return &mockProvider{
		name: name,
		AnalyzeFunc: func(ctx context.Context, img Image) (*ProviderResult, error) {
			return nil, providerErr(name, KindUnavailable, errors.New("offline"))
		},
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newCache(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testImage = Image{
	Name:     "blue-shirt.jpg",
	Size:     1234,
	ModTime:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	MIMEType: "image/jpeg",
	Data:     []byte("jpeg"),
}

func TestFingerprint(t *testing.T) {
	mod := time.UnixMilli(1700000000123)
	assert.Equal(t, "a.jpg-10-1700000000123", Fingerprint("a.jpg", 10, mod))
	assert.NotEqual(t, Fingerprint("a.jpg", 10, mod), Fingerprint("a.jpg", 11, mod))
	assert.NotEqual(t, Fingerprint("a.jpg", 10, mod), Fingerprint("a.jpg", 10, mod.Add(time.Millisecond)))
}

func TestReconciler_SecondCallWithinTTLUsesCache(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)}
	gemini := succeeding("gemini", "Blue cotton t-shirt", "casual")
	finder := succeeding("clothes-finder", "t-shirt")
	r := NewReconciler(newCache(t), []Provider{gemini, finder}, WithClock(clock.Now))

	first, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)
	assert.False(t, first.Cached)

	clock.t = clock.t.Add(23 * time.Hour)
	second, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)
	assert.True(t, second.Cached)

	firstJSON, err := json.Marshal(first.Providers)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.Providers)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	assert.Equal(t, 1, gemini.Calls())
	assert.Equal(t, 1, finder.Calls())
}

func TestReconciler_ExpiredEntryReinvokesProviders(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)}
	gemini := succeeding("gemini", "Red dress")
	finder := succeeding("clothes-finder", "dress")
	r := NewReconciler(newCache(t), []Provider{gemini, finder}, WithClock(clock.Now))

	_, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)

	clock.t = clock.t.Add(24*time.Hour + time.Second)
	again, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)
	assert.False(t, again.Cached)

	assert.Equal(t, 2, gemini.Calls())
	assert.Equal(t, 2, finder.Calls())
}

func TestReconciler_CustomTTL(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	gemini := succeeding("gemini", "Red dress")
	r := NewReconciler(newCache(t), []Provider{gemini}, WithClock(clock.Now), WithTTL(time.Minute))

	r.Analyze(context.Background(), testImage)
	clock.t = clock.t.Add(2 * time.Minute)
	r.Analyze(context.Background(), testImage)

	assert.Equal(t, 2, gemini.Calls())
}

func TestReconciler_PartialFailureKeepsEveryKey(t *testing.T) {
	cache := newCache(t)
	r := NewReconciler(cache, []Provider{succeeding("gemini", "Black leather jacket"), failing("openai")})

	analysis, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)
	require.Contains(t, analysis.Providers, "openai")
	assert.NotNil(t, analysis.Providers["openai"].Tags)
	assert.Empty(t, analysis.Providers["openai"].Tags)
	assert.Equal(t, []string{"Black leather jacket"}, analysis.Tags())

	raw, err := json.Marshal(analysis.Providers)
	require.NoError(t, err)
	assert.JSONEq(t, `{"gemini":{"tags":["Black leather jacket"],"labels":[]},"openai":{"tags":[],"labels":[]}}`, string(raw))

	entry, err := cache.GetAnalysis(Fingerprint(testImage.Name, testImage.Size, testImage.ModTime))
	require.NoError(t, err)
	require.NotNil(t, entry, "partial results are cached")
	assert.JSONEq(t, string(raw), string(entry.Result))
}

func TestReconciler_TotalFailure(t *testing.T) {
	cache := newCache(t)
	r := NewReconciler(cache, []Provider{failing("gemini"), failing("openai")})

	analysis, ok := r.Analyze(context.Background(), testImage)
	assert.False(t, ok)
	assert.Nil(t, analysis)

	entry, err := cache.GetAnalysis(Fingerprint(testImage.Name, testImage.Size, testImage.ModTime))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestReconciler_PanickingProviderIsAFailure(t *testing.T) {
	panicking := &mockProvider{
		name: "openai",
		AnalyzeFunc: func(ctx context.Context, img Image) (*ProviderResult, error) {
			panic("nil response")
		},
	}
	r := NewReconciler(nil, []Provider{succeeding("gemini", "Red dress"), panicking})

	analysis, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)
	assert.Empty(t, analysis.Providers["openai"].Tags)
	assert.Equal(t, []string{"Red dress"}, analysis.Tags())
}

func TestReconciler_WaitsForSlowProviders(t *testing.T) {
	slow := &mockProvider{
		name: "slow",
		AnalyzeFunc: func(ctx context.Context, img Image) (*ProviderResult, error) {
			time.Sleep(20 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &ProviderResult{Tags: []string{"wool coat"}, Labels: []string{"coat"}}, nil
		},
	}
	r := NewReconciler(nil, []Provider{failing("fast"), slow})

	analysis, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)
	assert.Equal(t, []string{"wool coat"}, analysis.Providers["slow"].Tags)
	assert.Equal(t, []string{"coat"}, analysis.Labels())
	assert.Equal(t, []string{"fast", "slow"}, r.Providers())
}

func TestReconciler_UnreadableCacheEntryIsAMiss(t *testing.T) {
	cache := newCache(t)
	key := Fingerprint(testImage.Name, testImage.Size, testImage.ModTime)
	require.NoError(t, cache.PutAnalysis(key, &storage.AnalysisCacheEntry{CreatedAt: time.Now(), Result: json.RawMessage(`not json`)}))

	gemini := succeeding("gemini", "Grey hoodie")
	r := NewReconciler(cache, []Provider{gemini})

	analysis, ok := r.Analyze(context.Background(), testImage)
	require.True(t, ok)
	assert.False(t, analysis.Cached)
	assert.Equal(t, 1, gemini.Calls())
}

func TestNormalize(t *testing.T) {
	res := normalize([]string{" a ", "", "a", "b"}, nil)
	assert.Equal(t, []string{"a", "b"}, res.Tags)
	assert.NotNil(t, res.Labels)
}
