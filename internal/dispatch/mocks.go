package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/raine/wardrobe/internal/wardrobe"
)

// MockCall records a method call for test assertions.
type MockCall struct {
	Method string
	Args   []any
}

type callLog struct {
	mu sync.Mutex
	// Calls tracks all method invocations for assertions
	Calls []MockCall
}

func (l *callLog) record(method string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, MockCall{Method: method, Args: args})
}

// CallCount returns the number of times a method was called.
func (l *callLog) CallCount(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, call := range l.Calls {
		if call.Method == method {
			count++
		}
	}
	return count
}

// TotalCalls returns the number of recorded calls.
func (l *callLog) TotalCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Calls)
}

// LastCallArgs returns the arguments from the last call to the specified method.
func (l *callLog) LastCallArgs(method string) []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.Calls) - 1; i >= 0; i-- {
		if l.Calls[i].Method == method {
			return l.Calls[i].Args
		}
	}
	return nil
}

// MockPrimaryStore is a test double for PrimaryStore. Unset functions echo
// the written item back as the single affected row.
type MockPrimaryStore struct {
	InsertFunc func(ctx context.Context, item wardrobe.Item) ([]wardrobe.Item, error)
	UpdateFunc func(ctx context.Context, id, ownerID string, patch map[string]any) ([]wardrobe.Item, error)
	DeleteFunc func(ctx context.Context, id, ownerID string) ([]wardrobe.Item, error)
	callLog
}

var _ PrimaryStore = (*MockPrimaryStore)(nil)

func (m *MockPrimaryStore) Insert(ctx context.Context, item wardrobe.Item) ([]wardrobe.Item, error) {
	m.record("Insert", item)
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, item)
	}
	return []wardrobe.Item{item}, nil
}

func (m *MockPrimaryStore) Update(ctx context.Context, id, ownerID string, patch map[string]any) ([]wardrobe.Item, error) {
	m.record("Update", id, ownerID, patch)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, ownerID, patch)
	}
	return []wardrobe.Item{{ID: id, UserID: ownerID}}, nil
}

func (m *MockPrimaryStore) Delete(ctx context.Context, id, ownerID string) ([]wardrobe.Item, error) {
	m.record("Delete", id, ownerID)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, ownerID)
	}
	return []wardrobe.Item{{ID: id, UserID: ownerID}}, nil
}

// MockFallbackStore is a test double for FallbackStore. Unset functions echo
// the item back.
type MockFallbackStore struct {
	AddItemFunc    func(ctx context.Context, key string, item wardrobe.Item) (*wardrobe.Item, error)
	UpdateItemFunc func(ctx context.Context, key string, item wardrobe.Item) (*wardrobe.Item, error)
	DeleteItemFunc func(ctx context.Context, key, id, ownerID string) (*wardrobe.Item, error)
	callLog
}

var _ FallbackStore = (*MockFallbackStore)(nil)

func (m *MockFallbackStore) AddItem(ctx context.Context, key string, item wardrobe.Item) (*wardrobe.Item, error) {
	m.record("AddItem", key, item)
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, key, item)
	}
	return &item, nil
}

func (m *MockFallbackStore) UpdateItem(ctx context.Context, key string, item wardrobe.Item) (*wardrobe.Item, error) {
	m.record("UpdateItem", key, item)
	if m.UpdateItemFunc != nil {
		return m.UpdateItemFunc(ctx, key, item)
	}
	return &item, nil
}

func (m *MockFallbackStore) DeleteItem(ctx context.Context, key, id, ownerID string) (*wardrobe.Item, error) {
	m.record("DeleteItem", key, id, ownerID)
	if m.DeleteItemFunc != nil {
		return m.DeleteItemFunc(ctx, key, id, ownerID)
	}
	return &wardrobe.Item{ID: id, UserID: ownerID}, nil
}

// MockSession is a test double for SessionRefresher.
type MockSession struct {
	RefreshSessionFunc func(ctx context.Context) error
	callLog
}

func (m *MockSession) RefreshSession(ctx context.Context) error {
	m.record("RefreshSession")
	if m.RefreshSessionFunc != nil {
		return m.RefreshSessionFunc(ctx)
	}
	return nil
}

// MockObjectStore is a test double for ObjectStore that serves public URLs
// under BaseURL.
type MockObjectStore struct {
	BaseURL    string
	PutFunc    func(ctx context.Context, key, contentType string, data []byte) error
	DeleteFunc func(ctx context.Context, key string) error
	callLog
}

var _ ObjectStore = (*MockObjectStore)(nil)

func (m *MockObjectStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	m.record("Put", key, contentType, len(data))
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, contentType, data)
	}
	return nil
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	m.record("Delete", key)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

func (m *MockObjectStore) PublicURL(key string) string {
	return m.BaseURL + "/" + key
}

func (m *MockObjectStore) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, m.BaseURL+"/")
	return key, ok && key != ""
}

// MockRelayUploader is a test double for RelayUploader.
type MockRelayUploader struct {
	UploadFileFunc func(ctx context.Context, ownerID string, photo wardrobe.Photo) (string, error)
	callLog
}

var _ RelayUploader = (*MockRelayUploader)(nil)

func (m *MockRelayUploader) UploadFile(ctx context.Context, ownerID string, photo wardrobe.Photo) (string, error) {
	m.record("UploadFile", ownerID, photo.Name)
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, ownerID, photo)
	}
	return "https://relay.example.com/" + ownerID + "/" + photo.Name, nil
}
