package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (t staticToken) AccessToken() string { return string(t) }

func TestAddItem(t *testing.T) {
	var req *http.Request
	var sent wardrobe.Item
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req = r
		json.NewDecoder(r.Body).Decode(&sent)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"k1","user_id":"u1","name":"Jacket","category":"outerwear","visibility":"private","wear_count":0}`))
	}))
	defer ts.Close()

	c := NewClient(ClientOpts{BaseURL: ts.URL, Tokens: staticToken("jwt")})
	item, err := c.AddItem(context.Background(), "k1", wardrobe.Item{ID: "k1", UserID: "u1", Name: "Jacket", Category: wardrobe.CategoryOuterwear, Visibility: wardrobe.VisibilityPrivate})
	require.NoError(t, err)

	assert.Equal(t, "/api/wardrobe/add", req.URL.Path)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "k1", req.Header.Get(IdempotencyHeader))
	assert.Equal(t, "Bearer jwt", req.Header.Get("Authorization"))
	assert.Equal(t, "Jacket", sent.Name)
	assert.Equal(t, "k1", item.ID)
}

func TestUpdateAndDelete(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/wardrobe/update":
			w.Write([]byte(`{"id":"a","user_id":"u1","name":"Renamed","category":"top","visibility":"private","wear_count":1}`))
		case "/api/wardrobe/delete":
			var body DeleteRequest
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, DeleteRequest{ID: "a", UserID: "u1"}, body)
			w.Write([]byte(`{"deleted":{"id":"a","user_id":"u1","name":"Renamed","category":"top","visibility":"private","wear_count":1,"image_url":"https://cdn/u1/a.jpg"}}`))
		}
	}))
	defer ts.Close()

	c := NewClient(ClientOpts{BaseURL: ts.URL})

	updated, err := c.UpdateItem(context.Background(), "k2", wardrobe.Item{ID: "a", UserID: "u1", Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	deleted, err := c.DeleteItem(context.Background(), "k3", "a", "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/u1/a.jpg", deleted.ImageURL)

	assert.Equal(t, []string{"/api/wardrobe/update", "/api/wardrobe/delete"}, paths)
}

func TestErrorBodySurfacesMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to add item to wardrobe"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{BaseURL: ts.URL}).AddItem(context.Background(), "k", wardrobe.Item{})
	require.Error(t, err)
	assert.Equal(t, "Failed to add item to wardrobe", err.Error())
}

func TestErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{BaseURL: ts.URL}).AddItem(context.Background(), "k", wardrobe.Item{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: 502")
}

func TestUploadFile(t *testing.T) {
	var userID, fileName string
	var fileData []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		userID = r.FormValue("userId")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		fileName = hdr.Filename
		fileData, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"publicUrl":"https://cdn.example.com/u1/x.jpg"}`))
	}))
	defer ts.Close()

	url, err := NewClient(ClientOpts{BaseURL: ts.URL}).UploadFile(context.Background(), "u1", wardrobe.Photo{
		Name: "jacket.jpg", MIMEType: "image/jpeg", Data: []byte("jpeg-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/u1/x.jpg", url)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "jacket.jpg", fileName)
	assert.Equal(t, []byte("jpeg-bytes"), fileData)
}

func TestUploadFile_MissingURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{BaseURL: ts.URL}).UploadFile(context.Background(), "u1", wardrobe.Photo{Name: "a.jpg", MIMEType: "image/jpeg"})
	assert.ErrorContains(t, err, "no publicUrl")
}
