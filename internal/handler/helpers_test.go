package handler_test

import (
	"bytes"
	"encoding/json"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
	"firmdocs/internal/handler"
	"firmdocs/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testActor() *domain.Actor {
	return &domain.Actor{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Role:        "manager",
		Permissions: domain.PermissionSet{domain.All{}},
	}
}

// newContext builds a gin test context for req, attaching actor when non-nil.
func newContext(req *http.Request, actor *domain.Actor, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	if actor != nil {
		c.Set(middleware.ContextKeyActor, actor)
	}
	return c, w
}

// multipartRequest builds a multipart POST. A nil file omits the file part.
func multipartRequest(t *testing.T, url string, fields map[string]string, filename string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func seqOf[T any](items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}
