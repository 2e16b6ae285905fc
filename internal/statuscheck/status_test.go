package statuscheck

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "path/filepath"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var ok = pingFunc(func(context.Context) error { return nil })

func TestSummary_AllHealthy(t *testing.T) {
    c := New(Options{Records: ok, UploadRoot: t.TempDir(), Archive: ok})

    sum := c.Summary(context.Background())

    assert.True(t, sum.Records.OK)
    assert.True(t, sum.Storage.OK)
    assert.True(t, sum.Archive.OK)
    assert.True(t, sum.Healthy())
}

func TestSummary_ArchiveDisabledIsHealthy(t *testing.T) {
    c := New(Options{Records: ok, UploadRoot: t.TempDir()})

    sum := c.Summary(context.Background())

    assert.False(t, sum.Archive.OK)
    assert.Equal(t, "Not configured", sum.Archive.Message)
    assert.True(t, sum.Healthy())
}

func TestHandler_Unhealthy(t *testing.T) {
    down := pingFunc(func(context.Context) error { return errors.New(strings.Repeat("x", 200)) })
    c := New(Options{Records: down, UploadRoot: filepath.Join(t.TempDir(), "missing")})

    rec := httptest.NewRecorder()
    c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
    var sum Summary
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
    assert.False(t, sum.Records.OK)
    assert.Len(t, sum.Records.Message, 120)
    assert.False(t, sum.Storage.OK)
}

func TestHandler_Healthy(t *testing.T) {
    c := New(Options{Records: ok, UploadRoot: t.TempDir()})

    rec := httptest.NewRecorder()
    c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
