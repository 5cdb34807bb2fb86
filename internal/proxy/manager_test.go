package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetProxyRotates(t *testing.T) {
	m := NewManager([]string{"http://p1:8000", "http://p2:8000"}, nil, 1)

	assert.Equal(t, "http://p1:8000", m.GetProxy())
	assert.Equal(t, "http://p2:8000", m.GetProxy())
	assert.Equal(t, "http://p1:8000", m.GetProxy())
}

func TestManager_NoProxy(t *testing.T) {
	m := NewManager(nil, nil, 1)
	assert.Empty(t, m.GetProxy())

	u, err := m.ProxyFunc(nil)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestManager_GetUserAgent(t *testing.T) {
	m := NewManager(nil, []string{"only-agent"}, 1)
	assert.Equal(t, "only-agent", m.GetUserAgent())

	m = NewManager(nil, nil, 1)
	assert.Contains(t, defaultUserAgents, m.GetUserAgent())
}

func TestManager_TransportSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.UserAgent()
	}))
	defer srv.Close()

	m := NewManager(nil, []string{"imagegrab-test"}, 1)
	client := &http.Client{Transport: m.Transport(nil)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "imagegrab-test", got)
}
