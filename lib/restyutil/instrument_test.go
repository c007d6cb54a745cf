package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mutex    sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.messages[id] = contents
}

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"title": "Lunch survey"}`))
	}))
	defer server.Close()

	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	client.SetHeader("Authorization", "Bearer secret-token")
	InstrumentClient(client, output)

	for i := 0; i < 2; i++ {
		res, err := client.R().Get(server.URL + "/v3/surveys/1/details")
		require.NoError(t, err)
		require.Equal(t, 200, res.StatusCode())
	}

	require.Len(t, output.messages, 2)
	message := output.messages["1"]
	require.Contains(t, message, "GET "+server.URL+"/v3/surveys/1/details")
	require.Contains(t, message, `{"title": "Lunch survey"}`)
	require.Contains(t, message, "Authorization: <redacted>")
	require.NotContains(t, message, "secret-token")
	require.Contains(t, output.messages, "2")
}

func TestInstrumentClientNilOutput(t *testing.T) {
	client := resty.New()
	InstrumentClient(client, nil)
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("old"), 0600))

	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	output.Write("1", "hello")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	contents, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}
