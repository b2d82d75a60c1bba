package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeboxed/execd/internal/activeset"
	"github.com/codeboxed/execd/internal/coordinator"
	"github.com/codeboxed/execd/internal/langhandler"
	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/session"
)

type executeResponse struct {
	Output    string  `json:"output"`
	Error     *string `json:"error"`
	ExitCode  int     `json:"exit_code"`
	SessionID *string `json:"session_id"`
}

func postJSON(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Internal-Auth-Token", authToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func deleteSession(t *testing.T, sessionID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, serverURL+"/sessions/"+sessionID, nil)
	require.NoError(t, err)
	req.Header.Set("Internal-Auth-Token", authToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestEphemeralPythonExecution(t *testing.T) {
	resp, body := postJSON(t, "/execute", map[string]any{
		"execution_id": "scenario-1",
		"language":     "python",
		"code":         "print(1+1)",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result executeResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "2\n", result.Output)
	assert.Equal(t, 0, result.ExitCode)
	assert.Nil(t, result.Error)
}

func TestCCompilationFailure(t *testing.T) {
	resp, body := postJSON(t, "/execute", map[string]any{
		"execution_id": "scenario-2",
		"language":     "c",
		"code":         "int main() { return }",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result executeResponse
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "Compilation error:")
	assert.NotEqual(t, -1, result.ExitCode)
}

func TestBashWithFileStaging(t *testing.T) {
	resp, body := postJSON(t, "/execute", map[string]any{
		"execution_id": "scenario-3",
		"language":     "bash",
		"code":         "cat /tmp/greeting.txt",
		"files": map[string]string{
			"/tmp/greeting.txt": "hello from staging\n",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result executeResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "hello from staging\n", result.Output)
	assert.Equal(t, 0, result.ExitCode)
}

func TestExecutionTimeout(t *testing.T) {
	resp, body := postJSON(t, "/execute", map[string]any{
		"execution_id":    "scenario-4",
		"language":        "bash",
		"code":            "sleep 30",
		"timeout_seconds": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result executeResponse
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotNil(t, result.Error)
	assert.Equal(t, "Execution timed out", *result.Error)
	assert.Equal(t, -1, result.ExitCode)
}

func TestSessionReuseSharesInterpreterState(t *testing.T) {
	resp, body := postJSON(t, "/sessions", map[string]any{
		"language": "python",
		"user_id":  "scenario-5-user",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.SessionID)
	defer deleteSession(t, created.SessionID)

	resp, body = postJSON(t, "/execute", map[string]any{
		"execution_id": "scenario-5-a",
		"language":     "python",
		"code":         "x = 5",
		"session_id":   created.SessionID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first executeResponse
	require.NoError(t, json.Unmarshal(body, &first))
	assert.Nil(t, first.Error)

	resp, body = postJSON(t, "/execute", map[string]any{
		"execution_id": "scenario-5-b",
		"language":     "python",
		"code":         "print(x)",
		"session_id":   created.SessionID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second executeResponse
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Equal(t, "5\n", second.Output)
}

// TestCapacityExhaustedReturns503 runs its own Coordinator over a
// pool capped at one sandbox so it doesn't fight the shared testPool's
// capacity, then drives it directly rather than through a second HTTP
// listener.
func TestCapacityExhaustedReturns503(t *testing.T) {
	limited := pool.New(testProvider, 1)
	sessions := session.New(limited)
	active := activeset.New()
	languages, err := langhandler.NewRegistry([]string{"python", "node", "bash", "c"})
	require.NoError(t, err)
	coord := coordinator.New(testProvider, limited, sessions, active, languages, 30)

	sess, err := sessions.Create(context.Background(), "capacity-user", "bash")
	require.NoError(t, err)
	defer sessions.End(context.Background(), sess.ID)

	_, err = coord.Execute(context.Background(), coordinator.ExecutionRequest{
		ExecutionID: "scenario-6",
		Language:    "bash",
		Code:        "echo hi",
	})
	assert.ErrorIs(t, err, pool.ErrNoCapacity)
}
