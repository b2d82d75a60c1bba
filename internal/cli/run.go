package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	language  string
	timeout   int
	sessionID string
)

var runCmd = &cobra.Command{
	Use:   "run [code]",
	Short: "Run code in an ephemeral sandbox (or an existing session with --session)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		payload := map[string]any{
			"execution_id":    uuid.NewString(),
			"user_id":         "boxedctl",
			"language":        language,
			"code":            args[0],
			"timeout_seconds": timeout,
		}
		if sessionID != "" {
			payload["session_id"] = sessionID
		}
		body, _ := json.Marshal(payload)

		req, err := http.NewRequest(http.MethodPost, addr+"/execute", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Failed to build request: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Internal-Auth-Token", token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Failed to connect: %v\nIs the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var result struct {
			Output   string  `json:"output"`
			Error    *string `json:"error"`
			ExitCode int     `json:"exit_code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			fmt.Printf("Bad response (status %s): %v\n", resp.Status, err)
			os.Exit(1)
		}

		fmt.Print(result.Output)
		if result.Error != nil {
			fmt.Fprintln(os.Stderr, *result.Error)
		}
		os.Exit(result.ExitCode)
	},
}

func init() {
	runCmd.Flags().StringVarP(&language, "language", "l", "python", "Language: python, node, bash, c")
	runCmd.Flags().IntVar(&timeout, "timeout", 30, "Timeout in seconds")
	runCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Run against an existing session instead of an ephemeral sandbox")
	RootCmd.AddCommand(runCmd)
}
