package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage long-lived sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session bound to a sandbox",
	Run: func(cmd *cobra.Command, args []string) {
		body, _ := json.Marshal(map[string]string{"language": language, "user_id": "boxedctl"})

		req, _ := http.NewRequest(http.MethodPost, addr+"/sessions", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Internal-Auth-Token", token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Failed to connect: %v\nIs the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Create failed: %s\n", resp.Status)
			os.Exit(1)
		}

		var result struct {
			SessionID string `json:"session_id"`
			Language  string `json:"language"`
		}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Println(result.SessionID)
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end [session-id]",
	Short: "End a session and return its sandbox to the pool",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodDelete, addr+"/sessions/"+args[0], nil)
		req.Header.Set("Internal-Auth-Token", token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Failed to connect: %v\nIs the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("End failed: %s\n", resp.Status)
			os.Exit(1)
		}
		fmt.Println("session ended")
	},
}

func init() {
	sessionCreateCmd.Flags().StringVarP(&language, "language", "l", "python", "Language: python, node, bash, c")
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	RootCmd.AddCommand(sessionCmd)
}
