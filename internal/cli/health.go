package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the Execution Service's health",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(addr + "/health")
		if err != nil {
			fmt.Printf("Failed to connect: %v\nIs the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var result struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			fmt.Printf("Bad response (status %s): %v\n", resp.Status, err)
			os.Exit(1)
		}
		fmt.Println(result.Status)
	},
}

func init() {
	RootCmd.AddCommand(healthCmd)
}
