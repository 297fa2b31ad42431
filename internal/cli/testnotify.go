package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/vitality/internal/monitoring/health"
)

var testNotificationsCmd = &cobra.Command{
	Use:   "test-notifications",
	Short: "Send a test notification through every active provider",
	Args:  cobra.NoArgs,
	Run:   runTestNotifications,
}

func init() {
	rootCmd.AddCommand(testNotificationsCmd)
}

func runTestNotifications(cmd *cobra.Command, args []string) {
	var results []health.DeliveryResponse
	err := newAdminClient().do(context.Background(), http.MethodPost, "/notifications/test", nil, &results)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	failed := false
	for _, r := range results {
		if r.OK {
			fmt.Printf("%s: sent\n", r.Provider)
			continue
		}
		failed = true
		fmt.Printf("%s: failed: %s\n", r.Provider, r.Error)
	}
	if failed {
		os.Exit(1)
	}
}
