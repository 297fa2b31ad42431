package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/monitoring/health"
)

var setCmd = &cobra.Command{
	Use:   "set [option] [value]",
	Short: "Change an option of the running watcher",
	Long:  "Change an option of the running watcher. Option names may omit the \"" + config.OptionPrefix + "\" prefix.",
	Args:  cobra.ExactArgs(2),
	Run:   runSet,
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the current options of the running watcher",
	Args:  cobra.NoArgs,
	Run:   runOptions,
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(optionsCmd)
}

func runSet(cmd *cobra.Command, args []string) {
	name := config.CanonicalName(args[0])

	var out health.OptionsResponse
	err := newAdminClient().do(context.Background(), http.MethodPost,
		"/options/"+url.PathEscape(name), health.SetOptionRequest{Value: args[1]}, &out)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Printf("%s%s = %s (options v%d)\n", config.OptionPrefix, name, out.Values[name], out.Version)
}

func runOptions(cmd *cobra.Command, args []string) {
	var out health.OptionsResponse
	if err := newAdminClient().do(context.Background(), http.MethodGet, "/options", nil, &out); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Printf("options v%d\n", out.Version)
	for _, name := range config.OptionNames() {
		fmt.Printf("  %s%s = %s\n", config.OptionPrefix, name, out.Values[name])
	}
}
