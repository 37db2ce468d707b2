// Command onesdk is a minimal example CLI driving one perform call
// through the Client façade, the Go analogue of example/main.go's
// flag-based driver but laid out around spf13/cobra + spf13/viper for
// flag/env precedence.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	onesdk "github.com/superfaceai/one-sdk-go"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "onesdk",
		Short: "Run a single Superface perform call against a local profile/provider/map",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerform(context.Background(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("assets", "superface", "path to the local assets directory")
	flags.String("profile", "", "profile name (required)")
	flags.String("provider", "", "provider name (required)")
	flags.String("usecase", "", "use case name (required)")
	flags.String("input", "{}", "JSON input for the use case")
	flags.String("token", "", "Superface SDK token")
	flags.String("superface-api-url", "https://superface.ai", "Superface API base URL")

	v.BindPFlags(flags)
	v.SetEnvPrefix("onesdk")
	v.AutomaticEnv()

	return cmd
}

func runPerform(ctx context.Context, v *viper.Viper) error {
	profile := v.GetString("profile")
	provider := v.GetString("provider")
	usecase := v.GetString("usecase")
	if profile == "" || provider == "" || usecase == "" {
		return fmt.Errorf("--profile, --provider and --usecase are all required")
	}

	client := onesdk.NewClient(v.GetString("assets"),
		onesdk.WithToken(v.GetString("token")),
		onesdk.WithSuperfaceAPIURL(v.GetString("superface-api-url")),
	)
	defer client.Destroy(ctx)

	p, err := client.GetProfile(profile)
	if err != nil {
		return err
	}

	result, err := p.GetUseCase(usecase).Perform(ctx, provider, json.RawMessage(v.GetString("input")), nil, nil)
	if err != nil {
		return err
	}

	fmt.Println(string(result))
	return nil
}
