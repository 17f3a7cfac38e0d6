package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tiroq/voicecap/internal/app"
	"github.com/tiroq/voicecap/internal/output"
	"github.com/tiroq/voicecap/internal/synth"
)

func NewVoicesCmd(deps *Dependencies) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List engine voices grouped by language",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.NewApp(deps.Config, deps.Logger, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			voices, err := a.Voices(cmd.Context())
			if err != nil {
				return err
			}
			groups := synth.GroupByLanguage(voices)

			if asJSON {
				enc := json.NewEncoder(deps.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			output.NewFormatter(deps.Out).VoiceGroups(groups)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
