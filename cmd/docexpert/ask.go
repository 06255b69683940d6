package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mapwright/docexpert/internal/synthesizer"
)

var askConversationID string

var askCmd = &cobra.Command{
	Use:   "ask <question>...",
	Short: "Ask a one-shot documentation question",
	Long: `Ask a question against the ingested documentation and print the
labeled answer. Pass --conversation to continue an earlier exchange.

Examples:
  docexpert ask "How do I create a tileset?"

  docexpert ask --conversation 5f0c... "And how do I animate its tiles?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askConversationID, "conversation", "", "conversation ID to continue")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.synth.Answer(cmd.Context(), synthesizer.Request{
		Query:          strings.Join(args, " "),
		UserID:         "cli",
		ConversationID: askConversationID,
	})
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	fmt.Printf("\nconversation: %s\n", resp.ConversationID)
	if resp.Outcome == synthesizer.OutcomeAnsweredUnpersisted {
		fmt.Println("note: this exchange could not be saved to the conversation store")
	}
	return nil
}
