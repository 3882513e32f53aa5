package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkovar/studydesk/internal/config"
)

// summaryView mirrors the record summary JSON the daemon returns.
type summaryView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CourseID   string `json:"courseId"`
	CourseName string `json:"courseName"`
	CreatedAt  string `json:"createdAt"`
	ItemCount  int    `json:"itemCount"`
}

type messageView struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Citations []struct {
		Label string `json:"label"`
		URL   string `json:"url"`
	} `json:"citations"`
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printSummaries(summaries []summaryView) {
	if len(summaries) == 0 {
		fmt.Println("Nothing stored yet.")
		return
	}
	for _, s := range summaries {
		fmt.Printf("%s  %s  %s (%s, %d items)\n",
			colorize(colorCyan, shortID(s.ID)),
			s.CreatedAt,
			colorize(colorBold, s.Title),
			s.CourseName,
			s.ItemCount,
		)
	}
}

// resolveCourse picks the course id: the flag wins, otherwise the daemon's
// durable selected-course pointer.
func resolveCourse(ctx context.Context, client *apiClient, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	resp, err := client.get(ctx, "/selected-course")
	if err != nil {
		return "", err
	}
	var selected struct {
		CourseID string `json:"courseId"`
	}
	if err := decodeJSON(resp, &selected); err != nil {
		return "", fmt.Errorf("no course selected; pass --course or run `studydesk course select <id>`")
	}
	return selected.CourseID, nil
}

// --- deck ---

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Generate and browse flashcard decks",
}

var deckGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a flashcard deck for a course",
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, _ := cmd.Flags().GetString("course-id")
		courseName, _ := cmd.Flags().GetString("course-name")
		title, _ := cmd.Flags().GetString("title")
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Generating deck for %s...", courseName)
		resp, err := client.post(cmd.Context(), "/decks/generate", map[string]any{
			"courseId":   courseID,
			"courseName": courseName,
			"title":      title,
			"count":      count,
		})
		if err != nil {
			return err
		}

		var rec struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		printSuccess("Created deck %s (%s)", rec.Title, shortID(rec.ID))
		return nil
	},
}

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored decks, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/decks?limit=%d", limit))
		if err != nil {
			return err
		}

		var summaries []summaryView
		if err := decodeJSON(resp, &summaries); err != nil {
			return err
		}
		printSummaries(summaries)
		return nil
	},
}

var deckShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a deck's cards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/decks/"+args[0])
		if err != nil {
			return err
		}

		var rec struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Payload []struct {
				Front string `json:"front"`
				Back  string `json:"back"`
			} `json:"payload"`
		}
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		fmt.Printf("%s\n", colorize(colorBold, rec.Title))
		for i, card := range rec.Payload {
			fmt.Printf("\n%d. %s\n   %s\n", i+1, card.Front, card.Back)
		}

		// Viewing counts as opening.
		if touchResp, err := client.post(cmd.Context(), "/decks/"+rec.ID+"/touch", nil); err == nil {
			touchResp.Body.Close()
		}
		return nil
	},
}

func init() {
	deckGenerateCmd.Flags().String("course-id", "", "course identifier")
	deckGenerateCmd.Flags().String("course-name", "", "course display name")
	deckGenerateCmd.Flags().String("title", "", "deck title (defaults to a generated one)")
	deckGenerateCmd.Flags().Int("count", 0, "number of cards (0 uses the server default)")
	deckGenerateCmd.MarkFlagRequired("course-id")
	deckGenerateCmd.MarkFlagRequired("course-name")
	deckListCmd.Flags().Int("limit", 20, "maximum number of decks to list")

	deckCmd.AddCommand(deckGenerateCmd)
	deckCmd.AddCommand(deckListCmd)
	deckCmd.AddCommand(deckShowCmd)
}

// --- test ---

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Generate and browse practice tests",
}

var testGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a practice test for a course",
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, _ := cmd.Flags().GetString("course-id")
		courseName, _ := cmd.Flags().GetString("course-name")
		title, _ := cmd.Flags().GetString("title")
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Generating practice test for %s...", courseName)
		resp, err := client.post(cmd.Context(), "/practice-tests/generate", map[string]any{
			"courseId":   courseID,
			"courseName": courseName,
			"title":      title,
			"count":      count,
		})
		if err != nil {
			return err
		}

		var rec struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		printSuccess("Created practice test %s (%s)", rec.Title, shortID(rec.ID))
		return nil
	},
}

var testListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored practice tests, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/practice-tests?limit=%d", limit))
		if err != nil {
			return err
		}

		var summaries []summaryView
		if err := decodeJSON(resp, &summaries); err != nil {
			return err
		}
		printSummaries(summaries)
		return nil
	},
}

var testShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a practice test's questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/practice-tests/"+args[0])
		if err != nil {
			return err
		}

		var rec struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Payload struct {
				Questions []struct {
					Prompt      string   `json:"prompt"`
					Choices     []string `json:"choices"`
					Answer      string   `json:"answer"`
					Explanation string   `json:"explanation"`
				} `json:"questions"`
			} `json:"payload"`
		}
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		fmt.Printf("%s\n", colorize(colorBold, rec.Title))
		for i, q := range rec.Payload.Questions {
			fmt.Printf("\n%d. %s\n", i+1, q.Prompt)
			for _, choice := range q.Choices {
				fmt.Printf("   - %s\n", choice)
			}
			fmt.Printf("   Answer: %s\n", q.Answer)
			if q.Explanation != "" {
				fmt.Printf("   %s\n", q.Explanation)
			}
		}

		if touchResp, err := client.post(cmd.Context(), "/practice-tests/"+rec.ID+"/touch", nil); err == nil {
			touchResp.Body.Close()
		}
		return nil
	},
}

func init() {
	testGenerateCmd.Flags().String("course-id", "", "course identifier")
	testGenerateCmd.Flags().String("course-name", "", "course display name")
	testGenerateCmd.Flags().String("title", "", "test title (defaults to a generated one)")
	testGenerateCmd.Flags().Int("count", 0, "number of questions (0 uses the server default)")
	testGenerateCmd.MarkFlagRequired("course-id")
	testGenerateCmd.MarkFlagRequired("course-name")
	testListCmd.Flags().Int("limit", 20, "maximum number of tests to list")

	testCmd.AddCommand(testGenerateCmd)
	testCmd.AddCommand(testListCmd)
	testCmd.AddCommand(testShowCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask the course tutor and review transcripts",
}

var chatAskCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the tutor a question about the selected course",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		course, _ := cmd.Flags().GetString("course")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		courseID, err := resolveCourse(cmd.Context(), client, course)
		if err != nil {
			return err
		}

		question := strings.Join(args, " ")
		resp, err := client.post(cmd.Context(), "/chat/"+courseID, map[string]string{"question": question})
		if err != nil {
			return err
		}

		var reply messageView
		if err := decodeJSON(resp, &reply); err != nil {
			return err
		}

		fmt.Println(reply.Text)
		for _, c := range reply.Citations {
			fmt.Printf("  %s: %s\n", colorize(colorCyan, c.Label), c.URL)
		}
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the transcript for the selected course",
	RunE: func(cmd *cobra.Command, args []string) error {
		course, _ := cmd.Flags().GetString("course")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		courseID, err := resolveCourse(cmd.Context(), client, course)
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/chat/"+courseID)
		if err != nil {
			return err
		}

		var history []messageView
		if err := decodeJSON(resp, &history); err != nil {
			return err
		}

		if len(history) == 0 {
			fmt.Println("No messages yet.")
			return nil
		}
		for _, m := range history {
			fmt.Printf("%s: %s\n", roleLabel(m.Role), m.Text)
		}
		return nil
	},
}

func init() {
	chatAskCmd.Flags().String("course", "", "course id (defaults to the selected course)")
	chatHistoryCmd.Flags().String("course", "", "course id (defaults to the selected course)")

	chatCmd.AddCommand(chatAskCmd)
	chatCmd.AddCommand(chatHistoryCmd)
}

// --- course ---

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Manage the selected course",
}

var courseSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select a course for chat and generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/selected-course", map[string]string{"courseId": args[0]})
		if err != nil {
			return err
		}
		resp.Body.Close()

		printSuccess("Selected course %s", args[0])
		return nil
	},
}

var courseShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the selected course",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		courseID, err := resolveCourse(cmd.Context(), client, "")
		if err != nil {
			return err
		}
		fmt.Println(courseID)
		return nil
	},
}

var courseClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the selected course",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/selected-course")
		if err != nil {
			return err
		}
		resp.Body.Close()

		printSuccess("Cleared selected course")
		return nil
	},
}

func init() {
	courseCmd.AddCommand(courseSelectCmd)
	courseCmd.AddCommand(courseShowCmd)
	courseCmd.AddCommand(courseClearCmd)
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <link>",
	Short: "Import a shared deck or practice test link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fragment := args[0]
		// Full share links carry the payload in the URL fragment.
		if i := strings.LastIndex(fragment, "#"); i >= 0 {
			fragment = fragment[i+1:]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/import", map[string]string{"fragment": fragment})
		if err != nil {
			return err
		}

		var result struct {
			Kind    string      `json:"kind"`
			Summary summaryView `json:"summary"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Imported %s %s (%s, %d items)", result.Kind, result.Summary.Title, shortID(result.Summary.ID), result.Summary.ItemCount)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
