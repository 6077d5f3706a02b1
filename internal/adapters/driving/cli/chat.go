package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	chatSession string
	chatNew     bool
	chatJSON    bool
	chatIntent  string
	chatLimit   int
	askComplete bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your notes",
	Long: `Starts a conversation grounded in your notes. Each answer cites the notes
it used as [citation-id] markers, listed after the answer.

Type a question per line; an empty line or /quit ends the session.
Use --session to continue a stored conversation and --new to start one
that is saved. With --json every turn is written as newline-delimited
stream events (context, delta..., done or error).`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question about your notes",
	Long: `Answers a single question with citations.

By default the answer is streamed with grounded retrieval. Use --complete
for the non-streaming path that numbers whole notes as context.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "continue a stored session")
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "start and save a new session")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "write stream events as NDJSON")
	chatCmd.Flags().StringVar(&chatIntent, "intent", "", "force an intent (factual, relational, summary, mixed)")
	chatCmd.Flags().IntVarP(&chatLimit, "limit", "n", 0, "maximum context items per turn")

	askCmd.Flags().BoolVar(&chatJSON, "json", false, "write stream events as NDJSON")
	askCmd.Flags().StringVar(&chatIntent, "intent", "", "force an intent (factual, relational, summary, mixed)")
	askCmd.Flags().IntVarP(&chatLimit, "limit", "n", 0, "maximum context items")
	askCmd.Flags().BoolVar(&askComplete, "complete", false, "answer without streaming")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
}

// conversation is the client side state of a chat.
type conversation struct {
	sessionID string
	intent    domain.Intent
	messages  []domain.ChatMessage
	noteIDs   []string
}

func (c *conversation) request(question string) domain.ChatRequest {
	msgs := make([]domain.ChatMessage, 0, len(c.messages)+1)
	msgs = append(msgs, c.messages...)
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: question})
	return domain.ChatRequest{
		Messages:        msgs,
		SessionID:       c.sessionID,
		MaxResults:      chatLimit,
		Intent:          c.intent,
		PreviousNoteIDs: c.noteIDs,
	}
}

func (c *conversation) record(question, answer string, noteIDs []string) {
	c.messages = append(c.messages,
		domain.ChatMessage{Role: domain.RoleUser, Content: question},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: answer},
	)
	c.noteIDs = noteIDs
}

func parseIntentFlag() (domain.Intent, error) {
	if chatIntent == "" {
		return "", nil
	}
	intent, ok := domain.ParseIntent(chatIntent)
	if !ok {
		return "", fmt.Errorf("unknown intent %q: %w", chatIntent, domain.ErrInvalidInput)
	}
	return intent, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}
	intent, err := parseIntentFlag()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	conv := &conversation{intent: intent}
	if err := openSession(cmd, conv); err != nil {
		return err
	}

	st := stylesFor(cmd.OutOrStdout())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if !chatJSON {
			cmd.Print(st.Title.Render("you> "))
		}
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" || question == "/quit" || question == "/exit" {
			break
		}

		answer, noteIDs, err := streamTurn(cmd, conv.request(question))
		if err != nil {
			if chatJSON {
				continue
			}
			cmd.PrintErrln(st.Error.Render("Error: ") + err.Error())
			continue
		}
		conv.record(question, answer, noteIDs)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// openSession resumes --session or creates a stored session for --new.
func openSession(cmd *cobra.Command, conv *conversation) error {
	if chatSession == "" && !chatNew {
		return nil
	}
	if sessionService == nil {
		return errors.New("session service not configured")
	}
	ctx := commandContext(cmd)

	if chatSession != "" {
		session, err := sessionService.Get(ctx, chatSession)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		conv.sessionID = session.ID
		conv.messages = append(conv.messages, session.Messages...)
		conv.noteIDs = session.RelevantNoteIDs
		if !chatJSON {
			cmd.Printf("Resuming %q (%d messages)\n", session.Title, len(session.Messages))
		}
		return nil
	}

	session, err := sessionService.Create(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	conv.sessionID = session.ID
	if !chatJSON {
		cmd.Printf("Session %s\n", session.ID)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}
	intent, err := parseIntentFlag()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	conv := &conversation{intent: intent}
	req := conv.request(args[0])

	if askComplete {
		resp, err := chatService.Complete(ctx, req)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		if chatJSON {
			return writeJSON(cmd, resp)
		}
		cmd.Println(resp.Answer)
		printCitations(cmd, resp.Citations)
		return nil
	}

	if _, _, err := streamTurn(cmd, req); err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	return nil
}

// streamTurn prints one streamed answer and returns it with the ids of the
// notes used as context. With --json every event is written as one line.
// Returning early cancels the stream so the producer stops reading upstream.
func streamTurn(cmd *cobra.Command, req domain.ChatRequest) (string, []string, error) {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	st := stylesFor(out)

	var (
		noteIDs []string
		answer  string
		failure error
	)
	for ev := range chatService.Stream(ctx, req) {
		if chatJSON {
			if err := enc.Encode(ev); err != nil {
				return "", nil, fmt.Errorf("write event: %w", err)
			}
		}

		switch ev.Type {
		case domain.EventContext:
			noteIDs = contextNoteIDs(ev.Items)
			if !chatJSON && len(ev.Items) > 0 {
				cmd.Println(st.Muted.Render(fmt.Sprintf("(%s, %d excerpts)", ev.Intent, len(ev.Items))))
			}
		case domain.EventDelta:
			if !chatJSON {
				cmd.Print(ev.Content)
			}
		case domain.EventDone:
			answer = ev.FullResponse
			if !chatJSON {
				cmd.Println()
				printCitations(cmd, ev.Citations)
			}
		case domain.EventError:
			failure = errors.New(ev.Error)
		}
	}
	if failure != nil {
		return "", nil, failure
	}
	return answer, noteIDs, nil
}

// contextNoteIDs returns the distinct note ids of the context items in order.
func contextNoteIDs(items []domain.GroundedContext) []string {
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, it := range items {
		if it.NoteID == "" || seen[it.NoteID] {
			continue
		}
		seen[it.NoteID] = true
		ids = append(ids, it.NoteID)
	}
	return ids
}

func printCitations(cmd *cobra.Command, citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	st := stylesFor(cmd.OutOrStdout())
	cmd.Println()
	cmd.Println(st.Title.Render("Sources:"))
	for _, c := range citations {
		if !c.Resolved() {
			cmd.Println("  " + st.Warning.Render(fmt.Sprintf("[%s] not found in the supplied notes", c.CitationID)))
			continue
		}
		cmd.Printf("  %s %s\n", st.Citation.Render("["+c.CitationID+"]"), c.NoteTitle)
		if c.Snippet != "" {
			cmd.Println("      " + st.Muted.Render(snippet(c.Snippet)))
		}
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
