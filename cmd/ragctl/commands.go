package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Han1236/syuka-insight/client"
)

func connect(api func() string) (*client.Client, error) {
	return client.New(api())
}

// readText returns inline text, or the contents of path ("-" is stdin).
func readText(cmd *cobra.Command, inline, path string) (string, error) {
	if inline != "" || path == "" {
		return inline, nil
	}
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCreateCmd(api func() string) *cobra.Command {
	var videoID, title, subtitle, subtitleFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build the knowledge base of a video from its subtitle",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, subtitle, subtitleFile)
			if err != nil {
				return err
			}
			c, err := connect(api)
			if err != nil {
				return err
			}
			res, err := c.CreateKnowledgeBase(cmd.Context(), client.CreateRequest{VideoID: videoID, Title: title, Subtitle: text})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.Success {
				return fmt.Errorf("create failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&videoID, "video", "v", "", "Video ID (required)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Video title")
	cmd.Flags().StringVar(&subtitle, "subtitle", "", "Subtitle text")
	cmd.Flags().StringVarP(&subtitleFile, "subtitle-file", "f", "", "Read the subtitle from a file, - for stdin")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func newListCmd(api func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List videos that have a knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(api)
			if err != nil {
				return err
			}
			videos, err := c.ListKnowledgeBases(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range videos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v.VideoID, v.Title)
			}
			return nil
		},
	}
}

func newAskCmd(api func() string) *cobra.Command {
	var videoID, sessionID string
	var noStream bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about a video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(api)
			if err != nil {
				return err
			}
			req := client.ChatRequest{Prompt: strings.Join(args, " "), VideoID: videoID, SessionID: sessionID}
			out := cmd.OutOrStdout()

			if noStream {
				answer, err := c.Chat(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, answer)
				return nil
			}
			_, err = c.Ask(cmd.Context(), req, func(inc client.Increment) error {
				switch inc.Kind {
				case client.KindText:
					fmt.Fprint(out, inc.Payload)
				case client.KindDone:
					fmt.Fprintln(out)
				}
				return nil
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&videoID, "video", "v", "", "Video ID (required)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Conversation session ID")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the whole answer")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func newSummarizeCmd(api func() string) *cobra.Command {
	var timeline, subtitle, subtitleFile string
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize a transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, subtitle, subtitleFile)
			if err != nil {
				return err
			}
			c, err := connect(api)
			if err != nil {
				return err
			}
			summary, err := c.Summarize(cmd.Context(), client.SummarizeRequest{Timeline: timeline, Subtitle: text})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&timeline, "timeline", "", "Chapter timeline")
	cmd.Flags().StringVar(&subtitle, "subtitle", "", "Subtitle text")
	cmd.Flags().StringVarP(&subtitleFile, "subtitle-file", "f", "", "Read the subtitle from a file, - for stdin")
	return cmd
}

func newHistoryCmd(api func() string) *cobra.Command {
	var videoID, sessionID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the remembered conversation of a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(api)
			if err != nil {
				return err
			}
			sess, err := c.History(cmd.Context(), videoID, sessionID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sess)
		},
	}
	cmd.Flags().StringVarP(&videoID, "video", "v", "", "Video ID (required)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Conversation session ID")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func newResetCmd(api func() string) *cobra.Command {
	var videoID, sessionID string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the conversation of a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(api)
			if err != nil {
				return err
			}
			if err := c.ResetHistory(cmd.Context(), videoID, sessionID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session reset")
			return nil
		},
	}
	cmd.Flags().StringVarP(&videoID, "video", "v", "", "Video ID (required)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Conversation session ID")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func newHealthCmd(api func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check rag-server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(api)
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), h); err != nil {
				return err
			}
			if !h.Healthy() {
				return fmt.Errorf("rag-server is unhealthy")
			}
			return nil
		},
	}
}
