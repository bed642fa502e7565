// Command chatcli is a terminal front-end for the chat server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kidchat-backend/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		serverURL string
		filter    bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chatcli [question]",
		Short: "Chat with the tutor bot from a terminal",
		Long: "chatcli sends questions to the chat server and prints the answers.\n" +
			"With a question argument it asks once and exits; otherwise it reads\n" +
			"questions from stdin. Type /history to print the conversation, /quit to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := session.New(serverURL, filter, timeout)

			if len(args) > 0 {
				reply, err := sess.Send(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), session.Label(reply)+reply.Content)
				return nil
			}

			return runLoop(cmd.Context(), sess, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Chat server base URL")
	cmd.Flags().BoolVar(&filter, "filter", false, "Keep only Chinese characters, digits and punctuation in replies")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "Request timeout")

	return cmd
}

func runLoop(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "通义千问对话机器人 (/history 查看记录, /quit 退出)")

	for {
		fmt.Fprint(out, "请输入你的问题...> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit":
			return nil
		case "/history":
			for _, m := range sess.Messages() {
				stamp := "--:--:--"
				if m.Timestamp != nil {
					stamp = m.Timestamp.Format("15:04:05")
				}
				fmt.Fprintf(out, "[%s] %s%s\n", stamp, session.Label(m), m.Content)
			}
			continue
		}

		fmt.Fprintln(out, "机器人正在输入...")
		reply, err := sess.Send(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "错误：%v\n", err)
			continue
		}
		fmt.Fprintln(out, session.Label(reply)+reply.Content)

		if ctx.Err() != nil {
			return nil
		}
	}
}
