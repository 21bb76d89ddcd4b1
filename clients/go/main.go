// supportchat CLI - command line client for the support chat gateway
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitwellhq/supportchat/clients/go/supportchat"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("SUPPORTCHAT_URL")
	token := os.Getenv("SUPPORTCHAT_TOKEN")

	client := supportchat.NewClient(baseURL, token)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "list":
		filter := ""
		if len(os.Args) > 2 {
			filter = os.Args[2]
		}
		resp, err := client.Roster(filter)
		exitOnError(err)
		for _, conv := range resp.Conversations {
			ts := time.UnixMilli(conv.UpdatedAt).Format("2006-01-02 15:04")
			fmt.Printf("  %s  %-20s [%s] %s\n", ts, conv.UserName, conv.Area, conv.LastMessage)
		}

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: supportchat send <conversation_id> <text>")
			os.Exit(1)
		}
		msg, err := client.SendText(os.Args[2], os.Args[3])
		exitOnError(err)
		fmt.Printf("Sent: %s\n", msg.ID)

	case "tail":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: supportchat tail <conversation_id>")
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			cancel()
		}()

		err := client.Tail(ctx, os.Args[2], func(messages []supportchat.Message) {
			fmt.Print("\033[H\033[2J") // redraw the full snapshot
			for _, msg := range messages {
				ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
				body := msg.Text
				if msg.Kind == "voice" {
					body = "[voice] " + msg.AudioURL
				}
				fmt.Printf("[%s] %s: %s\n", ts, msg.SenderName, body)
			}
		})
		if err != nil && ctx.Err() == nil {
			exitOnError(err)
		}

	case "commands":
		resp, err := client.Commands()
		exitOnError(err)
		for _, c := range resp.Commands {
			fmt.Printf("  /%s  (%s)\n", c.Title, c.Kind)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`supportchat CLI - support chat gateway client

Usage: supportchat <command> [options]

Commands:
  list [filter]             List conversations
  tail <conversation_id>    Follow a conversation feed
  send <conversation_id> <text>
                            Send a text message
  commands                  List reply templates
  health                    Check gateway health

Environment:
  SUPPORTCHAT_URL     Gateway URL (default: http://localhost:8080)
  SUPPORTCHAT_TOKEN   Operator bearer token`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
