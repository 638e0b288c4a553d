package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/usecase/chat"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Start an interactive chat session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			mem, repo, err := cfg.newMemoryUseCase(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			claude, err := cfg.newClaude()
			if err != nil {
				return err
			}

			archive, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			dispatcher := memory.NewDispatcher(mem)

			var opts []chat.SessionOption
			if archive != nil {
				opts = append(opts, chat.WithArchive(archive))
			}
			session := chat.New(mem, dispatcher, claude, cfg.userID, opts...)

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started for %s. Type /help for commands, /quit to exit.\n\n", cfg.userID)

			// Proactive recall: show what the assistant already knows.
			if recent, err := session.RecentMemories(ctx, 5); err == nil && len(recent) > 0 {
				if all, err := mem.List(ctx, cfg.userID); err == nil {
					fmt.Fprintf(w, "Welcome back! I have %d memories about you.\n", len(all))
				}
				fmt.Fprintf(w, "Most recently:\n")
				for _, rec := range recent {
					fmt.Fprintf(w, "  - %s\n", rec.Text)
				}
				fmt.Fprintln(w)
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize input")
			}
			defer rl.Close()

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				input := strings.TrimSpace(line)
				if input == "" {
					continue
				}

				if strings.HasPrefix(input, "/") {
					quit, err := runSlashCommand(ctx, w, mem, cfg.userID, input)
					if err != nil {
						fmt.Fprintf(w, "error: %v\n", err)
						continue
					}
					if quit {
						break
					}
					continue
				}
				if input == "exit" || input == "quit" {
					break
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " Thinking..."
				sp.Start()
				response, err := session.Send(ctx, input)
				sp.Stop()
				if err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					continue
				}

				fmt.Fprintf(w, "%s\n", response)
				if recalled := session.LastRecalled(); len(recalled) > 0 {
					fmt.Fprintf(w, "(recalled %d memories)\n", len(recalled))
				}
				fmt.Fprintln(w)
			}

			fmt.Fprintf(w, "\nSaving session...\n")
			closeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := session.Close(closeCtx); err != nil {
				return goerr.Wrap(err, "failed to close session")
			}

			fmt.Fprintf(w, "Chat session completed\n")
			return nil
		},
	}
}

// runSlashCommand handles in-session commands. Returns true when the
// session should end.
func runSlashCommand(ctx context.Context, w io.Writer, mem *memory.UseCase, userID, input string) (bool, error) {
	switch strings.Fields(input)[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintf(w, "Commands:\n")
		fmt.Fprintf(w, "  /memories    Show stored memories\n")
		fmt.Fprintf(w, "  /categories  Show memory categories\n")
		fmt.Fprintf(w, "  /forget      Erase all memories\n")
		fmt.Fprintf(w, "  /quit        End the session\n")
		return false, nil

	case "/memories":
		records, err := mem.List(ctx, userID)
		if err != nil {
			return false, err
		}
		if len(records) == 0 {
			fmt.Fprintf(w, "No memories stored.\n")
			return false, nil
		}
		for _, rec := range records {
			printMemory(w, rec)
		}
		return false, nil

	case "/categories":
		categories, err := mem.Categories(ctx, userID)
		if err != nil {
			return false, err
		}
		if len(categories) == 0 {
			fmt.Fprintf(w, "No categories.\n")
			return false, nil
		}
		for _, c := range categories {
			fmt.Fprintf(w, "  - %s\n", c)
		}
		return false, nil

	case "/forget":
		if !confirmForget(w) {
			fmt.Fprintf(w, "Canceled.\n")
			return false, nil
		}
		if err := mem.Forget(ctx, userID); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "All memories erased.\n")
		return false, nil

	default:
		return false, goerr.New("unknown command, see /help", goerr.V("command", input))
	}
}
