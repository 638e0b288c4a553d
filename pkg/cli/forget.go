package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

func forgetCommand() *cli.Command {
	var (
		cfg   config
		force bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Skip the confirmation prompt",
			Destination: &force,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "forget",
		Usage: "Irreversibly erase all memories of the user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if !force && !confirmForget(w) {
				fmt.Fprintf(w, "Canceled.\n")
				return nil
			}

			mem, repo, err := cfg.newMemoryUseCase(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := mem.Forget(ctx, cfg.userID); err != nil {
				return err
			}

			fmt.Fprintf(w, "All memories erased.\n")
			return nil
		},
	}
}

// confirmForget requires the user to type "yes"; erasure has no undo.
func confirmForget(w io.Writer) bool {
	fmt.Fprintf(w, "This permanently deletes all memories, including history. Type 'yes' to continue: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.TrimSpace(scanner.Text()) == "yes"
}
