package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func categoriesCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "categories",
		Usage: "List the categories of current memories",
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

			categories, err := mem.Categories(ctx, cfg.userID)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if len(categories) == 0 {
				fmt.Fprintf(w, "No categories.\n")
				return nil
			}
			for _, category := range categories {
				fmt.Fprintf(w, "%s\n", category)
			}
			return nil
		},
	}
}
