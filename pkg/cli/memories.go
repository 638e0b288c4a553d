package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/urfave/cli/v3"
)

func memoriesCommand() *cli.Command {
	var (
		cfg         config
		currentOnly bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "current",
			Usage:       "Show only current memories",
			Destination: &currentOnly,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "memories",
		Usage: "List stored memories",
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

			records, err := mem.List(ctx, cfg.userID)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			var current, superseded int
			for _, rec := range records {
				if rec.IsCurrent() {
					current++
				} else {
					superseded++
					if currentOnly {
						continue
					}
				}
				printMemory(w, rec)
			}

			fmt.Fprintf(w, "\n%d current, %d superseded\n", current, superseded)
			return nil
		},
	}
}

func printMemory(w io.Writer, rec *model.MemoryRecord) {
	status := ""
	if !rec.IsCurrent() {
		status = fmt.Sprintf(" [superseded %s]", rec.SupersededAt.Format("2006-01-02"))
	}
	categories := ""
	if len(rec.Categories) > 0 {
		categories = fmt.Sprintf(" (%s)", strings.Join(rec.Categories, ", "))
	}
	fmt.Fprintf(w, "  [%s]%s %s%s\n",
		rec.SavedAt.Format("2006-01-02"), status, rec.Text, categories)
}
