package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/tasklet/internal/output"
	"github.com/florianilch/tasklet/internal/tasks"
)

func (r *runner) listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "list tasks, newest first",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the service records as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 0 {
				return usageError(cmd, "unexpected arguments")
			}
			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			list, err := a.Tasks().List(ctx)
			if err != nil {
				return fmt.Errorf("listing tasks: %w", err)
			}

			if cmd.Bool("json") {
				if list == nil {
					list = []tasks.Task{}
				}
				return output.FormatJSON(r.Out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(r.Out, "no tasks found")
				return nil
			}
			for _, task := range list {
				output.FormatTask(r.Out, task)
			}
			return nil
		},
	}
}

func (r *runner) showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "show every field of a task",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the service record as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := taskID(cmd)
			if err != nil {
				return err
			}
			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			task, err := a.Tasks().Get(ctx, id)
			if err != nil {
				return fmt.Errorf("fetching task %d: %w", id, err)
			}
			if task == nil {
				return fmt.Errorf("fetching task %d: %w", id, errNoContent)
			}

			if cmd.Bool("json") {
				return output.FormatJSON(r.Out, task)
			}
			return output.FormatTaskDetail(r.Out, *task)
		},
	}
}

func (r *runner) addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "create a task",
		ArgsUsage: "<title...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "task description"},
			&cli.StringFlag{Name: "due", Usage: "due date (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "completed", Usage: "create the task already completed"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return usageError(cmd, "title required")
			}

			task := tasks.NewTask{
				Title:       strings.Join(cmd.Args().Slice(), " "),
				Description: cmd.String("description"),
				Completed:   cmd.Bool("completed"),
			}
			if cmd.IsSet("due") {
				due, err := tasks.ParseDate(cmd.String("due"))
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				task.DueDate = &due
			}

			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			created, err := a.Tasks().Create(ctx, task)
			if err != nil {
				return fmt.Errorf("creating task: %w", err)
			}
			if created == nil {
				return fmt.Errorf("creating task: %w", errNoContent)
			}
			output.FormatTask(r.Out, *created)
			return nil
		},
	}
}

func (r *runner) editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "change fields of a task; only the given flags are sent",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "new title"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "new description"},
			&cli.StringFlag{Name: "due", Usage: "new due date (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "clear-due", Usage: "remove the due date"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := taskID(cmd)
			if err != nil {
				return err
			}

			var patch tasks.Patch
			if cmd.IsSet("title") {
				title := cmd.String("title")
				patch.Title = &title
			}
			if cmd.IsSet("description") {
				description := cmd.String("description")
				patch.Description = &description
			}
			if cmd.IsSet("due") {
				due, err := tasks.ParseDate(cmd.String("due"))
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				patch.DueDate = &due
			}
			patch.ClearDueDate = cmd.Bool("clear-due")

			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			updated, err := a.Tasks().Update(ctx, id, patch)
			if err != nil {
				return fmt.Errorf("updating task %d: %w", id, err)
			}
			if updated != nil {
				output.FormatTask(r.Out, *updated)
			}
			return nil
		},
	}
}

func (r *runner) toggleCommand() *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Aliases:   []string{"done"},
		Usage:     "flip the completed state of a task",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := taskID(cmd)
			if err != nil {
				return err
			}
			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			current, err := a.Tasks().Get(ctx, id)
			if err != nil {
				return fmt.Errorf("fetching task %d: %w", id, err)
			}
			if current == nil {
				return fmt.Errorf("fetching task %d: %w", id, errNoContent)
			}

			completed := !current.Completed
			updated, err := a.Tasks().Update(ctx, id, tasks.Patch{Completed: &completed})
			if err != nil {
				return fmt.Errorf("updating task %d: %w", id, err)
			}
			if updated == nil {
				// Service answered without a body; show what was requested
				updated = current
				updated.Completed = completed
			}
			output.FormatTask(r.Out, *updated)
			return nil
		},
	}
}

func (r *runner) rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "delete a task",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := taskID(cmd)
			if err != nil {
				return err
			}
			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			if err := a.Tasks().Delete(ctx, id); err != nil {
				return fmt.Errorf("deleting task %d: %w", id, err)
			}
			fmt.Fprintf(r.Out, "deleted task %d\n", id)
			return nil
		},
	}
}

// taskID parses the single <id> argument.
func taskID(cmd *cli.Command) (int64, error) {
	if cmd.NArg() != 1 {
		return 0, usageError(cmd, "exactly one task id required")
	}
	id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(cmd, "invalid task id %q", cmd.Args().First())
	}
	return id, nil
}
