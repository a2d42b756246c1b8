package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/Manideep9308/task-flow-sub000/board"
	"github.com/Manideep9308/task-flow-sub000/domain"
	"github.com/Manideep9308/task-flow-sub000/projection"
	"github.com/Manideep9308/task-flow-sub000/storage"
)

// withBoard loads the snapshot at path into a fresh store and runs fn. When
// save is set and fn succeeds the resulting board is written back.
func withBoard(ctx context.Context, path string, save bool, fn func(*board.Store) error) error {
	fs := storage.NewFileStore(path)
	tasks, err := fs.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	store := board.New()
	if err := store.Load(tasks); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := fn(store); err != nil {
		return err
	}
	if !save {
		return nil
	}
	if err := fs.Save(ctx, store.Snapshot()); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTask(w io.Writer, t domain.Task) {
	due := "-"
	if t.DueDate != nil {
		due = t.DueDate.String()
	}
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", t.ID, t.Status, t.Order, t.Priority, due, t.Title)
}

func listCmd(path *string) *cobra.Command {
	var (
		text       string
		statuses   []string
		priorities []string
		sortBy     string
		desc       bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered and sorted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := projection.Query{Text: text}
			for _, raw := range statuses {
				s, err := domain.ParseStatus(raw)
				if err != nil {
					return err
				}
				q.Statuses = append(q.Statuses, s)
			}
			for _, raw := range priorities {
				p, err := domain.ParsePriority(raw)
				if err != nil {
					return err
				}
				q.Priorities = append(q.Priorities, p)
			}
			key, err := projection.ParseSortKey(sortBy)
			if err != nil {
				return err
			}
			return withBoard(cmd.Context(), *path, false, func(s *board.Store) error {
				tasks := []domain.Task{}
				for t := range projection.Filter(s, q, projection.Sort{Key: key, Desc: desc}) {
					tasks = append(tasks, t)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), tasks)
				}
				for _, t := range tasks {
					printTask(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&text, "query", "q", "", "match title, description or category")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "filter by status (todo, inprogress, done)")
	cmd.Flags().StringSliceVarP(&priorities, "priority", "p", nil, "filter by priority (low, medium, high)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort field (title, priority, dueDate, ...)")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func boardCmd(path *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show tasks grouped by status column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), *path, false, func(s *board.Store) error {
				cols := projection.Board(s)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), cols)
				}
				for _, col := range cols {
					fmt.Fprintf(cmd.OutOrStdout(), "== %s (%d)\n", col.Status, len(col.Tasks))
					for _, t := range col.Tasks {
						printTask(cmd.OutOrStdout(), t)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func calendarCmd(path *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show tasks grouped by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), *path, false, func(s *board.Store) error {
				groups := projection.Calendar(s)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), groups)
				}
				for _, g := range groups {
					fmt.Fprintf(cmd.OutOrStdout(), "== %s\n", g.Date)
					for _, t := range g.Tasks {
						printTask(cmd.OutOrStdout(), t)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func addCmd(path *string) *cobra.Command {
	var status, priority, due, description, category, assignee string
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task at the end of its column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.NewTask{
				Title:       args[0],
				Description: description,
				Category:    category,
				AssignedTo:  assignee,
			}
			var err error
			if status != "" {
				if in.Status, err = domain.ParseStatus(status); err != nil {
					return err
				}
			}
			if priority != "" {
				if in.Priority, err = domain.ParsePriority(priority); err != nil {
					return err
				}
			}
			if due != "" {
				d, err := domain.ParseDate(due)
				if err != nil {
					return err
				}
				in.DueDate = &d
			}
			return withBoard(cmd.Context(), *path, true, func(s *board.Store) error {
				t, err := s.Create(in)
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "initial status (default todo)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee")
	return cmd
}

func editCmd(path *string) *cobra.Command {
	var title, description, status, priority, due, category, assignee string
	var order int
	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Change fields of a task; only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				p.Title = &title
			}
			if flags.Changed("description") {
				p.Description = &description
			}
			if flags.Changed("category") {
				p.Category = &category
			}
			if flags.Changed("assignee") {
				p.AssignedTo = &assignee
			}
			if flags.Changed("status") {
				s, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				p.Status = &s
			}
			if flags.Changed("priority") {
				pr, err := domain.ParsePriority(priority)
				if err != nil {
					return err
				}
				p.Priority = &pr
			}
			if flags.Changed("due") {
				if due == "" {
					p.ClearDueDate = true
				} else {
					d, err := domain.ParseDate(due)
					if err != nil {
						return err
					}
					p.DueDate = &d
				}
			}
			if flags.Changed("order") {
				p.Order = &order
			}
			return withBoard(cmd.Context(), *path, true, func(s *board.Store) error {
				t, err := s.Update(args[0], p)
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD; empty clears it")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee")
	cmd.Flags().IntVar(&order, "order", 0, "position within the column")
	return cmd
}

func moveCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "move [id] [status] [order]",
		Short: "Move a task to a column position; without order it goes last",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			order := math.MaxInt
			if len(args) == 3 {
				if order, err = strconv.Atoi(args[2]); err != nil {
					return domain.Invalid("order", "not a number: %q", args[2])
				}
			}
			return withBoard(cmd.Context(), *path, true, func(s *board.Store) error {
				t, err := s.Move(args[0], status, order)
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
}

func rmCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), *path, true, func(s *board.Store) error {
				return s.Delete(args[0])
			})
		},
	}
}

func seedCmd(path *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Replace the board with the tasks of a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := storage.LoadSeed(args[0])
			if err != nil {
				return err
			}
			return withBoard(cmd.Context(), *path, true, func(s *board.Store) error {
				if s.Len() > 0 && !force {
					return fmt.Errorf("board already has %d tasks, use --force to replace them", s.Len())
				}
				if err := s.Load(tasks); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d tasks\n", s.Len())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace a non-empty board")
	return cmd
}

func checkCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that every column is densely ordered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), *path, false, func(s *board.Store) error {
				if err := s.Check(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %d tasks\n", s.Len())
				return nil
			})
		},
	}
}
