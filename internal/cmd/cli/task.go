package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kindredgroup/scylla/internal/task"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

// NewTaskCommand constructs the `task` command group and subcommands.
func NewTaskCommand(logger logpkg.Logger) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Task lifecycle operations",
		Long: `Task lifecycle operations.

Task Lifecycle:
  ready → [lease] → running → [complete] → completed
                       ↓ (abort / cancel)
                    aborted / cancelled

Core Operations:
  add         Register a new task in a queue
  get         Show one task by rn
  list        List tasks by status, queue, or worker
  lease       Claim a specific ready task
  lease-batch Claim the next ready tasks from a queue
  heartbeat   Extend a lease and record progress
  yield       Hand a running task back for reassignment
  complete    Mark a running task as completed
  cancel      Cancel a ready or running task
  abort       Abort a running task with an error record
  reset       Return an expired lease to ready`,
	}

	taskCmd.AddCommand(
		newTaskAddCommand(logger),
		newTaskGetCommand(logger),
		newTaskListCommand(logger),
		newTaskLeaseCommand(logger),
		newTaskLeaseBatchCommand(logger),
		newTaskHeartbeatCommand(logger),
		newTaskYieldCommand(logger),
		newTaskCompleteCommand(logger),
		newTaskCancelCommand(logger),
		newTaskAbortCommand(logger),
		newTaskResetCommand(logger),
	)
	return taskCmd
}

func newTaskAddCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			rn, _ := cmd.Flags().GetString("rn")
			queue, _ := cmd.Flags().GetString("queue")
			priority, _ := cmd.Flags().GetInt("priority")
			spec, _ := cmd.Flags().GetString("spec")
			if rn == "" {
				rn = "task/" + uuid.NewString()
			}
			var raw json.RawMessage
			if spec != "" {
				if !json.Valid([]byte(spec)) {
					return fmt.Errorf("--spec is not valid JSON")
				}
				raw = json.RawMessage(spec)
			}
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			added, err := mgr.AddTask(cmd.Context(), rn, raw, queue, priority)
			if err != nil {
				return err
			}
			return printJSON(cmd, added)
		},
	}
	cmd.Flags().String("rn", "", "Task resource name (generated when empty)")
	cmd.Flags().String("queue", "default", "Queue name")
	cmd.Flags().Int("priority", 0, "Scheduling priority (higher first)")
	cmd.Flags().String("spec", "", "Task payload as a JSON document")
	return cmd
}

func newTaskGetCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "get <rn>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			got, err := mgr.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, got)
		},
	}
}

func newTaskListCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			queue, _ := cmd.Flags().GetString("queue")
			worker, _ := cmd.Flags().GetString("worker")
			limit, _ := cmd.Flags().GetInt("limit")
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			tasks, err := mgr.GetTasks(cmd.Context(), task.Filter{
				Status: task.Status(status),
				Queue:  queue,
				Worker: worker,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, tasks)
		},
	}
	cmd.Flags().String("status", "", "Filter by status: ready|running|completed|cancelled|aborted")
	cmd.Flags().String("queue", "", "Filter by queue")
	cmd.Flags().String("worker", "", "Filter by lease owner")
	cmd.Flags().Int("limit", 0, "Maximum number of tasks to return")
	return cmd
}

func newTaskLeaseCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease <rn>",
		Short: "Claim a specific ready task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worker, _ := cmd.Flags().GetString("worker")
			duration, _ := cmd.Flags().GetDuration("duration")
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			leased, err := mgr.LeaseTask(cmd.Context(), args[0], worker, duration)
			if err != nil {
				return err
			}
			return printJSON(cmd, leased)
		},
	}
	cmd.Flags().String("worker", "", "Worker claiming the lease")
	cmd.Flags().Duration("duration", 0, "Lease duration (default from config)")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newTaskLeaseBatchCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease-batch",
		Short: "Claim the next ready tasks from a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			limit, _ := cmd.Flags().GetInt("limit")
			worker, _ := cmd.Flags().GetString("worker")
			duration, _ := cmd.Flags().GetDuration("duration")
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			leased, err := mgr.LeaseTasks(cmd.Context(), queue, limit, worker, duration)
			if err != nil {
				return err
			}
			return printJSON(cmd, leased)
		},
	}
	cmd.Flags().String("queue", "", "Queue to claim from (all queues when empty)")
	cmd.Flags().Int("limit", 1, "Maximum number of tasks to claim")
	cmd.Flags().String("worker", "", "Worker claiming the leases")
	cmd.Flags().Duration("duration", 0, "Lease duration (default from config)")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newTaskHeartbeatCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heartbeat <rn>",
		Short: "Extend a lease and record progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worker, _ := cmd.Flags().GetString("worker")
			duration, _ := cmd.Flags().GetDuration("duration")
			var progress *float64
			if cmd.Flags().Changed("progress") {
				v, _ := cmd.Flags().GetFloat64("progress")
				progress = &v
			}
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			beat, err := mgr.HeartbeatTask(cmd.Context(), args[0], worker, progress, duration)
			if err != nil {
				return err
			}
			return printJSON(cmd, beat)
		},
	}
	cmd.Flags().String("worker", "", "Worker sending the heartbeat (must own the lease)")
	cmd.Flags().Float64("progress", 0, "Progress indication, 0 to 100")
	cmd.Flags().Duration("duration", 0, "New lease duration (default from config)")
	return cmd
}

func newTaskYieldCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "yield <rn>",
		Short: "Hand a running task back for reassignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			yielded, err := mgr.YieldTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, yielded)
		},
	}
}

func newTaskCompleteCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <rn>",
		Short: "Mark a running task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			completed, err := mgr.CompleteTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, completed)
		},
	}
}

func newTaskCancelCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <rn>",
		Short: "Cancel a ready or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			cancelled, err := mgr.CancelTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, cancelled)
		},
	}
}

func newTaskAbortCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abort <rn>",
		Short: "Abort a running task with an error record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			description, _ := cmd.Flags().GetString("description")
			errArgs, _ := cmd.Flags().GetString("args")
			if errArgs != "" && !json.Valid([]byte(errArgs)) {
				return fmt.Errorf("--args is not valid JSON")
			}
			if errArgs == "" {
				errArgs = "{}"
			}
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			aborted, err := mgr.AbortTask(cmd.Context(), args[0], task.Error{
				Code:        code,
				Args:        json.RawMessage(errArgs),
				Description: description,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, aborted)
		},
	}
	cmd.Flags().String("code", "", "Machine-readable error code")
	cmd.Flags().String("description", "", "Human-readable error description")
	cmd.Flags().String("args", "", "Error arguments as a JSON document")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newTaskResetCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <rn>",
		Short: "Return an expired lease to ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			reset, err := mgr.ResetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, reset)
		},
	}
}
