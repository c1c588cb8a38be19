// Package queue provides a repository-agnostic job queue partitioned into
// named lanes with independent parallelism bounds.
//
// The package is organised around two main components:
//
//   - Enqueuer — submits jobs for immediate, delayed, or absolutely-scheduled
//     execution; absolute schedules return a cancellable handle
//   - Worker   — claims due jobs lane by lane and dispatches them to a user
//     supplied Handler
//
// Components interact only through small repository interfaces, keeping the
// dispatch logic decoupled from persistence. Back the queue with any storage
// engine by implementing EnqueuerRepository and WorkerRepository; an in-memory
// implementation ships with the package for development and tests.
//
// # Lanes
//
// A Lane is a queue partition with its own concurrency bound. The default
// bounds (critical=10, high=8, normal=5, low=3, scheduled=4, retry=2) ensure a
// burst of low-priority jobs cannot starve critical dispatch.
//
// # Delivery semantics
//
// The queue is at-least-once: a claimed job whose lock expires (worker crash,
// network partition) is returned to pending and claimed again. Handlers must
// therefore be idempotent. Queue-level redelivery is bounded by the job's
// MaxRetries; domain-level retry policy belongs to the payload owner.
//
// # Usage
//
//	e, _ := queue.NewEnqueuer(repo)
//	_ = e.Enqueue(ctx, SendReminderPayload{MemberID: id},
//		queue.WithLane(queue.LaneHigh),
//		queue.WithDelay(30*time.Second),
//	)
//
//	scheduleID, _ := e.ScheduleAt(ctx, SendReminderPayload{MemberID: id}, at)
//	_ = e.CancelSchedule(ctx, scheduleID)
//
//	w, _ := queue.NewWorker(repo)
//	_ = w.RegisterHandler(queue.NewJobHandler(func(ctx context.Context, p SendReminderPayload) error {
//		return remind(ctx, p.MemberID)
//	}))
//	_ = w.Start(ctx)
//
// Package-level sentinel errors (e.g. ErrInvalidLane, ErrScheduleNotFound)
// signal violations of business invariants and can be checked with errors.Is.
package queue
