// Package notify is the notification delivery engine: multi-tenant
// notification creation, per-recipient preference gating, channel fan-out,
// and a queue-driven retry pipeline.
//
// A Notification is one logical event for one recipient; each requested
// channel gets a Delivery record tracking its own attempts. Creation
// deduplicates on an optional tenant-scoped key, then submits a processing
// job on the lane matching the notification's priority. Processing runs the
// preference gate (channel and category toggles, quiet hours, daily caps)
// and one send attempt per delivery; transient failures retry with
// exponential backoff up to three times.
//
// Delivery is at-least-once: a crash between a send and its bookkeeping can
// repeat the send, and a stalled-retry sweep re-enqueues deliveries whose
// retry job was lost. Preference-blocked deliveries are cancelled with a
// recorded reason, not errored.
//
// Usage:
//
//	enq, _ := queue.NewEnqueuer(storage)
//	svc, _ := notify.NewService(repo, enq,
//		[]notify.ChannelSender{
//			notify.NewEmailChannelSender(mailer),
//			notify.NewInAppChannelSender(inbox),
//		},
//		notify.WithPreferenceStore(prefs),
//		notify.WithSendCounter(counter),
//	)
//
//	worker, _ := queue.NewWorker(storage)
//	worker.RegisterHandlers(svc.Handlers()...)
//	worker.Start(ctx)
//
//	res, err := svc.Create(ctx, notify.CreateParams{
//		TenantID:    "gym_123",
//		RecipientID: "member_456",
//		Category:    notify.CategoryBilling,
//		Priority:    notify.PriorityHigh,
//		Title:       "Payment failed",
//		Message:     "We could not charge your card on file.",
//		Channels:    []notify.Channel{notify.ChannelEmail, notify.ChannelInApp},
//		DedupKey:    "payment-failed-inv-789",
//	})
package notify
