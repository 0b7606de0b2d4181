// Package email sends notification emails through Postmark, or writes them to
// disk in development.
//
//	sender, err := email.NewSender(cfg)
//	body, err := email.RenderNotification(email.Notification{Title: "Hi", Message: "..."})
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Hi",
//		BodyHTML: body,
//		Tag:      "notification",
//	})
//
// NewSender picks Postmark when both tokens are set and DevSender otherwise.
package email
