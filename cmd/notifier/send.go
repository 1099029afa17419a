package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/slipverify/notifier/pkg/notification"
)

func sendCmd() *cobra.Command {
	var (
		req      notification.SendRequest
		userID   string
		priority int
		sync     bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Queue or send a single notification",
		Long: `Queue a notification for the consumers, or deliver it right away with --sync.

Examples:
  notifier send --user 3f1c... --channel email --to user@example.com --title "Slip verified" --message "Thanks"
  notifier send --user 3f1c... --channel line --template SLIP_VERIFIED -p slipId=S-42 --sync`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			req.UserID = uid
			p := notification.Priority(priority)
			req.Priority = &p

			msg, err := req.ToMessage()
			if err != nil {
				return err
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if !sync {
				id, err := a.service.QueueNotification(ctx, msg)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, id)
				return nil
			}

			res, err := a.service.SendNotification(ctx, msg)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&userID, "user", "", "recipient user id")
	f.StringVar(&req.Channel, "channel", "", "delivery channel (chat_push, email, sms, push)")
	f.StringVar(&req.Title, "title", "", "notification title")
	f.StringVar(&req.Message, "message", "", "notification body")
	f.IntVar(&priority, "priority", int(notification.PriorityNormal), "priority from 0 (low) to 3 (urgent)")
	f.StringVar(&req.TemplateCode, "template", "", "template code")
	f.StringToStringVarP(&req.Placeholders, "placeholder", "p", nil, "template placeholder key=value")
	f.StringVar(&req.Language, "lang", "", "template language, e.g. th or en")
	f.StringVar(&req.CallbackURL, "callback", "", "URL receiving the delivery report")
	f.StringVar(&req.Recipient.Email, "to", "", "recipient email address")
	f.StringVar(&req.Recipient.Phone, "phone", "", "recipient phone number")
	f.StringVar(&req.Recipient.DeviceToken, "device-token", "", "recipient device token")
	f.StringVar(&req.Recipient.ChatToken, "chat-token", "", "recipient chat push token")
	f.BoolVar(&sync, "sync", false, "send now instead of queueing")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}
