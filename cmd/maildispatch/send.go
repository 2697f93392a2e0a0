package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/maildispatch/email"
)

const defaultSendURL = "http://localhost:3001/api/email/send"

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a message to a running service",
		Example: `  maildispatch send
  maildispatch send --to alice@example.com --subject Hi --body "Hello" --priority 5`,
		RunE: runSend,
	}
	cmd.Flags().String("url", defaultSendURL, "send endpoint")
	cmd.Flags().String("to", "recipient@example.com", "recipient address")
	cmd.Flags().String("subject", "Test Email", "subject line")
	cmd.Flags().String("body", "This is a test email sent using the EmailService.", "message body")
	cmd.Flags().Int("priority", 0, "queue priority, higher first")
	cmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	return cmd
}

func runSend(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	url, _ := flags.GetString("url")
	timeout, _ := flags.GetDuration("timeout")

	var msg email.Message
	msg.To, _ = flags.GetString("to")
	msg.Subject, _ = flags.GetString("subject")
	msg.Body, _ = flags.GetString("body")

	req := resty.New().SetTimeout(timeout).R().
		SetContext(cmd.Context()).
		SetHeader("Content-Type", "application/json").
		SetBody(msg)
	if flags.Changed("priority") {
		priority, _ := flags.GetInt("priority")
		req.SetQueryParam("priority", strconv.Itoa(priority))
	}

	result, err := sendMessage(req, url)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

type sendError struct {
	Error string `json:"error"`
}

func sendMessage(req *resty.Request, url string) (email.Result, error) {
	var result email.Result
	var failure sendError

	resp, err := req.SetResult(&result).SetError(&failure).Post(url)
	if err != nil {
		return email.Result{}, fmt.Errorf("send request: %w", err)
	}
	if resp.IsError() {
		if failure.Error == "" {
			return email.Result{}, fmt.Errorf("send failed: %s", resp.Status())
		}
		return email.Result{}, errors.New("send failed: " + failure.Error)
	}
	return result, nil
}
