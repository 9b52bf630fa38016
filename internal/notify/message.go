package notify

import (
	"mortgagewatch/internal/quote"
)

const (
	// TemplateName selects the outbound email template rendered by the
	// messaging capability.
	TemplateName = "mortgage-new-rates"

	DefaultSubject = "New mortgage rates available."
	DefaultSender  = "Mortgage Watch <mortgage@localhost>"
)

// Message is the notification payload handed to the messaging capability.
// Template rendering and delivery happen downstream; this carries the
// structured data the template needs.
type Message struct {
	Template string        `json:"template"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	ToName   string        `json:"to_name"`
	Subject  string        `json:"subject"`
	Params   MessageParams `json:"params"`
}

type MessageParams struct {
	FullName string           `json:"FULLNAME"`
	BankName string           `json:"BANKNAME"`
	Rows     []quote.RowDelta `json:"ROWS"`
}

func buildMessage(sender, subject string, current quote.Quote, sub quote.Subscriber, rows []quote.RowDelta) Message {
	return Message{
		Template: TemplateName,
		From:     sender,
		To:       sub.Email,
		ToName:   sub.DisplayName(),
		Subject:  subject,
		Params: MessageParams{
			FullName: sub.DisplayName(),
			BankName: current.Name,
			Rows:     rows,
		},
	}
}
