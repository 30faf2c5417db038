package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"guide-bot/internal/domain"
	"guide-bot/internal/navigator"
)

// Fixed replies.
const (
	textUnknownCommand = "❌ Unknown command. Send /help to see what I can do."
	textUnknownAction  = "❌ This button is no longer supported."
	textDenied         = "❌ You are not allowed to use this command."
	textNotFound       = "❌ Not found."
	textStorageFailed  = "❌ Could not save the changes. Please try again later."
	textFailed         = "❌ Something went wrong. Please try again later."
	textHint           = "Send /menu to see what I can do."
	textNoGuides       = "No guides yet."
	textNoOperators    = "No operators yet."
	textStepGone       = "This step is no longer available."
	textTrialUsed      = "You have already used your free trial."
	textTrialRequested = "🎁 Your free trial request was received. An administrator will contact you shortly."
	textPrivateOnly    = "🔒 Please send this command to me in a private chat."

	textPaymentHint      = "💳 To pay, open /menu, choose a product under 💰 Pricing and send the transfer receipt photo here."
	textNoOpenOrder      = "🧾 You have no open order. Open /menu and choose a product under 💰 Pricing first."
	textReceiptReceived  = "✅ Receipt received. An administrator will review your payment shortly."
	textPaymentDecided   = "This payment was already reviewed."
	textPaymentRejected  = "❌ Payment %s was rejected. Please contact support if you think this is a mistake."
	textPaymentApproved  = "✅ Payment %s was approved. An administrator will send your key shortly."
	textNoActiveKeys     = "🔑 You have no active keys. Open /menu to buy one."
	textNoKeys           = "No keys in stock."
	textNoPendingPayment = "No payments awaiting review."

	textGuideMenu    = "📚 Choose a guide:"
	textOperatorMenu = "💰 Choose an operator to see prices:"
)

var (
	buttonMainMenu  = domain.NavigateButton("🏠 Main menu", tokenMainMenu)
	buttonGuides    = domain.NavigateButton("↩️ Guides", tokenGuideMenu)
	buttonOperators = domain.NavigateButton("↩️ Operators", tokenOperatorMenu)
)

// Texts are deployment-specific strings used on the built-in screens.
type Texts struct {
	SupportContact string
	SupportLink    string
	PriceCurrency  string
	DefaultWelcome string
}

func mainMenuContent(w domain.WelcomeConfig, texts Texts) domain.Content {
	text := strings.TrimSpace(w.Text)
	if text == "" {
		text = texts.DefaultWelcome
	}
	return domain.Content{
		Text:     text,
		MediaRef: w.MediaRef,
		Buttons: [][]domain.Button{
			{domain.NavigateButton("📚 Guides", tokenGuideMenu)},
			{domain.NavigateButton("💰 Pricing", tokenOperatorMenu)},
			{domain.NavigateButton("🎁 Free trial", tokenTrial)},
			{domain.NavigateButton("💬 Support", tokenSupportMenu)},
		},
	}
}

func supportContent(texts Texts) domain.Content {
	var b strings.Builder
	b.WriteString("💬 Need help? Reach us here:\n")
	var links []domain.Button
	if c := strings.TrimSpace(texts.SupportContact); c != "" {
		fmt.Fprintf(&b, "\n👤 Admin: %s", c)
		if u, ok := contactURL(c); ok {
			links = append(links, domain.LinkButton("👤 Message admin", u))
		}
	}
	if l := strings.TrimSpace(texts.SupportLink); l != "" {
		fmt.Fprintf(&b, "\n👥 Support group: %s", l)
		links = append(links, domain.LinkButton("👥 Support group", l))
	}

	var rows [][]domain.Button
	for _, l := range links {
		rows = append(rows, []domain.Button{l})
	}
	rows = append(rows, []domain.Button{buttonMainMenu})
	return domain.Content{Text: b.String(), Buttons: rows}
}

// contactURL turns an @username into a t.me link.
func contactURL(contact string) (string, bool) {
	if strings.HasPrefix(contact, "https://") {
		return contact, true
	}
	name := strings.TrimPrefix(contact, "@")
	if name == contact || name == "" {
		return "", false
	}
	return "https://t.me/" + name, true
}

func guideMenuContent(groups []string) domain.Content {
	rows := make([][]domain.Button, 0, len(groups)+1)
	for _, g := range groups {
		rows = append(rows, []domain.Button{domain.NavigateButton(g, guideToken(g))})
	}
	rows = append(rows, []domain.Button{buttonMainMenu})
	return domain.Content{Text: textGuideMenu, Buttons: rows}
}

func stepContent(step domain.GuideStep, pos navigator.Position) domain.Content {
	text := fmt.Sprintf("📚 %s · Step %d of %d\n\n%s", step.Title(), pos.Index+1, pos.Total, step.Text)

	var rows [][]domain.Button
	var nav []domain.Button
	if pos.HasPrevious {
		nav = append(nav, domain.NavigateButton("⬅️ Previous", guideStepToken(step.GroupCode, pos.Previous)))
	}
	if pos.HasNext {
		nav = append(nav, domain.NavigateButton("Next ➡️", guideStepToken(step.GroupCode, pos.Next)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	if step.DownloadLink != "" {
		rows = append(rows, []domain.Button{domain.LinkButton("📥 Download", step.DownloadLink)})
	}
	rows = append(rows, []domain.Button{buttonGuides, buttonMainMenu})
	return domain.Content{Text: text, MediaRef: step.MediaRef, Buttons: rows}
}

func operatorMenuContent(ops []domain.OperatorButton) domain.Content {
	rows := make([][]domain.Button, 0, len(ops)+1)
	for _, op := range ops {
		rows = append(rows, []domain.Button{domain.NavigateButton(op.Name, operatorToken(op.Code))})
	}
	rows = append(rows, []domain.Button{buttonMainMenu})
	return domain.Content{Text: textOperatorMenu, Buttons: rows}
}

func operatorContent(op domain.OperatorButton, prices []domain.ProductPrice, currency string) domain.Content {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 %s\n", op.Name)
	if len(prices) == 0 {
		b.WriteString("\nNo prices yet.")
	}
	for _, p := range prices {
		fmt.Fprintf(&b, "\n• %s: %s %s", p.Name, formatAmount(p.Amount), currency)
		if p.Description != "" {
			fmt.Fprintf(&b, "\n  %s", p.Description)
		}
	}
	rows := make([][]domain.Button, 0, len(prices)+1)
	for _, p := range prices {
		rows = append(rows, []domain.Button{domain.NavigateButton("🛒 "+p.Name, buyToken(op.Code, p.ProductID))})
	}
	rows = append(rows, []domain.Button{buttonOperators, buttonMainMenu})
	return domain.Content{Text: b.String(), MediaRef: op.MediaRef, Buttons: rows}
}

func orderText(p domain.Payment, name, currency string) string {
	return fmt.Sprintf("🧾 Order %s\n%s: %s %s\n\nTransfer the amount, then send the receipt photo to me in a private chat.",
		p.ID, name, formatAmount(p.Amount), currency)
}

// receiptContent is the review card sent to administrators.
func receiptContent(p domain.Payment, currency string) domain.Content {
	who := describeUser(p.UserID, p.Username)
	return domain.Content{
		Text: fmt.Sprintf("🧾 Payment %s from %s\n%s/%s: %s %s",
			p.ID, who, p.ItemType, p.ProductID, formatAmount(p.Amount), currency),
		MediaRef: p.ReceiptRef,
		Buttons: [][]domain.Button{{
			domain.NavigateButton("✅ Approve", paymentToken(paymentApprove, p.ID)),
			domain.NavigateButton("❌ Reject", paymentToken(paymentReject, p.ID)),
		}},
	}
}

func keyText(k domain.VPNKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔑 %s %s (id %s)\n%s", k.Operator, k.KeyType, k.ID, k.Secret)
	if k.ExpiresAt != nil {
		fmt.Fprintf(&b, "\nExpires %s", k.ExpiresAt.UTC().Format("2006-01-02"))
	}
	return b.String()
}

func describeUser(id int64, username string) string {
	if username != "" {
		return fmt.Sprintf("@%s (id %d)", username, id)
	}
	return fmt.Sprintf("id %d", id)
}

// formatAmount groups digits in thousands: 15000 -> 15,000.
func formatAmount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
