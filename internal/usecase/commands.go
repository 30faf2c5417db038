package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"guide-bot/internal/content"
	"guide-bot/internal/domain"
)

type invocation struct {
	msg  CommandMessage
	args []string
}

type command struct {
	name  string
	admin bool
	usage string
	help  string
	run   func(ctx context.Context, d *Dispatcher, inv invocation) error
}

// commandTable returns the commands sorted longest name first, so a command
// whose name extends another one is matched before it.
func commandTable() []command {
	cmds := []command{
		{name: "/start", usage: "/start", help: "open the main menu", run: cmdMenu},
		{name: "/menu", usage: "/menu", help: "open the main menu", run: cmdMenu},
		{name: "/help", usage: "/help", help: "show this help", run: cmdHelp},
		{name: "/guides", usage: "/guides", help: "browse the guides", run: cmdGuides},
		{name: "/mykey", usage: "/mykey", help: "show your VPN keys", run: cmdMyKey},
		{name: "/payment", usage: "/payment", help: "how to pay for a plan", run: cmdPayment},

		{name: "/addguidestep", admin: true, usage: `/addguidestep <GROUP> <step> "<text>" ["<mediaRef>"] ["<displayName>"] ["<downloadLink>"]`, help: "add or replace a guide step", run: cmdAddGuideStep},
		{name: "/delguidestep", admin: true, usage: "/delguidestep <GROUP> <step>", help: "delete a guide step", run: cmdDelGuideStep},
		{name: "/delguide", admin: true, usage: "/delguide <GROUP>", help: "delete every step of a guide", run: cmdDelGuide},
		{name: "/listguides", admin: true, usage: "/listguides", help: "list guides and their steps", run: cmdListGuides},
		{name: "/addguidedownload", admin: true, usage: "/addguidedownload <GROUP> <step> <url>", help: "attach a download link to a step", run: cmdAddGuideDownload},
		{name: "/setwelcome", admin: true, usage: `/setwelcome "<text>" ["<mediaRef>"]`, help: "set the welcome message", run: cmdSetWelcome},
		{name: "/delwelcome", admin: true, usage: "/delwelcome", help: "restore the default welcome message", run: cmdDelWelcome},
		{name: "/addoperator", admin: true, usage: `/addoperator <CODE> "<name>" ["<mediaRef>"]`, help: "add or replace an operator button", run: cmdAddOperator},
		{name: "/deloperator", admin: true, usage: "/deloperator <CODE>", help: "delete an operator button", run: cmdDelOperator},
		{name: "/listoperators", admin: true, usage: "/listoperators", help: "list operator buttons", run: cmdListOperators},
		{name: "/addprice", admin: true, usage: `/addprice <TYPE> <ID> <amount> "<name>" ["<description>"]`, help: "add or replace a price", run: cmdAddPrice},
		{name: "/delprice", admin: true, usage: "/delprice <TYPE> <ID>", help: "delete a price", run: cmdDelPrice},
		{name: "/listproducts", admin: true, usage: "/listproducts <TYPE>", help: "list prices of an item type", run: cmdListProducts},
		{name: "/checkuser", admin: true, usage: "/checkuser <userId>", help: "show a user's trial status", run: cmdCheckUser},
		{name: "/resetuser", admin: true, usage: "/resetuser <userId>", help: "clear a user's trial status", run: cmdResetUser},
		{name: "/addkey", admin: true, usage: `/addkey <OPERATOR> <TYPE> "<key>"`, help: "add a VPN key to stock", run: cmdAddKey},
		{name: "/delkey", admin: true, usage: "/delkey <keyId>", help: "delete a VPN key", run: cmdDelKey},
		{name: "/listkeys", admin: true, usage: "/listkeys [<OPERATOR>] [<TYPE>]", help: "list stocked VPN keys", run: cmdListKeys},
		{name: "/givekey", admin: true, usage: "/givekey <userId> <OPERATOR> <TYPE> [days]", help: "hand a stocked key to a user", run: cmdGiveKey},
		{name: "/revoke", admin: true, usage: "/revoke <keyId>", help: "revoke a user's key", run: cmdRevoke},
		{name: "/payments", admin: true, usage: "/payments", help: "list payments awaiting review", run: cmdPayments},
	}
	sort.SliceStable(cmds, func(i, j int) bool { return len(cmds[i].name) > len(cmds[j].name) })
	return cmds
}

// matchCommand finds the command text starts with, case-insensitively. The
// name must end at whitespace, at the end of text or at an "@bot" suffix. It
// returns the command, the suffix (without "@") and the remaining text.
func matchCommand(cmds []command, text string) (command, string, string, bool) {
	for _, c := range cmds {
		if len(text) < len(c.name) || !strings.EqualFold(text[:len(c.name)], c.name) {
			continue
		}
		rest := text[len(c.name):]
		if rest == "" {
			return c, "", "", true
		}
		r, _ := utf8.DecodeRuneInString(rest)
		switch {
		case unicode.IsSpace(r):
			return c, "", rest, true
		case r == '@':
			end := strings.IndexFunc(rest, unicode.IsSpace)
			if end < 0 {
				return c, rest[1:], "", true
			}
			return c, rest[1:end], rest[end:], true
		}
	}
	return command{}, "", "", false
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev CommandMessage) error {
	cmd, target, rest, ok := matchCommand(d.commands, ev.Text)
	if !ok {
		if i := strings.Index(firstField(ev.Text), "@"); i > 0 {
			target = firstField(ev.Text)[i+1:]
		}
	}
	if target != "" && !d.addressedToUs(ctx, target) {
		slog.Debug("command addressed to another bot", "chat_id", ev.Chat.ID, "target", target)
		return nil
	}
	if !ok {
		slog.Warn("unknown command", "chat_id", ev.Chat.ID, "user_id", ev.From.ID, "text", firstField(ev.Text))
		return d.reply(ctx, ev.Chat.ID, textUnknownCommand)
	}
	if cmd.admin && !d.isAdmin(ev.From.ID) {
		slog.Warn("unauthorized command", "chat_id", ev.Chat.ID, "user_id", ev.From.ID, "command", cmd.name)
		return d.reply(ctx, ev.Chat.ID, textDenied)
	}

	args, err := parseArgs(rest)
	if err != nil {
		err = newError(ErrorInvalidInput, "unbalanced_quotes", err)
	} else {
		err = cmd.run(ctx, d, invocation{msg: ev, args: args})
	}
	if err == nil {
		return nil
	}
	slog.Warn("command failed", "chat_id", ev.Chat.ID, "user_id", ev.From.ID, "command", cmd.name, "err", err)
	return d.reply(ctx, ev.Chat.ID, errorReply(err, cmd.usage))
}

// addressedToUs reports whether a "/cmd@target" suffix names this bot. When
// the identity cannot be fetched the command is assumed to be ours.
func (d *Dispatcher) addressedToUs(ctx context.Context, target string) bool {
	me, err := d.botIdentity(ctx)
	if err != nil || me.Username == "" {
		return true
	}
	return strings.EqualFold(me.Username, target)
}

func errorReply(err error, usage string) string {
	switch codeOf(err) {
	case ErrorInvalidInput:
		return "⚠️ Usage: " + usage
	case ErrorUnauthorized:
		return textDenied
	case ErrorNotFound:
		return textNotFound
	case ErrorStorage:
		return textStorageFailed
	default:
		return textFailed
	}
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}

// ---------------------------------------------------------------------------
// argument helpers
// ---------------------------------------------------------------------------

func requireArgs(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return newError(ErrorInvalidInput, "wrong_argument_count", nil)
	}
	return nil
}

func parseCode(s string) (string, error) {
	code := content.NormalizeCode(s)
	if !content.ValidSegment(code) {
		return "", newError(ErrorInvalidInput, "invalid_code", nil)
	}
	return code, nil
}

func parseStepNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, newError(ErrorInvalidInput, "invalid_step_number", err)
	}
	return n, nil
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, newError(ErrorInvalidInput, "invalid_user_id", err)
	}
	return id, nil
}

func parseLink(s string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", newError(ErrorInvalidInput, "invalid_link", err)
	}
	return u.String(), nil
}

func requireText(s, reason string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", newError(ErrorInvalidInput, reason, nil)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// public commands
// ---------------------------------------------------------------------------

func cmdMenu(ctx context.Context, d *Dispatcher, inv invocation) error {
	return d.showMainMenu(ctx, domain.Screen{ChatID: inv.msg.Chat.ID})
}

func cmdGuides(ctx context.Context, d *Dispatcher, inv invocation) error {
	return d.showGuideMenu(ctx, inv.msg.Chat.ID)
}

func cmdHelp(ctx context.Context, d *Dispatcher, inv invocation) error {
	admin := d.isAdmin(inv.msg.From.ID)
	var public, manage []string
	for _, c := range d.commands {
		line := fmt.Sprintf("%s - %s", c.usage, c.help)
		switch {
		case !c.admin:
			public = append(public, line)
		case admin:
			manage = append(manage, line)
		}
	}
	sort.Strings(public)
	sort.Strings(manage)

	var b strings.Builder
	b.WriteString("ℹ️ Commands:\n")
	b.WriteString(strings.Join(public, "\n"))
	if len(manage) > 0 {
		b.WriteString("\n\n🛠 Admin commands:\n")
		b.WriteString(strings.Join(manage, "\n"))
	}
	return d.reply(ctx, inv.msg.Chat.ID, b.String())
}

// ---------------------------------------------------------------------------
// guide management
// ---------------------------------------------------------------------------

func cmdAddGuideStep(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 3, 6); err != nil {
		return err
	}
	group, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	n, err := parseStepNumber(inv.args[1])
	if err != nil {
		return err
	}
	text, err := requireText(inv.args[2], "empty_step_text")
	if err != nil {
		return err
	}
	step := domain.GuideStep{
		GroupCode:   group,
		StepNumber:  n,
		Text:        text,
		MediaRef:    optionalArg(inv.args, 3),
		DisplayName: optionalArg(inv.args, 4),
	}
	if link := optionalArg(inv.args, 5); link != "" {
		if step.DownloadLink, err = parseLink(link); err != nil {
			return err
		}
	}
	if !d.content.PutStep(ctx, step) {
		return newError(ErrorStorage, "put_step", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("✅ Saved %s step %d.", group, n))
}

func cmdDelGuideStep(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 2, 2); err != nil {
		return err
	}
	group, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	n, err := parseStepNumber(inv.args[1])
	if err != nil {
		return err
	}
	if _, ok := d.content.GetStep(ctx, group, n); !ok {
		return newError(ErrorNotFound, "step_not_found", nil)
	}
	if !d.content.DeleteStep(ctx, group, n) {
		return newError(ErrorStorage, "delete_step", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("🗑 Deleted %s step %d.", group, n))
}

func cmdDelGuide(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 1); err != nil {
		return err
	}
	group, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	if len(d.content.ListStepNumbers(ctx, group)) == 0 {
		return newError(ErrorNotFound, "group_not_found", nil)
	}
	deleted := d.content.DeleteGroup(ctx, group)
	if deleted == 0 {
		return newError(ErrorStorage, "delete_group", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("🗑 Deleted %d records of %s.", deleted, group))
}

func cmdListGuides(ctx context.Context, d *Dispatcher, inv invocation) error {
	groups := d.content.ListGroupCodes(ctx)
	if len(groups) == 0 {
		return d.reply(ctx, inv.msg.Chat.ID, textNoGuides)
	}
	var b strings.Builder
	b.WriteString("📚 Stored guides:\n")
	for _, g := range groups {
		steps := d.content.ListStepNumbers(ctx, g)
		nums := make([]string, len(steps))
		for i, n := range steps {
			nums[i] = strconv.Itoa(n)
		}
		fmt.Fprintf(&b, "\n• %s: steps %s", g, strings.Join(nums, ", "))
	}
	return d.reply(ctx, inv.msg.Chat.ID, b.String())
}

// cmdAddGuideDownload is a read-modify-write; concurrent edits of the same
// step are last-writer-wins.
func cmdAddGuideDownload(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 3, 3); err != nil {
		return err
	}
	group, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	n, err := parseStepNumber(inv.args[1])
	if err != nil {
		return err
	}
	link, err := parseLink(inv.args[2])
	if err != nil {
		return err
	}
	step, ok := d.content.GetStep(ctx, group, n)
	if !ok {
		return newError(ErrorNotFound, "step_not_found", nil)
	}
	step.DownloadLink = link
	if !d.content.PutStep(ctx, step) {
		return newError(ErrorStorage, "put_step", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("✅ Download link set for %s step %d.", group, n))
}

// ---------------------------------------------------------------------------
// welcome management
// ---------------------------------------------------------------------------

func cmdSetWelcome(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 2); err != nil {
		return err
	}
	text, err := requireText(inv.args[0], "empty_welcome_text")
	if err != nil {
		return err
	}
	if !d.content.PutWelcome(ctx, domain.WelcomeConfig{Text: text, MediaRef: optionalArg(inv.args, 1)}) {
		return newError(ErrorStorage, "put_welcome", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, "✅ Welcome message saved.")
}

func cmdDelWelcome(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 0, 0); err != nil {
		return err
	}
	if !d.content.DeleteWelcome(ctx) {
		return newError(ErrorStorage, "delete_welcome", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, "🗑 Welcome message reset to the default.")
}

// ---------------------------------------------------------------------------
// operators and prices
// ---------------------------------------------------------------------------

func cmdAddOperator(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 2, 3); err != nil {
		return err
	}
	code, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	name, err := requireText(inv.args[1], "empty_operator_name")
	if err != nil {
		return err
	}
	op := domain.OperatorButton{Code: code, Name: name, MediaRef: optionalArg(inv.args, 2)}
	if !d.content.PutOperator(ctx, op) {
		return newError(ErrorStorage, "put_operator", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("✅ Operator %s saved.", code))
}

func cmdDelOperator(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 1); err != nil {
		return err
	}
	code, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	if _, ok := d.content.GetOperator(ctx, code); !ok {
		return newError(ErrorNotFound, "operator_not_found", nil)
	}
	if !d.content.DeleteOperator(ctx, code) {
		return newError(ErrorStorage, "delete_operator", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("🗑 Operator %s deleted.", code))
}

func cmdListOperators(ctx context.Context, d *Dispatcher, inv invocation) error {
	ops := d.content.ListOperators(ctx)
	if len(ops) == 0 {
		return d.reply(ctx, inv.msg.Chat.ID, textNoOperators)
	}
	var b strings.Builder
	b.WriteString("💰 Operators:\n")
	for _, op := range ops {
		fmt.Fprintf(&b, "\n• %s: %s", op.Code, op.Name)
		if op.MediaRef != "" {
			b.WriteString(" 🖼")
		}
	}
	return d.reply(ctx, inv.msg.Chat.ID, b.String())
}

func cmdAddPrice(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 4, 5); err != nil {
		return err
	}
	itemType, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	productID := strings.TrimSpace(inv.args[1])
	if !content.ValidSegment(productID) {
		return newError(ErrorInvalidInput, "invalid_product_id", nil)
	}
	amount, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(inv.args[2]), ",", ""), 10, 64)
	if err != nil || amount < 0 {
		return newError(ErrorInvalidInput, "invalid_amount", err)
	}
	name, err := requireText(inv.args[3], "empty_product_name")
	if err != nil {
		return err
	}
	p := domain.ProductPrice{
		ItemType:    itemType,
		ProductID:   productID,
		Name:        name,
		Amount:      amount,
		Description: optionalArg(inv.args, 4),
	}
	if !d.content.PutPrice(ctx, p) {
		return newError(ErrorStorage, "put_price", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("✅ Price %s/%s saved: %s %s.", itemType, productID, formatAmount(amount), d.texts.PriceCurrency))
}

func cmdDelPrice(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 2, 2); err != nil {
		return err
	}
	itemType, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	productID := strings.TrimSpace(inv.args[1])
	if !content.ValidSegment(productID) {
		return newError(ErrorInvalidInput, "invalid_product_id", nil)
	}
	if _, ok := d.content.GetPrice(ctx, itemType, productID); !ok {
		return newError(ErrorNotFound, "price_not_found", nil)
	}
	if !d.content.DeletePrice(ctx, itemType, productID) {
		return newError(ErrorStorage, "delete_price", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("🗑 Price %s/%s deleted.", itemType, productID))
}

func cmdListProducts(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 1); err != nil {
		return err
	}
	itemType, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	prices := d.content.ListPrices(ctx, itemType)
	if len(prices) == 0 {
		return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("No prices for %s yet.", itemType))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Prices for %s:\n", itemType)
	for _, p := range prices {
		fmt.Fprintf(&b, "\n• %s - %s: %s %s", p.ProductID, p.Name, formatAmount(p.Amount), d.texts.PriceCurrency)
	}
	return d.reply(ctx, inv.msg.Chat.ID, b.String())
}

// ---------------------------------------------------------------------------
// trial bookkeeping
// ---------------------------------------------------------------------------

func cmdCheckUser(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 1); err != nil {
		return err
	}
	id, err := parseUserID(inv.args[0])
	if err != nil {
		return err
	}
	st, ok := d.content.GetTrial(ctx, id)
	if !ok || !st.Used {
		return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("👤 User %d has not used the free trial.", id))
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("👤 User %d used the free trial at %s.\nRequest: %s",
		id, st.UsedAt.UTC().Format("2006-01-02 15:04 MST"), st.RequestID))
}

func cmdResetUser(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 1); err != nil {
		return err
	}
	id, err := parseUserID(inv.args[0])
	if err != nil {
		return err
	}
	if !d.content.DeleteTrial(ctx, id) {
		return newError(ErrorStorage, "delete_trial", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("♻️ Trial status of user %d cleared.", id))
}
