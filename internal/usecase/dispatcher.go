package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"guide-bot/internal/content"
	"guide-bot/internal/domain"
	"guide-bot/internal/navigator"
	"guide-bot/internal/screen"
)

// Messenger is the outbound platform surface used by the dispatcher.
type Messenger interface {
	screen.Messenger
	AnswerAction(ctx context.Context, actionID, text string, alert bool) error
	Me(ctx context.Context) (domain.BotIdentity, error)
	ChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

// ContentStore is the content repository as seen by the handlers.
type ContentStore interface {
	PutStep(ctx context.Context, step domain.GuideStep) bool
	GetStep(ctx context.Context, group string, n int) (domain.GuideStep, bool)
	DeleteStep(ctx context.Context, group string, n int) bool
	DeleteGroup(ctx context.Context, group string) int
	ListGroupCodes(ctx context.Context) []string
	ListStepNumbers(ctx context.Context, group string) []int

	GetWelcome(ctx context.Context) (domain.WelcomeConfig, bool)
	PutWelcome(ctx context.Context, w domain.WelcomeConfig) bool
	DeleteWelcome(ctx context.Context) bool

	PutOperator(ctx context.Context, op domain.OperatorButton) bool
	GetOperator(ctx context.Context, code string) (domain.OperatorButton, bool)
	DeleteOperator(ctx context.Context, code string) bool
	ListOperators(ctx context.Context) []domain.OperatorButton

	PutPrice(ctx context.Context, p domain.ProductPrice) bool
	GetPrice(ctx context.Context, itemType, productID string) (domain.ProductPrice, bool)
	DeletePrice(ctx context.Context, itemType, productID string) bool
	ListPrices(ctx context.Context, itemType string) []domain.ProductPrice

	GetTrial(ctx context.Context, userID int64) (domain.TrialStatus, bool)
	PutTrial(ctx context.Context, t domain.TrialStatus) bool
	DeleteTrial(ctx context.Context, userID int64) bool

	PutKey(ctx context.Context, k domain.VPNKey) bool
	DeleteKey(ctx context.Context, k domain.VPNKey) bool
	ListKeys(ctx context.Context, operator, keyType string) []domain.VPNKey
	FindKey(ctx context.Context, id string) (domain.VPNKey, bool)
	KeysOf(ctx context.Context, userID int64) []domain.VPNKey
	UpdateKeyStatus(ctx context.Context, id string, status domain.KeyStatus, assignedTo int64, expiresAt *time.Time) (domain.VPNKey, bool)

	PutPayment(ctx context.Context, p domain.Payment) bool
	GetPayment(ctx context.Context, id string) (domain.Payment, bool)
	ListPayments(ctx context.Context, status domain.PaymentStatus) []domain.Payment
	PendingPaymentOf(ctx context.Context, userID int64) (domain.Payment, bool)
	UpdatePaymentStatus(ctx context.Context, id string, d content.Decision) (domain.Payment, bool)
}

// Dispatcher classifies inbound updates and routes them to handlers under the
// admin allow-list and the chat-scope gate. It keeps no per-chat state.
type Dispatcher struct {
	content   ContentStore
	messenger Messenger
	renderer  *screen.Renderer
	admins    map[int64]bool
	adminIDs  []int64
	texts     Texts
	commands  []command
	identity  identityCache
}

func NewDispatcher(c ContentStore, m Messenger, adminIDs []int64, texts Texts) (*Dispatcher, error) {
	if c == nil {
		return nil, errors.New("usecase: content store must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	r, err := screen.NewRenderer(m)
	if err != nil {
		return nil, fmt.Errorf("usecase: create renderer: %w", err)
	}
	if strings.TrimSpace(texts.PriceCurrency) == "" {
		texts.PriceCurrency = "MMK"
	}
	if strings.TrimSpace(texts.DefaultWelcome) == "" {
		texts.DefaultWelcome = "Welcome! Choose an option below."
	}

	d := &Dispatcher{
		content:   c,
		messenger: m,
		renderer:  r,
		admins:    make(map[int64]bool, len(adminIDs)),
		texts:     texts,
		commands:  commandTable(),
	}
	for _, id := range adminIDs {
		if !d.admins[id] {
			d.admins[id] = true
			d.adminIDs = append(d.adminIDs, id)
		}
	}
	sort.Slice(d.adminIDs, func(i, j int) bool { return d.adminIDs[i] < d.adminIDs[j] })
	return d, nil
}

// Handle classifies u and dispatches it.
func (d *Dispatcher) Handle(ctx context.Context, u tgbotapi.Update) error {
	return d.Dispatch(ctx, Classify(u))
}

// Dispatch handles one event to completion. The returned error is for logging
// only: every path has already answered the user when possible.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case CommandMessage:
		return d.handleCommand(ctx, ev)
	case TextMessage:
		return d.handleText(ctx, ev)
	case PhotoMessage:
		return d.handlePhoto(ctx, ev)
	case MenuAction:
		return d.handleAction(ctx, ev)
	case MembershipChange:
		slog.Info("membership changed", "chat_id", ev.ChatID, "user_ids", ev.UserIDs, "status", ev.Status)
		return nil
	case Unsupported:
		slog.Debug("ignoring update", "update_id", ev.UpdateID, "reason", ev.Reason)
		return nil
	default:
		slog.Warn("unhandled event variant", "type", fmt.Sprintf("%T", ev))
		return nil
	}
}

func (d *Dispatcher) isAdmin(userID int64) bool {
	return userID != 0 && d.admins[userID]
}

// passesChatGate applies the chat-scope gate. Private chats always pass; in
// group chats a message must be a command, mention the bot, or come from an
// allow-listed or chat administrator. The platform is only consulted when the
// cheaper checks fail.
func (d *Dispatcher) passesChatGate(ctx context.Context, chat Chat, from Sender, text string, isCommand bool) bool {
	if chat.Private || isCommand || d.isAdmin(from.ID) {
		return true
	}
	if d.mentionsBot(ctx, text) {
		return true
	}
	return d.isChatAdmin(ctx, chat.ID, from.ID)
}

func (d *Dispatcher) botIdentity(ctx context.Context) (domain.BotIdentity, error) {
	return d.identity.getOrFetch(ctx, d.messenger.Me)
}

func (d *Dispatcher) mentionsBot(ctx context.Context, text string) bool {
	if !strings.Contains(text, "@") {
		return false
	}
	me, err := d.botIdentity(ctx)
	if err != nil {
		slog.Warn("failed to fetch bot identity", "err", err)
		return false
	}
	if me.Username == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(me.Username))
}

func (d *Dispatcher) isChatAdmin(ctx context.Context, chatID, userID int64) bool {
	if userID == 0 {
		return false
	}
	status, err := d.messenger.ChatMemberStatus(ctx, chatID, userID)
	if err != nil {
		slog.Warn("failed to fetch chat member status", "chat_id", chatID, "user_id", userID, "err", err)
		return false
	}
	return status == "creator" || status == "administrator"
}

// reply sends text as one or more plain messages.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range screen.Split(text, screen.MaxMessageLength) {
		if _, err := d.messenger.SendText(ctx, chatID, chunk, nil); err != nil {
			slog.Error("failed to send reply", "chat_id", chatID, "err", err)
			return fmt.Errorf("usecase: reply: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) answer(ctx context.Context, actionID, text string, alert bool) error {
	if err := d.messenger.AnswerAction(ctx, actionID, text, alert); err != nil {
		slog.Error("failed to answer action", "action_id", actionID, "err", err)
		return fmt.Errorf("usecase: answer action: %w", err)
	}
	return nil
}

func (d *Dispatcher) notifyAdmins(ctx context.Context, text string) {
	for _, id := range d.adminIDs {
		if _, err := d.messenger.SendText(ctx, id, text, nil); err != nil {
			slog.Error("failed to notify admin", "user_id", id, "err", err)
		}
	}
}

// textRoute is the screen a free-text message asks for.
type textRoute int

const (
	routeNone textRoute = iota
	routeGuides
	routePrices
	routeSupport
	routeMenu
)

func routeText(text string) textRoute {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "guide"):
		return routeGuides
	case strings.Contains(lower, "price"):
		return routePrices
	case strings.Contains(lower, "support"):
		return routeSupport
	case strings.Contains(lower, "menu"):
		return routeMenu
	default:
		return routeNone
	}
}

// handleText routes keyword messages. In groups the gate runs only once a
// keyword matched, so ordinary chatter costs no platform calls.
func (d *Dispatcher) handleText(ctx context.Context, ev TextMessage) error {
	route := routeText(ev.Text)
	if route == routeNone {
		if ev.Chat.Private {
			return d.reply(ctx, ev.Chat.ID, textHint)
		}
		return nil
	}
	if !d.passesChatGate(ctx, ev.Chat, ev.From, ev.Text, false) {
		slog.Debug("text filtered by chat gate", "chat_id", ev.Chat.ID, "user_id", ev.From.ID)
		return nil
	}

	switch route {
	case routeGuides:
		return d.showGuideMenu(ctx, ev.Chat.ID)
	case routePrices:
		return d.showOperatorMenu(ctx, ev.Chat.ID)
	case routeSupport:
		return d.show(ctx, domain.Screen{ChatID: ev.Chat.ID}, supportContent(d.texts))
	default:
		return d.showMainMenu(ctx, domain.Screen{ChatID: ev.Chat.ID})
	}
}

// handlePhoto answers administrators with the media reference of the photo
// and treats photos from anyone else as a payment receipt. Photos in group
// chats are ignored.
func (d *Dispatcher) handlePhoto(ctx context.Context, ev PhotoMessage) error {
	if !ev.Chat.Private {
		slog.Debug("ignoring group photo", "chat_id", ev.Chat.ID, "user_id", ev.From.ID)
		return nil
	}
	if d.isAdmin(ev.From.ID) {
		return d.reply(ctx, ev.Chat.ID, "🖼 Media reference:\n"+ev.FileID)
	}
	return d.attachReceipt(ctx, ev)
}

// show renders c over prev, logging failures.
func (d *Dispatcher) show(ctx context.Context, prev domain.Screen, c domain.Content) error {
	if _, err := d.renderer.Render(ctx, prev, c); err != nil {
		slog.Error("failed to render screen", "chat_id", prev.ChatID, "err", err)
		return newError(ErrorUpstream, "render_failed", err)
	}
	return nil
}

func (d *Dispatcher) showMainMenu(ctx context.Context, prev domain.Screen) error {
	w, _ := d.content.GetWelcome(ctx)
	return d.show(ctx, prev, mainMenuContent(w, d.texts))
}

func (d *Dispatcher) showGuideMenu(ctx context.Context, chatID int64) error {
	groups := d.content.ListGroupCodes(ctx)
	if len(groups) == 0 {
		return d.reply(ctx, chatID, textNoGuides)
	}
	return d.show(ctx, domain.Screen{ChatID: chatID}, guideMenuContent(groups))
}

func (d *Dispatcher) showOperatorMenu(ctx context.Context, chatID int64) error {
	ops := d.content.ListOperators(ctx)
	if len(ops) == 0 {
		return d.reply(ctx, chatID, textNoOperators)
	}
	return d.show(ctx, domain.Screen{ChatID: chatID}, operatorMenuContent(ops))
}

// handleAction runs a menu action and always answers it, after rendering.
func (d *Dispatcher) handleAction(ctx context.Context, ev MenuAction) error {
	if ev.Screen.ChatID == 0 {
		slog.Warn("menu action without message", "action_id", ev.ID, "token", ev.Token)
		return d.answer(ctx, ev.ID, "", false)
	}
	a, ok := parseAction(ev.Token)
	if !ok {
		slog.Warn("unknown action", "chat_id", ev.Screen.ChatID, "user_id", ev.From.ID, "token", ev.Token)
		return d.answer(ctx, ev.ID, textUnknownAction, false)
	}

	notice, alert, err := d.runAction(ctx, ev, a)
	if err != nil {
		slog.Error("action failed", "chat_id", ev.Screen.ChatID, "user_id", ev.From.ID, "token", ev.Token, "err", err)
		notice, alert = textFailed, true
	}
	answerErr := d.answer(ctx, ev.ID, notice, alert)
	if err != nil {
		return err
	}
	return answerErr
}

// runAction returns the notice to answer the action with.
func (d *Dispatcher) runAction(ctx context.Context, ev MenuAction, a action) (string, bool, error) {
	prev := ev.Screen
	switch a.kind {
	case actionMainMenu:
		return "", false, d.showMainMenu(ctx, prev)
	case actionSupportMenu:
		return "", false, d.show(ctx, prev, supportContent(d.texts))
	case actionGuideMenu:
		groups := d.content.ListGroupCodes(ctx)
		if len(groups) == 0 {
			return textNoGuides, true, nil
		}
		return "", false, d.show(ctx, prev, guideMenuContent(groups))
	case actionGuideFirst:
		steps := d.content.ListStepNumbers(ctx, a.group)
		first, ok := navigator.First(steps)
		if !ok {
			return textStepGone, true, nil
		}
		return d.showStep(ctx, prev, a.group, first, steps)
	case actionGuideStep:
		return d.showStep(ctx, prev, a.group, a.step, d.content.ListStepNumbers(ctx, a.group))
	case actionOperatorMenu:
		ops := d.content.ListOperators(ctx)
		if len(ops) == 0 {
			return textNoOperators, true, nil
		}
		return "", false, d.show(ctx, prev, operatorMenuContent(ops))
	case actionOperator:
		op, ok := d.content.GetOperator(ctx, a.code)
		if !ok {
			return textNotFound, true, nil
		}
		prices := d.content.ListPrices(ctx, op.Code)
		return "", false, d.show(ctx, prev, operatorContent(op, prices, d.texts.PriceCurrency))
	case actionTrial:
		return d.requestTrial(ctx, prev.ChatID, ev.From)
	case actionBuy:
		return d.openOrder(ctx, prev.ChatID, ev.From, a.code, a.product)
	case actionPaymentApprove, actionPaymentReject:
		return d.decidePayment(ctx, ev.From, a)
	default:
		return "", false, newError(ErrorInternal, "unhandled_action", nil)
	}
}

func (d *Dispatcher) showStep(ctx context.Context, prev domain.Screen, group string, n int, steps []int) (string, bool, error) {
	pos, err := navigator.Locate(steps, n)
	if errors.Is(err, navigator.ErrStepNotFound) {
		slog.Info("guide step not found", "chat_id", prev.ChatID, "group", group, "step", n)
		return textStepGone, true, nil
	}
	if err != nil {
		return "", false, newError(ErrorInternal, "locate_step", err)
	}
	step, ok := d.content.GetStep(ctx, group, n)
	if !ok {
		slog.Info("guide step vanished", "chat_id", prev.ChatID, "group", group, "step", n)
		return textStepGone, true, nil
	}
	return "", false, d.show(ctx, prev, stepContent(step, pos))
}

func (d *Dispatcher) requestTrial(ctx context.Context, chatID int64, from Sender) (string, bool, error) {
	if from.ID == 0 {
		return "", false, newError(ErrorInvalidInput, "trial_without_sender", nil)
	}
	if st, ok := d.content.GetTrial(ctx, from.ID); ok && st.Used {
		return textTrialUsed, true, nil
	}
	rec := domain.TrialStatus{UserID: from.ID, Used: true, RequestID: newUUID(), UsedAt: now().UTC()}
	if !d.content.PutTrial(ctx, rec) {
		return textStorageFailed, true, nil
	}
	slog.Info("trial requested", "chat_id", chatID, "user_id", from.ID, "request_id", rec.RequestID)

	d.notifyAdmins(ctx, fmt.Sprintf("🎁 Free trial requested by %s.\nRequest: %s", describeUser(from.ID, from.Username), rec.RequestID))
	return "", false, d.reply(ctx, chatID, textTrialRequested)
}

var newUUID = func() string {
	return uuid.NewString()
}

// newRecordID returns a short id that fits in a key segment and an action token.
func newRecordID() string {
	id := strings.ReplaceAll(newUUID(), "-", "")
	if len(id) > 16 {
		id = id[:16]
	}
	return id
}

var now = time.Now
