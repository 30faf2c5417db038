package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"guide-bot/internal/content"
	"guide-bot/internal/domain"
)

// openOrder records a pending payment for a priced product and tells the
// buyer how to pay.
func (d *Dispatcher) openOrder(ctx context.Context, chatID int64, from Sender, itemType, productID string) (string, bool, error) {
	if from.ID == 0 {
		return "", false, newError(ErrorInvalidInput, "order_without_sender", nil)
	}
	price, ok := d.content.GetPrice(ctx, itemType, productID)
	if !ok {
		return textNotFound, true, nil
	}
	p := domain.Payment{
		ID:        newRecordID(),
		UserID:    from.ID,
		Username:  from.Username,
		ItemType:  itemType,
		ProductID: productID,
		Amount:    price.Amount,
		Status:    domain.PaymentPending,
		CreatedAt: now().UTC(),
	}
	if !d.content.PutPayment(ctx, p) {
		return textStorageFailed, true, nil
	}
	slog.Info("order opened", "payment_id", p.ID, "user_id", from.ID, "item_type", itemType, "product_id", productID)
	return "", false, d.reply(ctx, chatID, orderText(p, price.Name, d.texts.PriceCurrency))
}

// attachReceipt stores the photo as the receipt of the sender's newest open
// order and forwards it to every administrator for review.
func (d *Dispatcher) attachReceipt(ctx context.Context, ev PhotoMessage) error {
	p, ok := d.content.PendingPaymentOf(ctx, ev.From.ID)
	if !ok {
		return d.reply(ctx, ev.Chat.ID, textNoOpenOrder)
	}
	p.ReceiptRef = ev.FileID
	if p.Username == "" {
		p.Username = ev.From.Username
	}
	if !d.content.PutPayment(ctx, p) {
		return d.reply(ctx, ev.Chat.ID, textStorageFailed)
	}
	slog.Info("payment receipt received", "payment_id", p.ID, "user_id", ev.From.ID)

	card := receiptContent(p, d.texts.PriceCurrency)
	for _, id := range d.adminIDs {
		if _, err := d.messenger.SendPhoto(ctx, id, card.MediaRef, card.Text, card.Buttons); err != nil {
			slog.Error("failed to forward receipt", "user_id", id, "payment_id", p.ID, "err", err)
		}
	}
	return d.reply(ctx, ev.Chat.ID, textReceiptReceived)
}

// decidePayment approves or rejects a pending payment. Approval hands the
// buyer the oldest available key of the purchased product when one is stocked.
func (d *Dispatcher) decidePayment(ctx context.Context, from Sender, a action) (string, bool, error) {
	if !d.isAdmin(from.ID) {
		slog.Warn("unauthorized payment decision", "user_id", from.ID, "payment_id", a.id)
		return textDenied, true, nil
	}
	p, ok := d.content.GetPayment(ctx, a.id)
	if !ok {
		return textNotFound, true, nil
	}
	if p.Status != domain.PaymentPending {
		return textPaymentDecided, true, nil
	}

	if a.kind == actionPaymentReject {
		if _, ok := d.content.UpdatePaymentStatus(ctx, p.ID, content.Decision{Status: domain.PaymentRejected, DecidedBy: from.ID, At: now()}); !ok {
			return textStorageFailed, true, nil
		}
		slog.Info("payment rejected", "payment_id", p.ID, "admin_id", from.ID)
		d.notifyUser(ctx, p.UserID, fmt.Sprintf(textPaymentRejected, p.ID))
		return "❌ Payment rejected.", false, nil
	}

	k, err := d.assignKey(ctx, p.ItemType, p.ProductID, p.UserID, nil)
	stocked := err == nil
	if err != nil && codeOf(err) != ErrorNotFound {
		return textStorageFailed, true, nil
	}
	if _, ok := d.content.UpdatePaymentStatus(ctx, p.ID, content.Decision{Status: domain.PaymentApproved, DecidedBy: from.ID, KeyID: k.ID, At: now()}); !ok {
		if stocked {
			d.releaseKey(ctx, k)
		}
		return textStorageFailed, true, nil
	}
	slog.Info("payment approved", "payment_id", p.ID, "admin_id", from.ID, "key_id", k.ID)

	if !stocked {
		d.notifyUser(ctx, p.UserID, fmt.Sprintf(textPaymentApproved, p.ID))
		return fmt.Sprintf("✅ Approved. No %s/%s key in stock, use /givekey.", p.ItemType, p.ProductID), true, nil
	}
	d.notifyUser(ctx, p.UserID, fmt.Sprintf("✅ Payment %s was approved.\n\n%s", p.ID, keyText(k)))
	return fmt.Sprintf("✅ Approved. Key %s sent.", k.ID), false, nil
}

// assignKey sells the oldest available key of operator/keyType to userID. It
// fails with NOT_FOUND when nothing is in stock.
func (d *Dispatcher) assignKey(ctx context.Context, operator, keyType string, userID int64, expiresAt *time.Time) (domain.VPNKey, error) {
	for _, k := range d.content.ListKeys(ctx, operator, keyType) {
		if k.Status != domain.KeyAvailable {
			continue
		}
		sold, ok := d.content.UpdateKeyStatus(ctx, k.ID, domain.KeySold, userID, expiresAt)
		if !ok {
			return domain.VPNKey{}, newError(ErrorStorage, "assign_key", nil)
		}
		slog.Info("key assigned", "key_id", sold.ID, "user_id", userID)
		return sold, nil
	}
	return domain.VPNKey{}, newError(ErrorNotFound, "no_key_in_stock", nil)
}

func (d *Dispatcher) releaseKey(ctx context.Context, k domain.VPNKey) {
	if _, ok := d.content.UpdateKeyStatus(ctx, k.ID, domain.KeyAvailable, 0, nil); !ok {
		slog.Error("failed to release key", "key_id", k.ID)
	}
}

// notifyUser sends a private message to userID and reports whether it was delivered.
func (d *Dispatcher) notifyUser(ctx context.Context, userID int64, text string) bool {
	if _, err := d.messenger.SendText(ctx, userID, text, nil); err != nil {
		slog.Error("failed to notify user", "user_id", userID, "err", err)
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// public commands
// ---------------------------------------------------------------------------

func cmdMyKey(ctx context.Context, d *Dispatcher, inv invocation) error {
	if !inv.msg.Chat.Private {
		return d.reply(ctx, inv.msg.Chat.ID, textPrivateOnly)
	}
	var active []string
	for _, k := range d.content.KeysOf(ctx, inv.msg.From.ID) {
		if k.Active() {
			active = append(active, keyText(k))
		}
	}
	if len(active) == 0 {
		return d.reply(ctx, inv.msg.Chat.ID, textNoActiveKeys)
	}
	return d.reply(ctx, inv.msg.Chat.ID, "Your keys:\n\n"+strings.Join(active, "\n\n"))
}

func cmdPayment(ctx context.Context, d *Dispatcher, inv invocation) error {
	return d.reply(ctx, inv.msg.Chat.ID, textPaymentHint)
}

// ---------------------------------------------------------------------------
// key inventory
// ---------------------------------------------------------------------------

func parseKeyType(s string) (string, error) {
	t := strings.TrimSpace(s)
	if !content.ValidSegment(t) {
		return "", newError(ErrorInvalidInput, "invalid_key_type", nil)
	}
	return t, nil
}

func parseKeyID(s string) (string, error) {
	id := strings.TrimSpace(s)
	if !content.ValidSegment(id) {
		return "", newError(ErrorInvalidInput, "invalid_key_id", nil)
	}
	return id, nil
}

func cmdAddKey(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 3, 3); err != nil {
		return err
	}
	op, err := parseCode(inv.args[0])
	if err != nil {
		return err
	}
	keyType, err := parseKeyType(inv.args[1])
	if err != nil {
		return err
	}
	secret, err := requireText(inv.args[2], "empty_key")
	if err != nil {
		return err
	}
	k := domain.VPNKey{
		Operator:  op,
		KeyType:   keyType,
		ID:        newRecordID(),
		Secret:    secret,
		Status:    domain.KeyAvailable,
		CreatedAt: now().UTC(),
	}
	if !d.content.PutKey(ctx, k) {
		return newError(ErrorStorage, "put_key", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("✅ Key %s added to %s/%s.", k.ID, op, keyType))
}

func cmdDelKey(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 1); err != nil {
		return err
	}
	id, err := parseKeyID(inv.args[0])
	if err != nil {
		return err
	}
	k, ok := d.content.FindKey(ctx, id)
	if !ok {
		return newError(ErrorNotFound, "key_not_found", nil)
	}
	if !d.content.DeleteKey(ctx, k) {
		return newError(ErrorStorage, "delete_key", nil)
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("🗑 Key %s deleted.", id))
}

func cmdListKeys(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 0, 2); err != nil {
		return err
	}
	var op, keyType string
	var err error
	if len(inv.args) > 0 {
		if op, err = parseCode(inv.args[0]); err != nil {
			return err
		}
	}
	if len(inv.args) > 1 {
		if keyType, err = parseKeyType(inv.args[1]); err != nil {
			return err
		}
	}
	keys := d.content.ListKeys(ctx, op, keyType)
	if len(keys) == 0 {
		return d.reply(ctx, inv.msg.Chat.ID, textNoKeys)
	}
	available := 0
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "\n• %s %s/%s %s", k.ID, k.Operator, k.KeyType, k.Status)
		if k.AssignedTo != 0 {
			fmt.Fprintf(&b, " → %d", k.AssignedTo)
		}
		if k.Status == domain.KeyAvailable {
			available++
		}
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("🔑 Keys (%d available):\n%s", available, b.String()))
}

func cmdGiveKey(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 3, 4); err != nil {
		return err
	}
	userID, err := parseUserID(inv.args[0])
	if err != nil {
		return err
	}
	op, err := parseCode(inv.args[1])
	if err != nil {
		return err
	}
	keyType, err := parseKeyType(inv.args[2])
	if err != nil {
		return err
	}
	var expiresAt *time.Time
	if raw := optionalArg(inv.args, 3); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 || days > 3650 {
			return newError(ErrorInvalidInput, "invalid_days", err)
		}
		exp := now().UTC().AddDate(0, 0, days)
		expiresAt = &exp
	}

	k, err := d.assignKey(ctx, op, keyType, userID, expiresAt)
	if codeOf(err) == ErrorNotFound {
		return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("❌ No available %s/%s keys.", op, keyType))
	}
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("✅ Key %s given to user %d.", k.ID, userID)
	if !d.notifyUser(ctx, userID, "🎉 You received a new key.\n\n"+keyText(k)) {
		msg += "\n⚠️ Could not message the user. They can still see it with /mykey."
	}
	return d.reply(ctx, inv.msg.Chat.ID, msg)
}

func cmdRevoke(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 1, 1); err != nil {
		return err
	}
	id, err := parseKeyID(inv.args[0])
	if err != nil {
		return err
	}
	k, ok := d.content.FindKey(ctx, id)
	if !ok {
		return newError(ErrorNotFound, "key_not_found", nil)
	}
	if k.Status == domain.KeyRevoked {
		return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("Key %s is already revoked.", id))
	}
	if _, ok := d.content.UpdateKeyStatus(ctx, id, domain.KeyRevoked, k.AssignedTo, k.ExpiresAt); !ok {
		return newError(ErrorStorage, "revoke_key", nil)
	}
	if k.AssignedTo != 0 {
		d.notifyUser(ctx, k.AssignedTo, fmt.Sprintf("🔒 Your %s %s key (id %s) was revoked.", k.Operator, k.KeyType, id))
	}
	return d.reply(ctx, inv.msg.Chat.ID, fmt.Sprintf("🔒 Key %s revoked.", id))
}

func cmdPayments(ctx context.Context, d *Dispatcher, inv invocation) error {
	if err := requireArgs(inv.args, 0, 0); err != nil {
		return err
	}
	pending := d.content.ListPayments(ctx, domain.PaymentPending)
	if len(pending) == 0 {
		return d.reply(ctx, inv.msg.Chat.ID, textNoPendingPayment)
	}
	var b strings.Builder
	b.WriteString("🧾 Payments awaiting review:\n")
	for _, p := range pending {
		fmt.Fprintf(&b, "\n• %s %s %s/%s: %s %s", p.ID, describeUser(p.UserID, p.Username), p.ItemType, p.ProductID,
			formatAmount(p.Amount), d.texts.PriceCurrency)
		if p.ReceiptRef == "" {
			b.WriteString(" (no receipt yet)")
		}
	}
	return d.reply(ctx, inv.msg.Chat.ID, b.String())
}
