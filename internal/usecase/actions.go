package usecase

import (
	"strconv"
	"strings"

	"guide-bot/internal/content"
)

// Menu-action tokens carried by navigate buttons.
const (
	tokenMainMenu     = "main_menu"
	tokenGuideMenu    = "guide_menu"
	tokenSupportMenu  = "support_menu"
	tokenOperatorMenu = "operator_menu"
	tokenTrial        = "trial"

	verbGuide    = "guide"
	verbOperator = "operator"
	verbBuy      = "buy"
	verbPayment  = "payment"

	paymentApprove = "approve"
	paymentReject  = "reject"
)


type actionKind int

const (
	actionMainMenu actionKind = iota + 1
	actionGuideMenu
	actionSupportMenu
	actionOperatorMenu
	actionTrial
	actionGuideFirst
	actionGuideStep
	actionOperator
	actionBuy
	actionPaymentApprove
	actionPaymentReject
)

type action struct {
	kind    actionKind
	group   string
	step    int
	code    string
	product string
	id      string
}

var exactActions = map[string]actionKind{
	tokenMainMenu:     actionMainMenu,
	tokenGuideMenu:    actionGuideMenu,
	tokenSupportMenu:  actionSupportMenu,
	tokenOperatorMenu: actionOperatorMenu,
	tokenTrial:        actionTrial,
}

// parseAction classifies a menu-action token. Anything that is not an exact
// token or a well formed verb:param[:param] is rejected.
func parseAction(token string) (action, bool) {
	if kind, ok := exactActions[token]; ok {
		return action{kind: kind}, true
	}

	parts := strings.Split(token, ":")
	for _, p := range parts[1:] {
		if !content.ValidSegment(p) {
			return action{}, false
		}
	}
	switch {
	case parts[0] == verbGuide && len(parts) == 2:
		return action{kind: actionGuideFirst, group: content.NormalizeCode(parts[1])}, true
	case parts[0] == verbGuide && len(parts) == 3:
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 || strconv.Itoa(n) != parts[2] {
			return action{}, false
		}
		return action{kind: actionGuideStep, group: content.NormalizeCode(parts[1]), step: n}, true
	case parts[0] == verbOperator && len(parts) == 2:
		return action{kind: actionOperator, code: content.NormalizeCode(parts[1])}, true
	case parts[0] == verbBuy && len(parts) == 3:
		return action{kind: actionBuy, code: content.NormalizeCode(parts[1]), product: parts[2]}, true
	case parts[0] == verbPayment && len(parts) == 3 && parts[1] == paymentApprove:
		return action{kind: actionPaymentApprove, id: parts[2]}, true
	case parts[0] == verbPayment && len(parts) == 3 && parts[1] == paymentReject:
		return action{kind: actionPaymentReject, id: parts[2]}, true
	default:
		return action{}, false
	}
}

func guideToken(group string) string {
	return verbGuide + ":" + group
}

func guideStepToken(group string, step int) string {
	return verbGuide + ":" + group + ":" + strconv.Itoa(step)
}

func operatorToken(code string) string {
	return verbOperator + ":" + code
}

func buyToken(itemType, productID string) string {
	return verbBuy + ":" + itemType + ":" + productID
}

func paymentToken(verdict, id string) string {
	return verbPayment + ":" + verdict + ":" + id
}
