package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guide-bot/internal/content"
	"guide-bot/internal/domain"
	"guide-bot/internal/repository"
)

const (
	adminID   int64 = 42
	userID    int64 = 7
	privateID int64 = 7
	groupID   int64 = -100123
)

type sentMessage struct {
	chatID   int64
	text     string
	mediaRef string
	buttons  [][]domain.Button
}

type answered struct {
	id    string
	text  string
	alert bool
}

// fakeMessenger records every platform call in order.
type fakeMessenger struct {
	calls    []string
	sent     []sentMessage
	edits    []sentMessage
	answers  []answered
	nextID   int
	me       domain.BotIdentity
	meErr    error
	meCalls  int
	statuses map[int64]string
	editErr  error
	sendErr  error
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string, buttons [][]domain.Button) (int, error) {
	f.calls = append(f.calls, "send_text")
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, buttons: buttons})
	f.nextID++
	return 1000 + f.nextID, nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, mediaRef, caption string, buttons [][]domain.Button) (int, error) {
	f.calls = append(f.calls, "send_photo")
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: caption, mediaRef: mediaRef, buttons: buttons})
	f.nextID++
	return 1000 + f.nextID, nil
}

func (f *fakeMessenger) EditText(_ context.Context, chatID int64, _ int, text string, buttons [][]domain.Button) error {
	f.calls = append(f.calls, "edit_text")
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, sentMessage{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ int64, _ int) error {
	f.calls = append(f.calls, "delete")
	return nil
}

func (f *fakeMessenger) AnswerAction(_ context.Context, actionID, text string, alert bool) error {
	f.calls = append(f.calls, "answer")
	f.answers = append(f.answers, answered{id: actionID, text: text, alert: alert})
	return nil
}

func (f *fakeMessenger) Me(_ context.Context) (domain.BotIdentity, error) {
	f.calls = append(f.calls, "get_me")
	f.meCalls++
	return f.me, f.meErr
}

func (f *fakeMessenger) ChatMemberStatus(_ context.Context, _, userID int64) (string, error) {
	f.calls = append(f.calls, "get_chat_member")
	if s, ok := f.statuses[userID]; ok {
		return s, nil
	}
	return "member", nil
}

func (f *fakeMessenger) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].text
}

// countingStore counts writes reaching the store.
type countingStore struct {
	*repository.Memory
	writes int
}

func (s *countingStore) Put(ctx context.Context, namespace, key string, value any) bool {
	s.writes++
	return s.Memory.Put(ctx, namespace, key, value)
}

func (s *countingStore) Delete(ctx context.Context, namespace, key string) bool {
	s.writes++
	return s.Memory.Delete(ctx, namespace, key)
}

type fixture struct {
	d       *Dispatcher
	msgr    *fakeMessenger
	store   *countingStore
	content *content.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &countingStore{Memory: repository.NewMemory(content.NamespaceGuides, content.NamespaceSales, content.NamespaceUsers)}
	repo, err := content.New(store)
	require.NoError(t, err)
	msgr := &fakeMessenger{me: domain.BotIdentity{ID: 99, Username: "guide_bot"}}
	d, err := NewDispatcher(repo, msgr, []int64{adminID}, Texts{SupportContact: "@helpdesk", SupportLink: "https://t.me/helpgroup"})
	require.NoError(t, err)
	return &fixture{d: d, msgr: msgr, store: store, content: repo}
}

func (f *fixture) reset() {
	*f.msgr = fakeMessenger{me: f.msgr.me, statuses: f.msgr.statuses}
	f.store.writes = 0
}

func cmdMsg(from int64, text string) CommandMessage {
	return CommandMessage{Chat: Chat{ID: from, Private: true}, From: Sender{ID: from}, MessageID: 1, Text: text}
}

func press(token string, prev domain.Screen) MenuAction {
	return MenuAction{ID: "cb-1", From: Sender{ID: userID, Username: "alice"}, Screen: prev, Token: token}
}

func (f *fixture) seedSteps(t *testing.T, group string, steps ...int) {
	t.Helper()
	for _, n := range steps {
		require.True(t, f.content.PutStep(context.Background(), domain.GuideStep{GroupCode: group, StepNumber: n, Text: "step body"}))
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher(nil, &fakeMessenger{}, nil, Texts{})
	require.ErrorContains(t, err, "content store")

	repo, err := content.New(repository.NewMemory())
	require.NoError(t, err)
	_, err = NewDispatcher(repo, nil, nil, Texts{})
	require.ErrorContains(t, err, "messenger")
}

// ---------------------------------------------------------------------------
// commands
// ---------------------------------------------------------------------------

func TestAdminCommand_DeniedForNonAdminWithoutWrites(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{
		`/addguidestep FOO 1 "hello"`,
		"/delguide FOO",
		`/setwelcome "hi"`,
		"/resetuser 5",
		"/listguides",
		`/addkey AIS 30d "vless://x"`,
		"/givekey 7 AIS 30d",
		"/revoke k1",
		"/payments",
	} {
		f.reset()
		require.NoError(t, f.d.Dispatch(context.Background(), cmdMsg(userID, text)))
		require.Equal(t, textDenied, f.msgr.lastText(), text)
		require.Zero(t, f.store.writes, text)
	}
}

func TestAddGuideStep_OptionalArgsAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, `/addGuideStep FOO 1 "hello"`)))
	require.Equal(t, "✅ Saved FOO step 1.", f.msgr.lastText())

	raw, ok := f.store.Get(ctx, content.NamespaceGuides, "guide:FOO:1")
	require.True(t, ok)
	require.JSONEq(t, `{"text":"hello","displayName":"FOO"}`, string(raw))

	step, ok := f.content.GetStep(ctx, "FOO", 1)
	require.True(t, ok)
	require.Empty(t, step.MediaRef)
	require.Empty(t, step.DownloadLink)
	require.Equal(t, "FOO", step.DisplayName)
}

func TestAddGuideStep_AllArgs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, `/addguidestep netmod 2 "Open the app" "AgACAgUAAx" "NetMod Syna" "https://example.com/app.apk"`)))
	step, ok := f.content.GetStep(ctx, "NETMOD", 2)
	require.True(t, ok)
	require.Equal(t, domain.GuideStep{
		GroupCode:    "NETMOD",
		StepNumber:   2,
		Text:         "Open the app",
		MediaRef:     "AgACAgUAAx",
		DownloadLink: "https://example.com/app.apk",
		DisplayName:  "NetMod Syna",
	}, step)
}

func TestAddGuideStep_InvalidInputAnswersUsageWithoutWrites(t *testing.T) {
	cases := []string{
		`/addguidestep FOO 1 "hello`,
		`/addguidestep FOO one "hello"`,
		`/addguidestep FOO 0 "hello"`,
		`/addguidestep FOO 1`,
		`/addguidestep FO:O 1 "hello"`,
		`/addguidestep FOO 1 "  "`,
		`/addguidestep FOO 1 "hello" "" "" "not a link"`,
		"/addguidestep " + strings.Repeat("A", 40) + ` 1 "hello"`,
	}
	for _, text := range cases {
		t.Run(text, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.d.Dispatch(context.Background(), cmdMsg(adminID, text)))
			require.True(t, strings.HasPrefix(f.msgr.lastText(), "⚠️ Usage: /addguidestep"), f.msgr.lastText())
			require.Zero(t, f.store.writes)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"/nope", "/", "/startx", "/delguidesteps FOO 1"} {
		f.reset()
		require.NoError(t, f.d.Dispatch(context.Background(), cmdMsg(adminID, text)))
		require.Equal(t, textUnknownCommand, f.msgr.lastText(), text)
		require.Zero(t, f.store.writes)
	}
}

func TestCommandMatching_LongestNameWins(t *testing.T) {
	cmds := commandTable()

	c, _, rest, ok := matchCommand(cmds, "/delguidestep FOO 1")
	require.True(t, ok)
	require.Equal(t, "/delguidestep", c.name)
	require.Equal(t, " FOO 1", rest)

	c, _, _, ok = matchCommand(cmds, "/delguide FOO")
	require.True(t, ok)
	require.Equal(t, "/delguide", c.name)

	c, target, rest, ok := matchCommand(cmds, "/START@Guide_Bot now")
	require.True(t, ok)
	require.Equal(t, "/start", c.name)
	require.Equal(t, "Guide_Bot", target)
	require.Equal(t, " now", rest)

	_, _, _, ok = matchCommand(cmds, "/addguidestepx")
	require.False(t, ok)
}

func TestCommandForAnotherBotIsIgnored(t *testing.T) {
	f := newFixture(t)
	group := CommandMessage{Chat: Chat{ID: groupID}, From: Sender{ID: userID}, Text: "/start@other_bot"}
	require.NoError(t, f.d.Dispatch(context.Background(), group))
	require.Equal(t, []string{"get_me"}, f.msgr.calls)

	f.reset()
	group.Text = "/nope@other_bot"
	require.NoError(t, f.d.Dispatch(context.Background(), group))
	require.Empty(t, f.msgr.sent)

	f.reset()
	group.Text = "/start@guide_bot"
	require.NoError(t, f.d.Dispatch(context.Background(), group))
	require.Equal(t, []string{"send_text"}, f.msgr.calls)
}

func TestStart_RendersWelcomeFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(userID, "/start")))
	require.Equal(t, []string{"send_text"}, f.msgr.calls)
	require.Equal(t, "Welcome! Choose an option below.", f.msgr.lastText())
	require.Len(t, f.msgr.sent[0].buttons, 4)

	require.True(t, f.content.PutWelcome(ctx, domain.WelcomeConfig{Text: "Hi there", MediaRef: "AgACwelcome"}))
	f.reset()
	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(userID, "/menu")))
	require.Equal(t, []string{"send_photo"}, f.msgr.calls)
	require.Equal(t, "AgACwelcome", f.msgr.sent[0].mediaRef)
	require.Equal(t, "Hi there", f.msgr.sent[0].text)
}

func TestHelp_AdminSectionOnlyForAdmins(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.Dispatch(context.Background(), cmdMsg(userID, "/help")))
	require.Contains(t, f.msgr.lastText(), "/start")
	require.NotContains(t, f.msgr.lastText(), "/addguidestep")

	f.reset()
	require.NoError(t, f.d.Dispatch(context.Background(), cmdMsg(adminID, "/help")))
	require.Contains(t, f.msgr.lastText(), "/addguidestep")
}

func TestGuideManagementCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSteps(t, "NETMOD", 1, 3, 5)
	f.seedSteps(t, "ZIVPN", 2)

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/listguides")))
	require.Equal(t, "📚 Stored guides:\n\n• NETMOD: steps 1, 3, 5\n• ZIVPN: steps 2", f.msgr.lastText())

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/addguidedownload netmod 3 https://example.com/a.apk")))
	step, ok := f.content.GetStep(ctx, "NETMOD", 3)
	require.True(t, ok)
	require.Equal(t, "https://example.com/a.apk", step.DownloadLink)
	require.Equal(t, "step body", step.Text)

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/addguidedownload NETMOD 4 https://example.com/a.apk")))
	require.Equal(t, textNotFound, f.msgr.lastText())

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/delguidestep NETMOD 3")))
	require.Equal(t, "🗑 Deleted NETMOD step 3.", f.msgr.lastText())
	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/delguidestep NETMOD 3")))
	require.Equal(t, textNotFound, f.msgr.lastText())

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/delguide NETMOD")))
	require.Equal(t, "🗑 Deleted 2 records of NETMOD.", f.msgr.lastText())
	require.Equal(t, []string{"ZIVPN"}, f.content.ListGroupCodes(ctx))
}

func TestWelcomeCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, `/setwelcome "Hello, friend!" "AgACpic"`)))
	w, ok := f.content.GetWelcome(ctx)
	require.True(t, ok)
	require.Equal(t, domain.WelcomeConfig{Text: "Hello, friend!", MediaRef: "AgACpic"}, w)

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/delwelcome")))
	_, ok = f.content.GetWelcome(ctx)
	require.False(t, ok)
}

func TestOperatorAndPriceCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, `/addoperator ais "AIS Thailand"`)))
	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, `/addprice AIS 30d 5,000 "30 days" "unlimited data"`)))
	require.Equal(t, "✅ Price AIS/30d saved: 5,000 MMK.", f.msgr.lastText())
	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, `/addprice AIS 07d 1500 "7 days"`)))

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/listoperators")))
	require.Equal(t, "💰 Operators:\n\n• AIS: AIS Thailand", f.msgr.lastText())

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/listproducts ais")))
	require.Equal(t, "💰 Prices for AIS:\n\n• 07d - 7 days: 1,500 MMK\n• 30d - 30 days: 5,000 MMK", f.msgr.lastText())

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, `/addprice AIS 1d -5 "x"`)))
	require.True(t, strings.HasPrefix(f.msgr.lastText(), "⚠️ Usage: /addprice"))

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/delprice AIS 07d")))
	require.Len(t, f.content.ListPrices(ctx, "AIS"), 1)

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/deloperator AIS")))
	require.Empty(t, f.content.ListOperators(ctx))
	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/deloperator AIS")))
	require.Equal(t, textNotFound, f.msgr.lastText())
}

func TestTrialCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/checkuser 7")))
	require.Equal(t, "👤 User 7 has not used the free trial.", f.msgr.lastText())

	at := time.Date(2026, 10, 1, 12, 30, 0, 0, time.UTC)
	require.True(t, f.content.PutTrial(ctx, domain.TrialStatus{UserID: 7, Used: true, RequestID: "req-1", UsedAt: at}))
	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/checkuser 7")))
	require.Equal(t, "👤 User 7 used the free trial at 2026-10-01 12:30 UTC.\nRequest: req-1", f.msgr.lastText())

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/resetuser 7")))
	_, ok := f.content.GetTrial(ctx, 7)
	require.False(t, ok)

	require.NoError(t, f.d.Dispatch(ctx, cmdMsg(adminID, "/resetuser bob")))
	require.True(t, strings.HasPrefix(f.msgr.lastText(), "⚠️ Usage: /resetuser"))
}

// ---------------------------------------------------------------------------
// menu actions
// ---------------------------------------------------------------------------

func TestAction_UnknownAndMalformedTokens(t *testing.T) {
	f := newFixture(t)
	f.seedSteps(t, "NETMOD", 1)
	for _, token := range []string{"bogus", "guide:NETMOD:abc", "guide:NETMOD:1:2", "guide:", "operator:A:B"} {
		f.reset()
		require.NoError(t, f.d.Dispatch(context.Background(), press(token, domain.Screen{ChatID: privateID, MessageID: 5})))
		require.Equal(t, []string{"answer"}, f.msgr.calls, token)
		require.Equal(t, textUnknownAction, f.msgr.answers[0].text)
	}
}

func TestAction_NavigateEditsTextInPlace(t *testing.T) {
	f := newFixture(t)
	f.seedSteps(t, "NETMOD", 1, 3, 5)

	prev := domain.Screen{ChatID: privateID, MessageID: 5}
	require.NoError(t, f.d.Dispatch(context.Background(), press("guide:NETMOD:3", prev)))
	require.Equal(t, []string{"edit_text", "answer"}, f.msgr.calls)

	edit := f.msgr.edits[0]
	require.Equal(t, "📚 NETMOD · Step 2 of 3\n\nstep body", edit.text)
	require.Equal(t, []domain.Button{
		domain.NavigateButton("⬅️ Previous", "guide:NETMOD:1"),
		domain.NavigateButton("Next ➡️", "guide:NETMOD:5"),
	}, edit.buttons[0])
	require.Equal(t, answered{id: "cb-1"}, f.msgr.answers[0])
}

func TestAction_GuideOpensFirstStep(t *testing.T) {
	f := newFixture(t)
	f.seedSteps(t, "NETMOD", 4, 2)

	require.NoError(t, f.d.Dispatch(context.Background(), press("guide:netmod", domain.Screen{ChatID: privateID, MessageID: 5})))
	edit := f.msgr.edits[0]
	require.True(t, strings.HasPrefix(edit.text, "📚 NETMOD · Step 1 of 2"))
	require.Equal(t, []domain.Button{domain.NavigateButton("Next ➡️", "guide:NETMOD:4")}, edit.buttons[0])
}

func TestAction_DeletedStepIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSteps(t, "NETMOD", 1, 3, 5)
	require.True(t, f.content.DeleteStep(ctx, "NETMOD", 3))

	require.NoError(t, f.d.Dispatch(ctx, press("guide:NETMOD:3", domain.Screen{ChatID: privateID, MessageID: 5})))
	require.Equal(t, []string{"answer"}, f.msgr.calls)
	require.Equal(t, answered{id: "cb-1", text: textStepGone, alert: true}, f.msgr.answers[0])
}

func TestAction_MediaStepReplacesTextScreen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.content.PutStep(ctx, domain.GuideStep{
		GroupCode: "NETMOD", StepNumber: 1, Text: "look", MediaRef: "AgACstep", DownloadLink: "https://example.com/a.apk",
	}))

	require.NoError(t, f.d.Dispatch(ctx, press("guide:NETMOD:1", domain.Screen{ChatID: privateID, MessageID: 5})))
	require.Equal(t, []string{"delete", "send_photo", "answer"}, f.msgr.calls)
	sent := f.msgr.sent[0]
	require.Equal(t, "AgACstep", sent.mediaRef)
	require.Equal(t, []domain.Button{domain.LinkButton("📥 Download", "https://example.com/a.apk")}, sent.buttons[0])
}

func TestAction_TextStepFromPhotoScreenReplaces(t *testing.T) {
	f := newFixture(t)
	f.seedSteps(t, "NETMOD", 1)

	require.NoError(t, f.d.Dispatch(context.Background(), press("guide:NETMOD:1", domain.Screen{ChatID: privateID, MessageID: 5, HasMedia: true})))
	require.Equal(t, []string{"delete", "send_text", "answer"}, f.msgr.calls)
	require.NotContains(t, f.msgr.calls, "edit_text")
}

func TestAction_GuideMenu(t *testing.T) {
	f := newFixture(t)
	prev := domain.Screen{ChatID: privateID, MessageID: 5}

	require.NoError(t, f.d.Dispatch(context.Background(), press("guide_menu", prev)))
	require.Equal(t, []string{"answer"}, f.msgr.calls)
	require.Equal(t, answered{id: "cb-1", text: textNoGuides, alert: true}, f.msgr.answers[0])

	f.seedSteps(t, "ZIVPN", 1)
	f.seedSteps(t, "NETMOD", 1)
	f.reset()
	require.NoError(t, f.d.Dispatch(context.Background(), press("guide_menu", prev)))
	require.Equal(t, []string{"edit_text", "answer"}, f.msgr.calls)
	require.Equal(t, [][]domain.Button{
		{domain.NavigateButton("NETMOD", "guide:NETMOD")},
		{domain.NavigateButton("ZIVPN", "guide:ZIVPN")},
		{buttonMainMenu},
	}, f.msgr.edits[0].buttons)
}

func TestAction_SupportAndMainMenu(t *testing.T) {
	f := newFixture(t)
	prev := domain.Screen{ChatID: privateID, MessageID: 5}

	require.NoError(t, f.d.Dispatch(context.Background(), press("support_menu", prev)))
	require.Contains(t, f.msgr.edits[0].text, "@helpdesk")
	require.Equal(t, domain.LinkButton("👤 Message admin", "https://t.me/helpdesk"), f.msgr.edits[0].buttons[0][0])
	require.Equal(t, domain.LinkButton("👥 Support group", "https://t.me/helpgroup"), f.msgr.edits[0].buttons[1][0])

	f.reset()
	require.NoError(t, f.d.Dispatch(context.Background(), press("main_menu", prev)))
	require.Equal(t, []string{"edit_text", "answer"}, f.msgr.calls)
}

func TestAction_OperatorScreen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prev := domain.Screen{ChatID: privateID, MessageID: 5}

	require.NoError(t, f.d.Dispatch(ctx, press("operator_menu", prev)))
	require.Equal(t, answered{id: "cb-1", text: textNoOperators, alert: true}, f.msgr.answers[0])

	require.True(t, f.content.PutOperator(ctx, domain.OperatorButton{Code: "AIS", Name: "AIS Thailand", MediaRef: "AgACop"}))
	require.True(t, f.content.PutPrice(ctx, domain.ProductPrice{ItemType: "AIS", ProductID: "30d", Name: "30 days", Amount: 15000}))

	f.reset()
	require.NoError(t, f.d.Dispatch(ctx, press("operator_menu", prev)))
	require.Equal(t, []domain.Button{domain.NavigateButton("AIS Thailand", "operator:AIS")}, f.msgr.edits[0].buttons[0])

	f.reset()
	require.NoError(t, f.d.Dispatch(ctx, press("operator:ais", prev)))
	require.Equal(t, []string{"delete", "send_photo", "answer"}, f.msgr.calls)
	require.Equal(t, "💰 AIS Thailand\n\n• 30 days: 15,000 MMK", f.msgr.sent[0].text)

	f.reset()
	require.NoError(t, f.d.Dispatch(ctx, press("operator:TRUE", prev)))
	require.Equal(t, answered{id: "cb-1", text: textNotFound, alert: true}, f.msgr.answers[0])
}

func TestAction_TrialRecordedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prev := domain.Screen{ChatID: privateID, MessageID: 5}

	restoreUUID, restoreNow := newUUID, now
	t.Cleanup(func() { newUUID, now = restoreUUID, restoreNow })
	newUUID = func() string { return "req-123" }
	now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, f.d.Dispatch(ctx, press("trial", prev)))
	st, ok := f.content.GetTrial(ctx, userID)
	require.True(t, ok)
	require.True(t, st.Used)
	require.Equal(t, userID, st.UserID)
	require.Equal(t, "req-123", st.RequestID)
	require.True(t, now().Equal(st.UsedAt))

	require.Len(t, f.msgr.sent, 2)
	require.Equal(t, adminID, f.msgr.sent[0].chatID)
	require.Contains(t, f.msgr.sent[0].text, "@alice (id 7)")
	require.Equal(t, privateID, f.msgr.sent[1].chatID)
	require.Equal(t, textTrialRequested, f.msgr.sent[1].text)
	require.Equal(t, answered{id: "cb-1"}, f.msgr.answers[0])

	f.reset()
	require.NoError(t, f.d.Dispatch(ctx, press("trial", prev)))
	require.Equal(t, []string{"answer"}, f.msgr.calls)
	require.Equal(t, answered{id: "cb-1", text: textTrialUsed, alert: true}, f.msgr.answers[0])
	require.Zero(t, f.store.writes)
}

func TestAction_RenderFailureStillAnswers(t *testing.T) {
	f := newFixture(t)
	f.msgr.editErr = errors.New("edit refused")
	f.msgr.sendErr = errors.New("network down")

	err := f.d.Dispatch(context.Background(), press("main_menu", domain.Screen{ChatID: privateID, MessageID: 5}))
	require.Error(t, err)
	require.Equal(t, answered{id: "cb-1", text: textFailed, alert: true}, f.msgr.answers[0])
}

func TestAction_WithoutMessageIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.Dispatch(context.Background(), press("main_menu", domain.Screen{})))
	require.Equal(t, []string{"answer"}, f.msgr.calls)
}

// ---------------------------------------------------------------------------
// free text, photos and the chat-scope gate
// ---------------------------------------------------------------------------

func groupText(from int64, text string) TextMessage {
	return TextMessage{Chat: Chat{ID: groupID}, From: Sender{ID: from}, MessageID: 3, Text: text}
}

func TestChatGate_GroupNoiseCostsNoCalls(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"good morning everyone", "thanks @someone", "ok"} {
		f.reset()
		require.NoError(t, f.d.Dispatch(context.Background(), groupText(userID, text)))
		require.Empty(t, f.msgr.calls, text)
	}
}

func TestChatGate_KeywordFromMemberChecksStatusOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.Dispatch(context.Background(), groupText(userID, "show me the guide")))
	require.Equal(t, []string{"get_chat_member"}, f.msgr.calls)
	require.Empty(t, f.msgr.sent)
}

func TestChatGate_MentionPasses(t *testing.T) {
	f := newFixture(t)
	f.seedSteps(t, "NETMOD", 1)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, groupText(userID, "@Guide_Bot guide please")))
	require.Equal(t, []string{"get_me", "send_text"}, f.msgr.calls)
	require.Equal(t, textGuideMenu, f.msgr.lastText())

	require.NoError(t, f.d.Dispatch(ctx, groupText(userID, "@guide_bot guide again")))
	require.Equal(t, 1, f.msgr.meCalls)
}

func TestChatGate_IdentityFailureIsNotCached(t *testing.T) {
	f := newFixture(t)
	f.msgr.meErr = errors.New("timeout")
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, groupText(userID, "@guide_bot menu")))
	require.Empty(t, f.msgr.sent)

	f.msgr.meErr = nil
	require.NoError(t, f.d.Dispatch(ctx, groupText(userID, "@guide_bot menu")))
	require.Equal(t, 2, f.msgr.meCalls)
	require.Len(t, f.msgr.sent, 1)
}

func TestChatGate_AdminsPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, groupText(adminID, "support")))
	require.Equal(t, []string{"send_text"}, f.msgr.calls)

	f.reset()
	f.msgr.statuses = map[int64]string{userID: "administrator"}
	require.NoError(t, f.d.Dispatch(ctx, groupText(userID, "open the menu")))
	require.Equal(t, []string{"get_chat_member", "send_text"}, f.msgr.calls)

	f.reset()
	require.NoError(t, f.d.Dispatch(ctx, groupText(userID, "thanks")))
	require.Empty(t, f.msgr.calls)
}

func TestText_PrivateKeywordsAndHint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	private := TextMessage{Chat: Chat{ID: privateID, Private: true}, From: Sender{ID: userID}}

	private.Text = "what is the PRICE?"
	require.NoError(t, f.d.Dispatch(ctx, private))
	require.Equal(t, textNoOperators, f.msgr.lastText())

	private.Text = "hello"
	require.NoError(t, f.d.Dispatch(ctx, private))
	require.Equal(t, textHint, f.msgr.lastText())
}

func TestPhoto_AdminGetsMediaReferenceOthersAreReceipts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	photo := PhotoMessage{Chat: Chat{ID: adminID, Private: true}, From: Sender{ID: adminID}, FileID: "AgACbig"}

	require.NoError(t, f.d.Dispatch(ctx, photo))
	require.Equal(t, "🖼 Media reference:\nAgACbig", f.msgr.lastText())

	f.reset()
	photo.From.ID = userID
	require.NoError(t, f.d.Dispatch(ctx, photo))
	require.Equal(t, []string{"send_text"}, f.msgr.calls)
	require.Equal(t, textNoOpenOrder, f.msgr.lastText())

	f.reset()
	photo.From.ID = adminID
	photo.Chat = Chat{ID: groupID}
	require.NoError(t, f.d.Dispatch(ctx, photo))
	require.Empty(t, f.msgr.calls)
}

func TestMembershipAndUnsupportedProduceNoCalls(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.Dispatch(context.Background(), MembershipChange{ChatID: groupID, UserIDs: []int64{userID}, Status: "member"}))
	require.NoError(t, f.d.Dispatch(context.Background(), Unsupported{UpdateID: 1, Reason: "edited message"}))
	require.Empty(t, f.msgr.calls)
}

func TestReply_SplitsLongText(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("a", 3000) + "\n" + strings.Repeat("b", 3000)
	require.NoError(t, f.d.reply(context.Background(), privateID, long))
	require.Len(t, f.msgr.sent, 2)
	require.Equal(t, strings.Repeat("a", 3000), f.msgr.sent[0].text)
	require.Equal(t, strings.Repeat("b", 3000), f.msgr.sent[1].text)
}
