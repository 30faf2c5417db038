package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"guide-bot/internal/domain"
)

// ControlKeyHeader carries the optional shared secret on outbound calls.
const ControlKeyHeader = "X-Bot-Key"

// tokenPayload is the expected JSON shape stored in SSM for the bot token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// botAPI is the subset of *tgbotapi.BotAPI used by Client.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetMe() (tgbotapi.User, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// APIError is a failed Bot API call, with the platform's error code when one was returned.
type APIError struct {
	Method string
	Code   int
	Err    error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("telegram: %s failed with code %d: %v", e.Method, e.Code, e.Err)
	}
	return fmt.Sprintf("telegram: %s failed: %v", e.Method, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) HTTPStatusCode() int {
	return e.Code
}

// Client sends messages through the Telegram Bot API. The bot token is
// resolved from the parameter store on first use.
type Client struct {
	getter      Getter
	paramPrefix string
	endpoint    string
	controlKey  string
	httpClient  *http.Client
	token       string

	apiMu sync.RWMutex
	api   botAPI
}

type Option func(*Client)

// WithEndpoint overrides the Bot API endpoint. It must contain two %s verbs,
// for the token and the method. An empty endpoint keeps the default.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithControlKey sends key as ControlKeyHeader on every outbound call.
func WithControlKey(key string) Option {
	return func(c *Client) {
		c.controlKey = strings.TrimSpace(key)
	}
}

// WithToken skips the parameter store and uses token directly.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient creates a new Client backed by the given parameter store getter.
// getter may be nil only when WithToken is supplied.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		getter:      ps,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
		endpoint:    tgbotapi.APIEndpoint,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.token == "" {
		if c.getter == nil {
			return nil, errors.New("telegram: paramstore getter must not be nil")
		}
		if c.paramPrefix == "" {
			return nil, errors.New("telegram: parameter prefix must not be empty")
		}
	}
	if strings.Count(c.endpoint, "%s") != 2 {
		return nil, fmt.Errorf("telegram: invalid api endpoint %q", c.endpoint)
	}
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/bot-token"
}

// resolveAPI builds the Bot API client on the first successful call. A failed
// token lookup is not cached so the next update retries it.
func (c *Client) resolveAPI(ctx context.Context) (botAPI, error) {
	c.apiMu.RLock()
	if c.api != nil {
		api := c.api
		c.apiMu.RUnlock()
		return api, nil
	}
	c.apiMu.RUnlock()

	c.apiMu.Lock()
	defer c.apiMu.Unlock()
	if c.api != nil {
		return c.api, nil
	}

	token := c.token
	if token == "" {
		var err error
		token, err = fetchTokenFromParamStore(ctx, c.getter, c.tokenParameterName())
		if err != nil {
			return nil, err
		}
	}
	c.api = c.newBotAPI(token)
	return c.api, nil
}

// newBotAPI avoids tgbotapi.NewBotAPI, which performs a getMe round trip on
// every cold start.
func (c *Client) newBotAPI(token string) *tgbotapi.BotAPI {
	var hc tgbotapi.HTTPClient = c.httpClient
	if c.controlKey != "" {
		hc = &headerClient{next: c.httpClient, header: ControlKeyHeader, value: c.controlKey}
	}
	bot := &tgbotapi.BotAPI{Token: token, Client: hc, Buffer: 100}
	bot.SetAPIEndpoint(c.endpoint)
	return bot
}

type headerClient struct {
	next   *http.Client
	header string
	value  string
}

func (h *headerClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set(h.header, h.value)
	return h.next.Do(req)
}

// SendText sends a text message and returns its id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, buttons [][]domain.Button) (int, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if kb, ok := keyboard(buttons); ok {
		msg.ReplyMarkup = kb
	}
	sent, err := api.Send(msg)
	if err != nil {
		return 0, apiError("sendMessage", err)
	}
	return sent.MessageID, nil
}

// SendPhoto sends a photo with a caption. mediaRef is either a platform file id
// or an http(s) URL.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, mediaRef, caption string, buttons [][]domain.Button) (int, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return 0, err
	}
	photo := tgbotapi.NewPhoto(chatID, photoFile(mediaRef))
	photo.Caption = caption
	if kb, ok := keyboard(buttons); ok {
		photo.ReplyMarkup = kb
	}
	sent, err := api.Send(photo)
	if err != nil {
		return 0, apiError("sendPhoto", err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text and buttons of a text message. An edit that
// changes nothing is reported as success.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, buttons [][]domain.Button) error {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return err
	}
	var edit tgbotapi.EditMessageTextConfig
	if kb, ok := keyboard(buttons); ok {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.DisableWebPagePreview = true
	if _, err := api.Send(edit); err != nil {
		if isAPIError(err, "message is not modified") {
			return nil
		}
		return apiError("editMessageText", err)
	}
	return nil
}

// DeleteMessage deletes a message. A message that is already gone counts as deleted.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return err
	}
	if _, err := api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		if isAPIError(err, "message to delete not found") {
			return nil
		}
		return apiError("deleteMessage", err)
	}
	return nil
}

// AnswerAction acknowledges a button press, optionally with a toast or alert.
func (c *Client) AnswerAction(ctx context.Context, actionID, text string, alert bool) error {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(actionID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(actionID, text)
	}
	if _, err := api.Request(cb); err != nil {
		return apiError("answerCallbackQuery", err)
	}
	return nil
}

// Me fetches the bot's own identity.
func (c *Client) Me(ctx context.Context) (domain.BotIdentity, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return domain.BotIdentity{}, err
	}
	u, err := api.GetMe()
	if err != nil {
		return domain.BotIdentity{}, apiError("getMe", err)
	}
	return domain.BotIdentity{ID: u.ID, Username: u.UserName}, nil
}

// ChatMemberStatus returns the member status of userID in chatID, such as
// "creator", "administrator" or "member".
func (c *Client) ChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}
	m, err := api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return "", apiError("getChatMember", err)
	}
	return m.Status, nil
}

func keyboard(buttons [][]domain.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var out []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.IsLink() {
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				continue
			}
			out = append(out, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action))
		}
		if len(out) > 0 {
			rows = append(rows, out)
		}
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func photoFile(mediaRef string) tgbotapi.RequestFileData {
	if strings.HasPrefix(mediaRef, "http://") || strings.HasPrefix(mediaRef, "https://") {
		return tgbotapi.FileURL(mediaRef)
	}
	return tgbotapi.FileID(mediaRef)
}

func isAPIError(err error, fragment string) bool {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return false
	}
	return strings.Contains(strings.ToLower(tgErr.Message), fragment)
}

func apiError(method string, err error) error {
	out := &APIError{Method: method, Err: err}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		out.Code = tgErr.Code
	}
	return out
}

func fetchTokenFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("telegram: paramstore getter is nil")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("telegram: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("telegram: unmarshal paramstore token value as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", errors.New("telegram: bot token is empty")
	}
	return strings.TrimSpace(tp.Token), nil
}
