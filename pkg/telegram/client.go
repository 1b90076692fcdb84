package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client talks to the Telegram Bot API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BotID is the numeric prefix of the bot token.
func (c *Client) BotID() (int64, error) {
	id, _, ok := strings.Cut(c.token, ":")
	if !ok {
		return 0, fmt.Errorf("malformed bot token")
	}
	return strconv.ParseInt(id, 10, 64)
}

func (c *Client) call(ctx context.Context, method string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL embeds the token; keep it out of the error
		return fmt.Errorf("%s: request failed", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}

	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: decode response (http %d): %w", method, resp.StatusCode, err)
	}
	if !env.OK {
		return fmt.Errorf("%s: telegram error %d: %s", method, env.ErrorCode, env.Description)
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// SendMessage posts text to one chat using HTML parse mode.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	form := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"text":       {html.EscapeString(text)},
		"parse_mode": {"HTML"},
	}
	return c.call(ctx, "sendMessage", form, nil)
}

// DiscoverChatIDs returns the chats seen in recent updates where the bot may
// post: private chats, plus groups and channels where the bot is an admin.
func (c *Client) DiscoverChatIDs(ctx context.Context) ([]int64, error) {
	botID, err := c.BotID()
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", url.Values{}, &updates); err != nil {
		return nil, err
	}

	seen := map[int64]bool{}
	var ids []int64
	for _, u := range updates {
		msg := u.Message
		if msg == nil {
			msg = u.ChannelPost
		}
		if msg == nil || seen[msg.Chat.ID] {
			continue
		}
		seen[msg.Chat.ID] = true

		if msg.Chat.Type == "private" {
			ids = append(ids, msg.Chat.ID)
			continue
		}

		var admins []ChatMember
		form := url.Values{"chat_id": {strconv.FormatInt(msg.Chat.ID, 10)}}
		if err := c.call(ctx, "getChatAdministrators", form, &admins); err != nil {
			continue // not visible to the bot
		}
		for _, a := range admins {
			if a.User.ID == botID {
				ids = append(ids, msg.Chat.ID)
				break
			}
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
