// Package telegramtest runs a local stand-in for the Telegram Bot API so
// bots built on telebot can be exercised without network access.
package telegramtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	telebot "gopkg.in/telebot.v3"
)

// BotUsername is the username reported for bots created by NewBot
const BotUsername = "rewards_bot"

// Request is a Bot API call received by the server
type Request struct {
	Method string
	Params map[string]string
}

// Server records Bot API calls and answers them with canned results
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	members  map[string]string
	failing  map[string]bool
}

// NewServer starts a server that is closed when the test ends
func NewServer(t testing.TB) *Server {
	s := &Server{
		members: make(map[string]string),
		failing: make(map[string]bool),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// NewBot creates an offline telebot bot talking to s
func (s *Server) NewBot(t testing.TB) *telebot.Bot {
	bot, err := telebot.NewBot(telebot.Settings{
		URL:     s.URL,
		Token:   "test-token",
		Offline: true,
	})
	if err != nil {
		t.Fatalf("creating bot: %v", err)
	}
	bot.Me.Username = BotUsername
	return bot
}

// SetMemberStatus sets the getChatMember status of userID in chat.
// Unknown pairs are reported as "member".
func (s *Server) SetMemberStatus(chat string, userID int64, status telebot.MemberStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[fmt.Sprintf("%s/%d", chat, userID)] = string(status)
}

// Fail makes every call to method return a Bot API error
func (s *Server) Fail(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[method] = true
}

// Requests returns the calls made to method, oldest first
func (s *Server) Requests(method string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the latest call made to method
func (s *Server) Last(method string) (Request, bool) {
	requests := s.Requests(method)
	if len(requests) == 0 {
		return Request{}, false
	}
	return requests[len(requests)-1], true
}

// Texts returns the text of every sendMessage call addressed to chatID
func (s *Server) Texts(chatID int64) []string {
	var out []string
	for _, r := range s.Requests("sendMessage") {
		if r.Params["chat_id"] == fmt.Sprint(chatID) {
			out = append(out, r.Params["text"])
		}
	}
	return out
}

// Reset forgets the recorded calls
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	req := Request{Method: path.Base(r.URL.Path), Params: readParams(r)}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	failing := s.failing[req.Method]
	status := s.members[req.Params["chat_id"]+"/"+req.Params["user_id"]]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}

	var result interface{}
	switch req.Method {
	case "getMe":
		result = map[string]interface{}{"id": 1, "is_bot": true, "username": BotUsername}
	case "getChatMember":
		if status == "" {
			status = string(telebot.Member)
		}
		var userID int64
		_, _ = fmt.Sscan(req.Params["user_id"], &userID)
		result = map[string]interface{}{
			"user":   map[string]interface{}{"id": userID},
			"status": status,
		}
	case "answerCallbackQuery", "setMyCommands", "deleteMessage":
		result = true
	default:
		var chatID int64
		_, _ = fmt.Sscan(req.Params["chat_id"], &chatID)
		result = map[string]interface{}{
			"message_id": len(s.Requests(req.Method)),
			"date":       0,
			"chat":       map[string]interface{}{"id": chatID},
		}
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
}

func readParams(r *http.Request) map[string]string {
	params := make(map[string]string)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return params
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
		for key := range r.MultipartForm.File {
			params[key] = "<file>"
		}
		return params
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return params
	}
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			params[key] = v
		default:
			encoded, _ := json.Marshal(v)
			params[key] = string(encoded)
		}
	}
	return params
}
