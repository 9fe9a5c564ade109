package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// telegramStub принимает вызовы Bot API и запоминает тексты отправленных сообщений
type telegramStub struct {
	mu    sync.Mutex
	texts []string
}

func (s *telegramStub) handler(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/sendMessage") {
		_ = r.ParseMultipartForm(1 << 20)
		s.mu.Lock()
		s.texts = append(s.texts, r.FormValue("text"))
		s.mu.Unlock()
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
}

func (s *telegramStub) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func newTestBot(t *testing.T) (*bot.Bot, *telegramStub) {
	t.Helper()

	stub := &telegramStub{}
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	b, err := bot.New("test-token", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)

	return b, stub
}

type linkerFunc func(chatID, senderID, contactUserID int64, username, phone string) (*model.MessengerContact, error)

func (f linkerFunc) LinkContact(_ context.Context, chatID, senderID, contactUserID int64, username, phone string) (*model.MessengerContact, error) {
	return f(chatID, senderID, contactUserID, username, phone)
}

func contactUpdate(fromID, contactUserID int64) *models.Update {
	return &models.Update{
		Message: &models.Message{
			Chat: models.Chat{ID: 100},
			From: &models.User{ID: fromID, Username: "patient"},
			Contact: &models.Contact{
				PhoneNumber: "+79001234567",
				UserID:      contactUserID,
			},
		},
	}
}

func TestHandleContact_Links(t *testing.T) {
	b, stub := newTestBot(t)

	var linkedPhone string
	h := NewHandlers(linkerFunc(func(chatID, senderID, contactUserID int64, username, phone string) (*model.MessengerContact, error) {
		assert.EqualValues(t, 100, chatID)
		linkedPhone = phone
		return &model.MessengerContact{PhoneNumber: phone, ChatID: chatID}, nil
	}), zap.NewNop())

	h.HandleContact(context.Background(), b, contactUpdate(7, 7))

	assert.Equal(t, "+79001234567", linkedPhone)
	sent := stub.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Номер привязан")
}

func TestHandleContact_ForeignContact(t *testing.T) {
	b, stub := newTestBot(t)

	h := NewHandlers(linkerFunc(func(int64, int64, int64, string, string) (*model.MessengerContact, error) {
		return nil, service.ErrForbidden
	}), zap.NewNop())

	h.HandleContact(context.Background(), b, contactUpdate(7, 8))

	sent := stub.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "только свой номер")
}

func TestHandleStart_AsksForContact(t *testing.T) {
	b, stub := newTestBot(t)
	h := NewHandlers(nil, zap.NewNop())

	h.HandleStart(context.Background(), b, &models.Update{
		Message: &models.Message{
			Chat: models.Chat{ID: 100},
			From: &models.User{ID: 7, FirstName: "Анна"},
		},
	})

	sent := stub.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Анна")
}

func TestIsContactMessage(t *testing.T) {
	assert.True(t, IsContactMessage(contactUpdate(1, 1)))
	assert.False(t, IsContactMessage(&models.Update{Message: &models.Message{Text: "hi"}}))
	assert.False(t, IsContactMessage(&models.Update{}))
}
