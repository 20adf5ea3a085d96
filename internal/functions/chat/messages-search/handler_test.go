package messagessearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	ft "crm-functions/internal/functions/functiontest"
	"crm-functions/internal/search"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Result), args.Error(1)
}

func setup(t *testing.T) (*Handler, *MockSearcher) {
	chats := ft.NewChats()
	_, _, err := chats.GetOrCreateConversation(context.Background(), "a", "b")
	require.NoError(t, err)
	searcher := new(MockSearcher)
	return NewHandler(HandlerOptions{Store: chats, Searcher: searcher, Logger: logger.NewTestLogger(t)}), searcher
}

func TestHandler_Search(t *testing.T) {
	h, searcher := setup(t)
	searcher.On("Search", mock.Anything, search.Query{UID: "a", Text: "meter reading", ConversationID: "a_b", Size: 10}).
		Return(&search.Result{Total: 1, Hits: []search.Hit{{
			Document:  search.Document{ID: "m1", ConversationID: "a_b", Text: "the meter reading is late"},
			Score:     1.3,
			Highlight: []string{"the <em>meter</em> <em>reading</em> is late"},
		}}}, nil)

	out, err := h.Invoke(context.Background(), ft.Request(t, ft.Customer("a"), Input{Query: " meter reading ", ConversationID: "a_b", Size: 10}))
	require.NoError(t, err)
	res := out.(*Output)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, "m1", res.Hits[0].ID)
	searcher.AssertExpectations(t)
}

func TestHandler_AllConversationsScopedToCaller(t *testing.T) {
	h, searcher := setup(t)
	searcher.On("Search", mock.Anything, mock.MatchedBy(func(q search.Query) bool {
		return q.UID == "z" && q.ConversationID == ""
	})).Return(&search.Result{Hits: []search.Hit{}}, nil)

	out, err := h.Invoke(context.Background(), ft.Request(t, ft.Customer("z"), Input{Query: "hello"}))
	require.NoError(t, err)
	assert.Empty(t, out.(*Output).Hits)
}

func TestHandler_ForeignConversation(t *testing.T) {
	h, searcher := setup(t)
	_, err := h.Invoke(context.Background(), ft.Request(t, ft.Customer("z"), Input{Query: "hello", ConversationID: "a_b"}))
	assert.True(t, errs.HasCode(err, errs.ErrCodeNotFound))
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}
