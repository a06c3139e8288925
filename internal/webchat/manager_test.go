package webchat

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/intake-engine/internal/session"
	"github.com/wolfman30/intake-engine/internal/widget"
)

func TestManagerMountGetUnload(t *testing.T) {
	ctx := context.Background()
	_, manager, sessions := newTestHandler(t, stubBookings{})

	scope := session.Scope{VisitorID: "v1", TabID: "t1", PageID: "p1"}
	w, snap, err := manager.Mount(ctx, scope, widget.Options{})
	require.NoError(t, err)
	assert.Equal(t, "fresh_load", snap.SessionMode)

	got, err := manager.Get("p1")
	require.NoError(t, err)
	assert.Same(t, w, got)

	require.NoError(t, manager.Unload(ctx, "p1", session.UnloadNavigate))
	assert.True(t, w.Closed())
	_, err = manager.Get("p1")
	assert.ErrorIs(t, err, ErrUnknownPage)
	assert.ErrorIs(t, manager.Unload(ctx, "p1", session.UnloadNavigate), ErrUnknownPage)

	active, err := sessions.Active(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestManagerSweepKeepsTabSession(t *testing.T) {
	ctx := context.Background()
	_, manager, sessions := newTestHandler(t, stubBookings{})

	w, _, err := manager.Mount(ctx, session.Scope{VisitorID: "v1", TabID: "t1", PageID: "p1"}, widget.Options{})
	require.NoError(t, err)

	assert.Zero(t, manager.Sweep(ctx, monday.Add(-time.Minute)))
	assert.Equal(t, 1, manager.Sweep(ctx, monday.Add(time.Minute)))
	assert.True(t, w.Closed())
	assert.Zero(t, manager.Len())

	active, err := sessions.Active(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestManagerAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	_, manager, _ := newTestHandler(t, stubBookings{})
	manager.defaults.Limited = true
	manager.defaults.ReplyLimit = 2

	_, snap, err := manager.Mount(ctx, session.Scope{VisitorID: "v1", TabID: "t1", PageID: "p1"}, widget.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ReplyLimit)
	assert.Equal(t, "UTC", snap.Timezone)
}

func TestHandleMountLimitedOverride(t *testing.T) {
	h, manager, _ := newTestHandler(t, stubBookings{})
	manager.defaults.Limited = true
	manager.defaults.ReplyLimit = 1

	rec := do(t, h.HandleMount, http.MethodPost, "/widget/mount", `{"visitor_id":"v1","tab_id":"t1","page_id":"p1","limited":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	do(t, h.HandleContact, http.MethodPost, "/widget/contact?page=p1", `{"name":"Asha","email":"asha@example.com"}`)
	do(t, h.HandleMessage, http.MethodPost, "/widget/message?page=p1", `{"text":"hello"}`)
	rec = do(t, h.HandleMessage, http.MethodPost, "/widget/message?page=p1", `{"text":"what do you offer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeSnapshot(t, rec).CanChat)

	rec = do(t, h.HandleMount, http.MethodPost, "/widget/mount", `{"visitor_id":"v2","tab_id":"t2","page_id":"p2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	do(t, h.HandleContact, http.MethodPost, "/widget/contact?page=p2", `{"name":"Ben","email":"ben@example.com"}`)
	rec = do(t, h.HandleMessage, http.MethodPost, "/widget/message?page=p2", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeSnapshot(t, rec).CanChat)
}
