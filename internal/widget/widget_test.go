package widget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/business"
	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/leads"
	"github.com/wolfman30/intake-engine/internal/replies"
	"github.com/wolfman30/intake-engine/internal/session"
)

// Monday 10:00 UTC. The default policy opens Monday 18:00 to 03:00.
var monday = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

type replyFunc func(ctx context.Context, req replies.Request) (replies.Response, error)

func (f replyFunc) Reply(ctx context.Context, req replies.Request) (replies.Response, error) {
	return f(ctx, req)
}

func cannedReply(text string) replyFunc {
	return func(context.Context, replies.Request) (replies.Response, error) {
		return replies.Response{Reply: text}, nil
	}
}

type fakeBookings struct {
	mu    sync.Mutex
	calls []booking.AppointmentRequest
	err   error
	gate  chan struct{}
}

func (f *fakeBookings) Submit(ctx context.Context, req booking.AppointmentRequest) (*booking.Confirmation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &booking.Confirmation{ID: "appt-1", Status: booking.StatusPending, TimeSlot: req.TimeSlot}, nil
}

func (f *fakeBookings) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeContacts struct {
	mu       sync.Mutex
	profiles []leads.ContactProfile
	err      error
}

func (f *fakeContacts) Capture(ctx context.Context, p leads.ContactProfile) (*leads.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, p)
	if f.err != nil {
		return nil, f.err
	}
	return &leads.Lead{ID: "lead-1", Name: p.Name, Email: p.Email}, nil
}

type fixture struct {
	deps     Dependencies
	sessions *session.Store
	profiles *business.MemoryStore
	bookings *fakeBookings
	contacts *fakeContacts
	scope    session.Scope
}

func newFixture(t *testing.T, svc replies.Service) *fixture {
	t.Helper()
	sessions := session.NewStore(session.NewMemoryKV(), session.Options{Welcome: "Welcome!"}, nil)
	profiles := business.NewMemoryStore(business.Profile{
		Name:     "Northwind Studio",
		Tag:      "northwind",
		Services: []string{"Web Design", "SEO"},
		Hours:    business.DefaultPolicy("UTC"),
	})
	f := &fixture{
		sessions: sessions,
		profiles: profiles,
		bookings: &fakeBookings{},
		contacts: &fakeContacts{},
		scope:    session.Scope{VisitorID: "visitor-1", TabID: "tab-1", PageID: "page-1"},
	}
	f.deps = Dependencies{
		Sessions: sessions,
		Profiles: profiles,
		Replies:  svc,
		Contacts: f.contacts,
		Bookings: f.bookings,
		Commands: intake.NewCommandBus(),
	}
	return f
}

func (f *fixture) submitted(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.sessions.SaveProfile(ctx, f.scope.VisitorID, leads.ContactProfile{Name: "Asha Rao", Email: "asha@example.com", Phone: "555-010-9999"}))
	require.NoError(t, f.sessions.MarkSubmitted(ctx, f.scope.VisitorID))
}

func (f *fixture) mount(t *testing.T, opts Options) *Widget {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return monday }
	}
	if opts.VisitorTimezone == "" {
		opts.VisitorTimezone = "UTC"
	}
	w := New(f.scope, f.deps, opts)
	_, err := w.Mount(context.Background())
	require.NoError(t, err)
	return w
}

func validForm() intake.AppointmentForm {
	return intake.AppointmentForm{
		Name:     "Asha Rao",
		Email:    "asha@example.com",
		Services: []string{"SEO"},
		Date:     "2025-03-04",
		Time:     "18:00",
	}
}

func lastMessage(snap Snapshot) session.Message {
	return snap.Transcript[len(snap.Transcript)-1]
}

func TestMountFreshVisitorSeesContactForm(t *testing.T) {
	f := newFixture(t, cannedReply("hi"))
	w := f.mount(t, Options{})

	snap := w.Snapshot()
	assert.Equal(t, intake.ContactFormOpen, snap.State)
	assert.Equal(t, "fresh_load", snap.SessionMode)
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, "Welcome!", snap.Transcript[0].Text)
	assert.Equal(t, "UTC", snap.Timezone)
	assert.Equal(t, []string{"Web Design", "SEO"}, snap.Services)

	_, err := w.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrChatDisabled)
}

func TestMountSubmittedVisitorChats(t *testing.T) {
	f := newFixture(t, cannedReply("hi"))
	f.submitted(t)
	w := f.mount(t, Options{})

	snap := w.Snapshot()
	assert.Equal(t, intake.Chatting, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Asha Rao", snap.Draft.Name)
	assert.Equal(t, "asha@example.com", snap.Draft.Email)
}

func TestSubmitContactStoresProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cannedReply("hi"))
	w := f.mount(t, Options{})

	_, err := w.SubmitContact(ctx, intake.ContactForm{Name: "Asha", Email: "not-an-email"})
	var errs intake.FieldErrors
	require.ErrorAs(t, err, &errs)
	assert.Contains(t, errs, "email")
	assert.Empty(t, f.contacts.profiles)

	snap, err := w.SubmitContact(ctx, intake.ContactForm{Name: " Asha Rao ", Email: "asha@example.com"})
	require.NoError(t, err)
	assert.Equal(t, intake.Chatting, snap.State)
	assert.Contains(t, lastMessage(snap).Text, "Thanks, Asha!")
	require.Len(t, f.contacts.profiles, 1)

	stored, err := f.sessions.Profile(ctx, f.scope.VisitorID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Asha Rao", stored.Name)
	submitted, err := f.sessions.Submitted(ctx, f.scope.VisitorID)
	require.NoError(t, err)
	assert.True(t, submitted)
}

func TestSubmitContactEndpointFailureKeepsFormOpen(t *testing.T) {
	f := newFixture(t, cannedReply("hi"))
	f.contacts.err = errors.New("leads: storage failure")
	w := f.mount(t, Options{})

	snap, err := w.SubmitContact(context.Background(), intake.ContactForm{Name: "Asha", Email: "asha@example.com"})
	require.Error(t, err)
	assert.Equal(t, intake.ContactFormOpen, snap.State)
	assert.False(t, snap.Processing)
}

func TestReplyLimitDisablesChatAndOpensPrefilledForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cannedReply("Noted."))
	f.submitted(t)
	w := f.mount(t, Options{Limited: true, ReplyLimit: 4})

	for i, text := range []string{"hello", "we run a bakery", "our site is slow", "it is old"} {
		snap, err := w.SendMessage(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, i+1, snap.Replies)
		if i < 3 {
			assert.Equal(t, intake.Chatting, snap.State)
			assert.True(t, snap.CanChat)
		}
	}

	snap := w.Snapshot()
	assert.Equal(t, intake.AppointmentFormOpen, snap.State)
	assert.True(t, snap.Locked)
	assert.False(t, snap.CanChat)
	assert.Equal(t, "Asha Rao", snap.Draft.Name)
	assert.Equal(t, "asha@example.com", snap.Draft.Email)
	assert.Equal(t, "555-010-9999", snap.Draft.Phone)

	_, err := w.SendMessage(ctx, "one more thing")
	assert.ErrorIs(t, err, ErrChatDisabled)

	snap, err = w.CancelAppointment()
	require.NoError(t, err)
	assert.Equal(t, intake.Disabled, snap.State)
}

func TestSchedulingIntentOpensAppointmentForm(t *testing.T) {
	f := newFixture(t, cannedReply("Happy to help."))
	f.submitted(t)
	w := f.mount(t, Options{})

	snap, err := w.SendMessage(context.Background(), "Can I book a call for next week?")
	require.NoError(t, err)
	assert.Equal(t, intake.AppointmentFormOpen, snap.State)
}

func TestAffirmativeAfterOfferOpensAppointmentForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cannedReply("Would you like to schedule a consultation?"))
	f.submitted(t)
	w := f.mount(t, Options{})

	snap, err := w.SendMessage(ctx, "we need a new website")
	require.NoError(t, err)
	assert.Equal(t, intake.Chatting, snap.State)

	snap, err = w.SendMessage(ctx, "yes please")
	require.NoError(t, err)
	assert.Equal(t, intake.AppointmentFormOpen, snap.State)
}

func TestReplyFlagsOpenForms(t *testing.T) {
	ctx := context.Background()
	var next replies.Response
	f := newFixture(t, replyFunc(func(context.Context, replies.Request) (replies.Response, error) {
		return next, nil
	}))
	f.submitted(t)
	w := f.mount(t, Options{})

	next = replies.Response{Reply: "Leave your details?", ShowContactForm: true}
	snap, err := w.SendMessage(ctx, "can someone email me")
	require.NoError(t, err)
	assert.Equal(t, intake.ContactFormOpen, snap.State)

	_, err = w.SubmitContact(ctx, intake.ContactForm{Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)

	next = replies.Response{Reply: "Pick a time below.", Action: replies.ActionOpenForm}
	snap, err = w.SendMessage(ctx, "what next")
	require.NoError(t, err)
	assert.Equal(t, intake.AppointmentFormOpen, snap.State)
}

func TestReplyServiceErrorFallsBackLocally(t *testing.T) {
	f := newFixture(t, replyFunc(func(context.Context, replies.Request) (replies.Response, error) {
		return replies.Response{}, replies.ErrUnavailable
	}))
	f.submitted(t)
	w := f.mount(t, Options{})

	snap, err := w.SendMessage(context.Background(), "what services do you offer")
	require.NoError(t, err)
	bot := lastMessage(snap)
	assert.Equal(t, session.SenderBot, bot.Sender)
	assert.Contains(t, bot.Text, "Web Design")
	assert.False(t, snap.Typing)
}

func TestReplyContextCarriesProfile(t *testing.T) {
	var got replies.Request
	f := newFixture(t, replyFunc(func(_ context.Context, req replies.Request) (replies.Response, error) {
		got = req
		return replies.Response{Reply: "ok"}, nil
	}))
	f.submitted(t)
	w := f.mount(t, Options{})

	_, err := w.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, "Asha Rao", got.Context.Name)
	assert.Equal(t, "northwind", got.Context.BusinessProfile)
	assert.Equal(t, 2, got.Context.ConversationLength)
}

func TestOneReplyInFlight(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	f := newFixture(t, replyFunc(func(context.Context, replies.Request) (replies.Response, error) {
		<-release
		return replies.Response{Reply: "done"}, nil
	}))
	f.submitted(t)
	w := f.mount(t, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := w.SendMessage(ctx, "first")
		done <- err
	}()
	require.Eventually(t, func() bool { return w.Snapshot().Typing }, time.Second, 5*time.Millisecond)

	_, err := w.SendMessage(ctx, "second")
	assert.ErrorIs(t, err, ErrReplyInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, w.Snapshot().Typing)
}

func TestCloseDropsLateReply(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	f := newFixture(t, replyFunc(func(context.Context, replies.Request) (replies.Response, error) {
		<-release
		return replies.Response{Reply: "too late"}, nil
	}))
	f.submitted(t)
	w := f.mount(t, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := w.SendMessage(ctx, "hello")
		done <- err
	}()
	require.Eventually(t, func() bool { return w.Snapshot().Typing }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Close(ctx, session.UnloadNavigate))
	close(release)
	assert.ErrorIs(t, <-done, ErrClosed)

	for _, msg := range w.Snapshot().Transcript {
		assert.NotEqual(t, "too late", msg.Text)
	}
	active, err := f.sessions.Active(ctx, f.scope.TabID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestHandleCommandThroughBus(t *testing.T) {
	f := newFixture(t, cannedReply("Sure."))
	f.submitted(t)
	w := f.mount(t, Options{})

	n := f.deps.Commands.Publish(f.scope.PageID, intake.OpenIntakeCommand{ContextMessage: "Interested in the SEO package", ForceAppointment: true})
	assert.Equal(t, 1, n)

	snap := w.Snapshot()
	assert.Equal(t, intake.AppointmentFormOpen, snap.State)
	assert.Equal(t, "Interested in the SEO package", snap.Draft.Notes)

	require.NoError(t, w.Close(context.Background(), session.UnloadClose))
	assert.Zero(t, f.deps.Commands.Subscribers(f.scope.PageID))
}

func TestHandleCommandContextMessageWaitsForContact(t *testing.T) {
	ctx := context.Background()
	var seen []string
	f := newFixture(t, replyFunc(func(_ context.Context, req replies.Request) (replies.Response, error) {
		seen = append(seen, req.Message)
		return replies.Response{Reply: "Tell me more."}, nil
	}))
	w := f.mount(t, Options{})

	snap, err := w.HandleCommand(ctx, intake.OpenIntakeCommand{ContextMessage: "Question about pricing"})
	require.NoError(t, err)
	assert.Equal(t, intake.ContactFormOpen, snap.State)
	assert.Empty(t, seen)

	snap, err = w.SubmitContact(ctx, intake.ContactForm{Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Question about pricing"}, seen)
	assert.Equal(t, "Tell me more.", lastMessage(snap).Text)
}

func TestSelectDate(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{VisitorTimezone: "America/New_York"})

	day, err := w.SelectDate("2025-03-04")
	require.NoError(t, err)
	assert.False(t, day.Closed)
	assert.Equal(t, "America/New_York", day.Timezone)
	require.Len(t, day.Slots, 3)
	// 18:00 UTC is 13:00 in New York in early March.
	assert.Equal(t, "1:00 PM – 4:00 PM", day.Slots[0].Label)

	day, err = w.SelectDate("2025-03-09")
	require.NoError(t, err)
	assert.True(t, day.Closed)
}

func TestSelectDateClosedAndExhaustedDays(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	hours := business.DefaultPolicy("UTC")
	hours.Monday = &business.DayHours{Open: "06:00", Close: "09:00"}
	f.profiles = business.NewMemoryStore(business.Profile{Name: "Northwind Studio", Hours: hours})
	f.deps.Profiles = f.profiles
	w := f.mount(t, Options{})

	day, err := w.SelectDate("2025-03-09")
	require.NoError(t, err)
	assert.True(t, day.Closed)
	assert.Empty(t, day.Slots)

	day, err = w.SelectDate("2025-03-03")
	require.NoError(t, err)
	assert.True(t, day.NoMoreToday)
	require.Len(t, day.Slots, 1)
	assert.True(t, day.Slots[0].Past)

	_, err = w.SelectDate("03/03/2025")
	var errs intake.FieldErrors
	assert.ErrorAs(t, err, &errs)
}

func TestSubmitPastDateNeverReachesEndpoint(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})
	_, err := w.OpenAppointment()
	require.NoError(t, err)

	form := validForm()
	form.Date = "2025-03-02"
	snap, err := w.SubmitAppointment(context.Background(), form)

	var errs intake.FieldErrors
	require.ErrorAs(t, err, &errs)
	assert.Contains(t, errs, "date")
	assert.Zero(t, f.bookings.count())
	assert.Equal(t, intake.AppointmentFormOpen, snap.State)
	assert.Equal(t, "2025-03-02", snap.Draft.Date)
}

func TestSubmitNoServicesNeverReachesEndpoint(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})
	_, err := w.OpenAppointment()
	require.NoError(t, err)

	form := validForm()
	form.Services = []string{""}
	_, err = w.SubmitAppointment(context.Background(), form)
	assert.ErrorIs(t, err, intake.ErrValidation)
	assert.Zero(t, f.bookings.count())
}

func TestSubmitOutsideHoursListsOpenTimes(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})
	_, err := w.OpenAppointment()
	require.NoError(t, err)

	form := validForm()
	form.Time = "09:00"
	snap, err := w.SubmitAppointment(context.Background(), form)
	assert.ErrorIs(t, err, booking.ErrOutsideBusinessHours)
	assert.Zero(t, f.bookings.count())
	assert.Equal(t, intake.AppointmentFormOpen, snap.State)

	msg := lastMessage(snap)
	assert.Equal(t, session.SenderBot, msg.Sender)
	assert.Contains(t, msg.Text, "6:00 PM – 9:00 PM")
	assert.Contains(t, msg.Text, "12:00 AM – 3:00 AM")
}

func TestSubmitAppointmentConfirms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})
	_, err := w.OpenAppointment()
	require.NoError(t, err)

	snap, err := w.SubmitAppointment(ctx, validForm())
	require.NoError(t, err)
	assert.Equal(t, intake.Confirmed, snap.State)
	require.NotNil(t, snap.Confirmation)
	assert.Equal(t, "appt-1", snap.Confirmation.ID)
	assert.Contains(t, lastMessage(snap).Text, "6:00 PM – 9:00 PM on 2025-03-04")
	assert.Empty(t, snap.Draft.Date)
	assert.Equal(t, "Asha Rao", snap.Draft.Name)

	require.Equal(t, 1, f.bookings.count())
	sent := f.bookings.calls[0]
	assert.Equal(t, "UTC", sent.SourceTimezone)
	assert.Equal(t, "6:00 PM – 9:00 PM", sent.TimeSlot)
	assert.Equal(t, []string{"SEO"}, sent.Services)

	snap, err = w.DismissConfirmation()
	require.NoError(t, err)
	assert.Equal(t, intake.Chatting, snap.State)
	assert.Nil(t, snap.Confirmation)
}

func TestSubmitFailureMessagesByKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connectivity", booking.ErrConnectivity, "Your details are still in the form"},
		{"business rule", &booking.BusinessRuleError{Err: booking.ErrSlotUnavailable, Date: "2025-03-04", ValidHours: []string{"9:00 PM – 12:00 AM"}}, "That time was just booked. Available times on 2025-03-04: 9:00 PM – 12:00 AM."},
		{"unknown", errors.New("boom"), "We received your request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, cannedReply("ok"))
			f.submitted(t)
			f.bookings.err = tt.err
			w := f.mount(t, Options{})
			_, err := w.OpenAppointment()
			require.NoError(t, err)

			form := validForm()
			form.Notes = "Rebuild the storefront"
			snap, err := w.SubmitAppointment(context.Background(), form)
			require.Error(t, err)
			assert.Equal(t, intake.AppointmentFormOpen, snap.State)
			assert.Equal(t, form, snap.Draft)
			assert.False(t, snap.Processing)
			assert.Contains(t, lastMessage(snap).Text, tt.want)
		})
	}
}

func TestOneSubmissionInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	f.bookings.gate = make(chan struct{})
	w := f.mount(t, Options{})
	_, err := w.OpenAppointment()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.SubmitAppointment(ctx, validForm())
		done <- err
	}()
	require.Eventually(t, func() bool { return w.Snapshot().Processing }, time.Second, 5*time.Millisecond)

	_, err = w.SubmitAppointment(ctx, validForm())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = w.CancelAppointment()
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(f.bookings.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.bookings.count())
}

func TestClearHistoryKeepsProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})
	_, err := w.SendMessage(ctx, "hello")
	require.NoError(t, err)

	snap, err := w.ClearHistory(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, "Welcome!", snap.Transcript[0].Text)
	require.NotNil(t, snap.Profile)

	stored, err := f.sessions.Transcript(ctx, f.scope.VisitorID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestWatchReceivesSnapshots(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})

	var mu sync.Mutex
	var states []bool
	stop := w.Watch(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.Typing)
		mu.Unlock()
	})
	_, err := w.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	stop()
	_, err = w.SendMessage(context.Background(), "again")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, states)
}

func TestBlockedWatcherDoesNotStallSendMessage(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})

	release := make(chan struct{})
	stop := w.Watch(func(Snapshot) { <-release })
	defer func() {
		close(release)
		stop()
	}()

	var fast sync.WaitGroup
	fast.Add(1)
	var once sync.Once
	stopFast := w.Watch(func(Snapshot) { once.Do(fast.Done) })
	defer stopFast()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < watchBuffer+4; i++ {
			if _, err := w.SendMessage(context.Background(), "hello"); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage blocked on a stalled watcher")
	}
	fast.Wait()
}

func TestCloseStopsWatchers(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	f.submitted(t)
	w := f.mount(t, Options{})

	stop := w.Watch(func(Snapshot) {})
	require.NoError(t, w.Close(context.Background(), session.UnloadClose))
	stop()

	w.watchMu.Lock()
	defer w.watchMu.Unlock()
	assert.Empty(t, w.watchers)
}

func TestOperationsBeforeMount(t *testing.T) {
	f := newFixture(t, cannedReply("ok"))
	w := New(f.scope, f.deps, Options{})
	_, err := w.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = w.SelectDate("2025-03-04")
	assert.ErrorIs(t, err, ErrNotMounted)
}
